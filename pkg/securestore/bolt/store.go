package boltsecurestore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/veridian-wallet/walletcore/pkg/securestore"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/scrypt"
)

const (
	encKeyLen = 32
	saltLen   = 32

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

var (
	// rootBucketName is the name of the top level bucket holding every
	// nested bucket and root-level entry.
	rootBucketName = []byte("root")

	// encryptionKeyID is the name of the database key that stores the
	// data encryption key, wrapped with the scrypt-derived password key.
	// The format is 32 bytes of salt followed by the sealed key.
	encryptionKeyID = []byte("enckey")
)

type boltSecureStorage struct {
	db *bbolt.DB

	encKeyMtx sync.RWMutex
	encKey    []byte
}

// NewSecureStorage creates a bolt instance of the SecureStorage interface.
func NewSecureStorage(datadir, filename string) (securestore.SecureStorage, error) {
	if _, err := os.Stat(datadir); os.IsNotExist(err) {
		if err := os.MkdirAll(datadir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := bbolt.Open(
		filepath.Join(datadir, filename), 0600,
		&bbolt.Options{Timeout: 5 * time.Second},
	)
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucketName)
		return err
	}); err != nil {
		return nil, err
	}

	return &boltSecureStorage{db: db}, nil
}

// IsLocked returns whether the store is locked by checking if the encryption
// key is stored in-memory.
func (s *boltSecureStorage) IsLocked() bool {
	s.encKeyMtx.RLock()
	defer s.encKeyMtx.RUnlock()
	return s.encKey == nil
}

// Lock eventually locks the store by flushing the in-memory encryption key.
func (s *boltSecureStorage) Lock() {
	s.encKeyMtx.Lock()
	defer s.encKeyMtx.Unlock()

	for i := range s.encKey {
		s.encKey[i] = 0
	}
	s.encKey = nil
}

// CreateUnlock generates and stores a fresh data encryption key wrapped with
// the given password if none exists yet, otherwise it unwraps the stored one,
// failing with ErrInvalidPassword if the password does not match.
func (s *boltSecureStorage) CreateUnlock(password *[]byte) error {
	if !s.IsLocked() {
		return nil
	}

	if password == nil {
		return ErrPasswordRequired
	}

	s.encKeyMtx.Lock()
	defer s.encKeyMtx.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		dbKey := bucket.Get(encryptionKeyID)
		if len(dbKey) > 0 {
			encKey, err := unwrapKey(dbKey, *password)
			if err != nil {
				return ErrInvalidPassword
			}
			s.encKey = encKey
			return nil
		}

		encKey := make([]byte, encKeyLen)
		if _, err := rand.Read(encKey); err != nil {
			return err
		}

		wrapped, err := wrapKey(encKey, *password)
		if err != nil {
			return err
		}
		if err := bucket.Put(encryptionKeyID, wrapped); err != nil {
			return err
		}

		s.encKey = encKey
		return nil
	})
}

// ChangePassword re-wraps the data encryption key with the new password.
// Stored values stay untouched since they are sealed with the data key, not
// with the password.
func (s *boltSecureStorage) ChangePassword(oldPw, newPw []byte) error {
	if s.IsLocked() {
		return ErrStoreLocked
	}

	if oldPw == nil || newPw == nil {
		return ErrPasswordRequired
	}

	s.encKeyMtx.Lock()
	defer s.encKeyMtx.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		dbKey := bucket.Get(encryptionKeyID)
		if len(dbKey) <= 0 {
			return ErrEncKeyNotFound
		}

		encKey, err := unwrapKey(dbKey, oldPw)
		if err != nil {
			return ErrInvalidPassword
		}

		wrapped, err := wrapKey(encKey, newPw)
		if err != nil {
			return err
		}
		if err := bucket.Put(encryptionKeyID, wrapped); err != nil {
			return err
		}

		s.encKey = encKey
		return nil
	})
}

// CreateBucket creates a nested bucket into the root one.
func (s *boltSecureStorage) CreateBucket(key []byte) error {
	if s.IsLocked() {
		return ErrStoreLocked
	}

	if len(key) <= 0 {
		return ErrMissingBucketKey
	}
	if bytes.Equal(key, encryptionKeyID) {
		return ErrForbiddenBucketKey
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}
		_, err := bucket.CreateBucketIfNotExists(key)
		return err
	})
}

// AddToBucket stores the provided data encrypted into the given bucket.
// If the bucket key is nil, the key/value entry is added to the root one.
func (s *boltSecureStorage) AddToBucket(bucketKey, key, value []byte) error {
	if s.IsLocked() {
		return ErrStoreLocked
	}

	if len(key) <= 0 {
		return ErrMissingDataKey
	}
	if bytes.Equal(key, encryptionKeyID) {
		return ErrForbiddenDataKey
	}
	if len(value) <= 0 {
		return ErrMissingData
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		if len(bucketKey) > 0 {
			bucket = bucket.Bucket(bucketKey)
			if bucket == nil {
				return ErrBucketNotFound
			}
		}

		encryptedValue, err := seal(s.encKey, value)
		if err != nil {
			return err
		}

		return bucket.Put(key, encryptedValue)
	})
}

// GetFromBucket retrieves data for the given key and bucket. If the bucket key
// is nil, data is retrieved from the root bucket.
func (s *boltSecureStorage) GetFromBucket(bucketKey, key []byte) ([]byte, error) {
	if s.IsLocked() {
		return nil, ErrStoreLocked
	}

	if len(key) <= 0 {
		return nil, ErrMissingDataKey
	}
	if bytes.Equal(key, encryptionKeyID) {
		return nil, ErrForbiddenDataKey
	}

	var value []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		if len(bucketKey) > 0 {
			bucket = bucket.Bucket(bucketKey)
			if bucket == nil {
				return ErrBucketNotFound
			}
		}

		encryptedValue := bucket.Get(key)
		if len(encryptedValue) <= 0 {
			return nil
		}

		v, err := open(s.encKey, encryptedValue)
		if err != nil {
			return err
		}

		value = v
		return nil
	}); err != nil {
		return nil, err
	}

	return value, nil
}

// GetAllFromBucket returns all data stored in the given bucket. If the bucket
// key is nil, the root-level entries are returned.
func (s *boltSecureStorage) GetAllFromBucket(bucketKey []byte) (map[string][]byte, error) {
	if s.IsLocked() {
		return nil, ErrStoreLocked
	}

	res := make(map[string][]byte)
	if err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		if len(bucketKey) > 0 {
			bucket = bucket.Bucket(bucketKey)
			if bucket == nil {
				return ErrBucketNotFound
			}
		}

		return bucket.ForEach(func(k, v []byte) error {
			if bytes.Equal(k, encryptionKeyID) || v == nil {
				return nil
			}
			value, err := open(s.encKey, v)
			if err != nil {
				return err
			}
			res[string(k)] = value
			return nil
		})
	}); err != nil {
		return nil, err
	}

	return res, nil
}

// ListBuckets returns the keys of every nested bucket in the store.
func (s *boltSecureStorage) ListBuckets() ([][]byte, error) {
	if s.IsLocked() {
		return nil, ErrStoreLocked
	}

	var bucketKeys [][]byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		return bucket.ForEach(func(key, value []byte) error {
			if value == nil {
				bucketKey := make([]byte, len(key))
				copy(bucketKey, key)
				bucketKeys = append(bucketKeys, bucketKey)
			}
			return nil
		})
	}); err != nil {
		return nil, err
	}

	return bucketKeys, nil
}

// Close closes the underlying database and zeroes the encryption key stored
// in memory.
func (s *boltSecureStorage) Close() error {
	s.Lock()
	return s.db.Close()
}

// RemoveFromBucket removes the entry identified by the given key for the given
// bucket. If bucket key is nil, the entry is removed from the root bucket.
func (s *boltSecureStorage) RemoveFromBucket(bucketKey, key []byte) error {
	if s.IsLocked() {
		return ErrStoreLocked
	}

	if len(key) <= 0 {
		return ErrMissingDataKey
	}
	if bytes.Equal(key, encryptionKeyID) {
		return ErrForbiddenDataKey
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		if len(bucketKey) > 0 {
			bucket = bucket.Bucket(bucketKey)
			if bucket == nil {
				return ErrBucketNotFound
			}
		}

		return bucket.Delete(key)
	})
}

// RemoveBucket removes a nested bucket and all of its entries.
func (s *boltSecureStorage) RemoveBucket(key []byte) error {
	if s.IsLocked() {
		return ErrStoreLocked
	}

	if len(key) <= 0 {
		return ErrMissingBucketKey
	}
	if bytes.Equal(key, encryptionKeyID) {
		return ErrForbiddenBucketKey
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}

		return bucket.DeleteBucket(key)
	})
}

// wrapKey seals the data encryption key with a key derived from the password.
// Output layout: salt || nonce || ciphertext.
func wrapKey(encKey, password []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	passwordKey, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, encKeyLen)
	if err != nil {
		return nil, err
	}

	sealed, err := seal(passwordKey, encKey)
	if err != nil {
		return nil, err
	}

	return append(salt, sealed...), nil
}

func unwrapKey(wrapped, password []byte) ([]byte, error) {
	if len(wrapped) <= saltLen {
		return nil, ErrEncKeyNotFound
	}
	salt, sealed := wrapped[:saltLen], wrapped[saltLen:]

	passwordKey, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, encKeyLen)
	if err != nil {
		return nil, err
	}

	return open(passwordKey, sealed)
}

// seal encrypts the value with AES-GCM, prepending the random nonce.
func seal(key, value []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, value, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrMissingData
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	return aead.Open(nil, nonce, ciphertext, nil)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
