package securestore

// SecureStorage is an encrypted key/value store organized in buckets. The
// store is created locked and serves no reads or writes until unlocked with
// its password. Values are encrypted at rest, keys and bucket names are not.
type SecureStorage interface {
	// Lock drops the in-memory key material and puts the store back in the
	// locked state.
	Lock()
	// Close locks the store and releases the underlying database.
	Close() (err error)
	// IsLocked reports whether the store is currently locked.
	IsLocked() (locked bool)
	// CreateUnlock unlocks the store, initializing it first if it was never
	// set up. The password is read through the pointer so callers can zero
	// it afterwards.
	CreateUnlock(password *[]byte) (err error)
	// ChangePassword re-encrypts the store under a new password.
	ChangePassword(oldPw, newPw []byte) (err error)
	// CreateBucket creates an empty bucket, a no-op if it already exists.
	CreateBucket(key []byte) (err error)
	// AddToBucket writes an entry into a bucket, overwriting any previous
	// value under the same key.
	AddToBucket(bucketKey, key, value []byte) (err error)
	// GetFromBucket reads a single entry, nil if the key is absent.
	GetFromBucket(bucketKey, key []byte) (value []byte, err error)
	// GetAllFromBucket reads every entry of a bucket, keyed by entry key.
	GetAllFromBucket(bucketKey []byte) (valuesByKey map[string][]byte, err error)
	// ListBuckets returns the names of all buckets.
	ListBuckets() (bucketKeys [][]byte, err error)
	// RemoveFromBucket deletes an entry from a bucket.
	RemoveFromBucket(bucketKey, key []byte) (err error)
	// RemoveBucket deletes a bucket and all its entries.
	RemoveBucket(bucketKey []byte) (err error)
}
