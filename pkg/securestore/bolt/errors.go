package boltsecurestore

import "errors"

var (
	// ErrStoreLocked ...
	ErrStoreLocked = errors.New("store is locked")
	// ErrPasswordRequired ...
	ErrPasswordRequired = errors.New("a non-nil password is required")
	// ErrInvalidPassword ...
	ErrInvalidPassword = errors.New("invalid password")
	// ErrRootBucketNotFound ...
	ErrRootBucketNotFound = errors.New("root bucket not found")
	// ErrBucketNotFound ...
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrEncKeyNotFound ...
	ErrEncKeyNotFound = errors.New("encryption key not found")
	// ErrMissingBucketKey ...
	ErrMissingBucketKey = errors.New("bucket key must not be null")
	// ErrForbiddenBucketKey ...
	ErrForbiddenBucketKey = errors.New("bucket key is reserved")
	// ErrMissingDataKey ...
	ErrMissingDataKey = errors.New("data key must not be null")
	// ErrForbiddenDataKey ...
	ErrForbiddenDataKey = errors.New("data key is reserved")
	// ErrMissingData ...
	ErrMissingData = errors.New("data must not be null")
)
