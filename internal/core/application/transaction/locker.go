package transaction

import "sync"

// AccountLocker serializes the build-sign-broadcast section of flows
// spending from the same source account. Sequence numbers and nonces are
// per account, two concurrent executions would race on them otherwise.
type AccountLocker struct {
	mtx   sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAccountLocker returns a new empty AccountLocker.
func NewAccountLocker() *AccountLocker {
	return &AccountLocker{locks: map[string]*sync.Mutex{}}
}

// Lock acquires the lock for the given account key and returns the
// function releasing it.
func (l *AccountLocker) Lock(accountKey string) func() {
	l.mtx.Lock()
	lock, ok := l.locks[accountKey]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[accountKey] = lock
	}
	l.mtx.Unlock()

	lock.Lock()
	return lock.Unlock
}
