package util

import "sync"

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock serializes work per logical key. Resume-on-reply and
// resume-on-timeout for the same workflow must not interleave within a
// process; cross-process safety comes from the store's compare-and-swap.
// Entries are reference counted and removed on the last unlock, so the
// map stays bounded by the number of keys currently held or waited on.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: make(map[string]*keyLockEntry),
	}
}

func (kl *KeyLock) Lock(key string) {
	kl.mu.Lock()
	e, ok := kl.locks[key]
	if !ok {
		e = &keyLockEntry{}
		kl.locks[key] = e
	}
	e.refs++
	kl.mu.Unlock()
	e.mu.Lock()
}

func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	e, ok := kl.locks[key]
	if !ok {
		kl.mu.Unlock()
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()
	e.mu.Unlock()
}
