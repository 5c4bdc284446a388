package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	kl := NewKeyLock()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("1001:cancellation")
			counter++
			kl.Unlock("1001:cancellation")
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestKeyLockIndependentKeys(t *testing.T) {
	kl := NewKeyLock()
	kl.Lock("1001:cancellation")
	// a different key must not block
	done := make(chan struct{})
	go func() {
		kl.Lock("1002:cancellation")
		kl.Unlock("1002:cancellation")
		close(done)
	}()
	<-done
	kl.Unlock("1001:cancellation")
}

func TestKeyLockReleasesEntries(t *testing.T) {
	kl := NewKeyLock()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			keys := []string{"1001:cancellation", "1002:address_change", "1003:cancellation"}
			key := keys[n%len(keys)]
			kl.Lock(key)
			kl.Unlock(key)
		}(i)
	}
	wg.Wait()

	kl.mu.Lock()
	defer kl.mu.Unlock()
	require.Empty(t, kl.locks)
}
