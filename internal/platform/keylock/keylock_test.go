package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	l := New()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("user:pkg")
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("concurrent holders: want=1 got=%d", maxSeen)
	}
	if l.Len() != 0 {
		t.Fatalf("entries leaked: %d", l.Len())
	}
}

func TestLockDoesNotBlockOtherKeys(t *testing.T) {
	l := New()
	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock on b blocked behind a")
	}
}
