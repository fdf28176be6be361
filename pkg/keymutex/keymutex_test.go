package keymutex

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	km := New()

	var mu sync.Mutex
	var order []int

	km.Lock("med-1")

	done := make(chan struct{})
	go func() {
		km.Lock("med-1")
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		km.Unlock("med-1")
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	km.Unlock("med-1")

	<-done
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestLockIndependentKeys(t *testing.T) {
	km := New()
	km.Lock("med-1")
	defer km.Unlock("med-1")

	acquired := make(chan struct{})
	go func() {
		km.Lock("med-2")
		km.Unlock("med-2")
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
}

func TestUnlockWithoutLockPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New().Unlock("never-locked")
}

func TestConcurrentLockUnlockCleansUp(t *testing.T) {
	km := New()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("shared")
			counter++
			km.Unlock("shared")
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}
