package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTable_SerializesSameKey(t *testing.T) {
	var table Table
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := table.Lock(context.Background(), "alice")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d after all unlocks, want 0", table.Len())
	}
}

func TestTable_DifferentKeysIndependent(t *testing.T) {
	var table Table

	unlockA, err := table.Lock(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockB, err := table.Lock(ctx, "bob")
	if err != nil {
		t.Fatalf("Lock(bob) blocked by alice: %v", err)
	}
	unlockB()
}

func TestTable_ContextCancel(t *testing.T) {
	var table Table

	unlock, err := table.Lock(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := table.Lock(ctx, "alice"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	unlock()
	unlock() // second call is a no-op

	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}
