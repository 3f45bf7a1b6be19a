package spsc

import (
	"sync"
	"testing"
)

func TestQueueCapacityRoundsToPowerOfTwo(t *testing.T) {
	q := New[int](10)
	if q.Cap() != 16 {
		t.Fatalf("expected cap 16, got %d", q.Cap())
	}
}

func TestQueuePushPopOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		if !q.TryPush(i) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if q.TryPush(99) {
		t.Fatalf("push into full queue should fail")
	}
	for i := 0; i < 4; i++ {
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("pop %d: got %d, %v", i, v, ok)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("pop from empty queue should fail")
	}
}

func TestQueueConcurrentProducerConsumer(t *testing.T) {
	const n = 100000
	q := New[int](256)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.TryPush(i) {
			}
		}
	}()

	sum := 0
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for {
				if v, ok := q.TryPop(); ok {
					sum += v
					break
				}
			}
		}
	}()

	wg.Wait()
	want := n * (n - 1) / 2
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}
}
