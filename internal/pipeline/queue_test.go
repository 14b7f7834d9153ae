package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/neilflood/moamosaic/internal/raster"
)

func TestQueuePutGetOrder(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := BlockReadResult{BlockIndex: i}
		if err := q.Put(ctx, r); err != nil {
			t.Fatalf("Put #%d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		got, ok, err := q.Get(ctx)
		if err != nil || !ok {
			t.Fatalf("Get #%d: %v, ok=%v", i, err, ok)
		}
		if got.BlockIndex != i {
			t.Errorf("Get #%d: BlockIndex = %d, want %d", i, got.BlockIndex, i)
		}
	}
}

func TestQueueCloseSignalsDone(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	_, ok, err := q.Get(context.Background())
	if err != nil {
		t.Fatalf("Get after Close: %v", err)
	}
	if ok {
		t.Fatal("Get after Close: ok = true, want false")
	}
}

func TestQueuePutBlocksUntilContextCanceled(t *testing.T) {
	q := NewQueue(1)
	if err := q.Put(context.Background(), BlockReadResult{BlockIndex: 0}); err != nil {
		t.Fatalf("first Put: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Queue is full (capacity 1, one item already in it); the second Put
	// must block until the context deadline fires rather than succeeding.
	err := q.Put(ctx, BlockReadResult{BlockIndex: 1})
	if err == nil {
		t.Fatal("Put on a full queue succeeded, want context deadline error")
	}
}

func TestQueueGetCanceledContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := q.Get(ctx)
	if err == nil {
		t.Fatal("Get with canceled context: expected error")
	}
}

func TestQueueZeroCapacityClampsToOne(t *testing.T) {
	q := NewQueue(0)
	if cap(q.ch) != 1 {
		t.Errorf("cap(q.ch) = %d, want 1", cap(q.ch))
	}
}

func TestQueueCarriesArrayData(t *testing.T) {
	q := NewQueue(1)
	arr := raster.NewArray(raster.Byte, 2, 2)
	arr.SetFloat(0, 0, 42)

	if err := q.Put(context.Background(), BlockReadResult{BlockIndex: 5, Data: arr}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := q.Get(context.Background())
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if got.Data.GetFloat(0, 0) != 42 {
		t.Errorf("got.Data.GetFloat(0,0) = %v, want 42", got.Data.GetFloat(0, 0))
	}
}
