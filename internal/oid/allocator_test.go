package oid

import (
	"context"
	"errors"
	"math"
	"testing"
)

type memStore struct {
	mark  uint32
	saves int
	err   error
}

func (m *memStore) ObjectIDHighWaterMark(context.Context) (uint32, error) {
	return m.mark, m.err
}

func (m *memStore) SaveObjectIDHighWaterMark(_ context.Context, v uint32) error {
	if m.err != nil {
		return m.err
	}
	m.mark = v
	m.saves++
	return nil
}

func TestGenerateIsStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, &memStore{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	prev := uint32(0)
	for i := 0; i < 600; i++ {
		id, err := a.Generate(ctx)
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		if id <= prev {
			t.Fatalf("id %d not above %d", id, prev)
		}
		prev = id
	}
}

func TestMarkIsPersistedAheadOfIssuedIDs(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	a, _ := New(ctx, store)

	id, err := a.Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if store.mark <= id {
		t.Fatalf("mark %d must sit ahead of issued id %d", store.mark, id)
	}
	if store.saves != 1 {
		t.Fatalf("expected one reservation save, got %d", store.saves)
	}

	// The rest of the block allocates without touching the store.
	for i := 0; i < reserveBlock-1; i++ {
		if _, err := a.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}
	}
	if store.saves != 1 {
		t.Fatalf("block must be consumed before re-persisting, saves=%d", store.saves)
	}
	if _, err := a.Generate(ctx); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if store.saves != 2 {
		t.Fatalf("expected second reservation, saves=%d", store.saves)
	}
}

func TestRestartNeverReissuesIDs(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	a, _ := New(ctx, store)

	var last uint32
	for i := 0; i < 10; i++ {
		last, _ = a.Generate(ctx)
	}

	// Crash without Flush: the next process resumes from the persisted mark.
	b, _ := New(ctx, store)
	id, err := b.Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id <= last {
		t.Fatalf("restarted allocator reissued %d (last was %d)", id, last)
	}
}

func TestFlushResumesWithoutGap(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	a, _ := New(ctx, store)

	var last uint32
	for i := 0; i < 10; i++ {
		last, _ = a.Generate(ctx)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if store.mark != last {
		t.Fatalf("flush must persist the exact mark: %d != %d", store.mark, last)
	}

	b, _ := New(ctx, store)
	id, _ := b.Generate(ctx)
	if id != last+1 {
		t.Fatalf("clean restart must continue at %d, got %d", last+1, id)
	}
}

func TestExhaustion(t *testing.T) {
	ctx := context.Background()
	store := &memStore{mark: math.MaxUint32}
	a, err := New(ctx, store)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := a.Generate(ctx); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestStoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	store := &memStore{err: errors.New("db down")}
	if _, err := New(ctx, store); err == nil {
		t.Fatalf("expected load failure")
	}

	store2 := &memStore{}
	a, _ := New(ctx, store2)
	store2.err = errors.New("db down")
	if _, err := a.Generate(ctx); err == nil {
		t.Fatalf("expected reservation failure to surface")
	}
}
