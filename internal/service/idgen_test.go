package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeStoreCounter struct {
	count int
	err   error
	calls int
}

func (f *fakeStoreCounter) CountByCategory(context.Context, string) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeMirrorCounter struct {
	count int
	err   error
}

func (f *fakeMirrorCounter) CountByCategory(string) (int, error) {
	return f.count, f.err
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func TestGenerateFormat(t *testing.T) {
	gen := NewTicketIDGenerator(&fakeStoreCounter{count: 4}, &fakeMirrorCounter{}, zap.NewNop(), fixedNow)

	id := gen.Generate(context.Background(), "Network", "LOS1")
	assert.Equal(t, "KASI-LOS1-20260314-NET-0005", id)
}

func TestGenerateUnknownBuildingAndCategory(t *testing.T) {
	gen := NewTicketIDGenerator(&fakeStoreCounter{}, &fakeMirrorCounter{}, zap.NewNop(), fixedNow)

	id := gen.Generate(context.Background(), "Gardening", "Warehouse 9")
	assert.Equal(t, "KASI-HQ-20260314-GEN-0001", id)
}

func TestGenerateIdempotentBeforeCreate(t *testing.T) {
	store := &fakeStoreCounter{count: 2}
	gen := NewTicketIDGenerator(store, &fakeMirrorCounter{}, zap.NewNop(), fixedNow)

	first := gen.Generate(context.Background(), "Network", "LOS1")
	second := gen.Generate(context.Background(), "Network", "LOS1")
	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.calls)
}

func TestGenerateSequentialSuffixes(t *testing.T) {
	store := &fakeStoreCounter{}
	gen := NewTicketIDGenerator(store, &fakeMirrorCounter{}, zap.NewNop(), fixedNow)

	for i := 0; i < 3; i++ {
		store.count = i
		id := gen.Generate(context.Background(), "Network", "LOS1")
		assert.Equal(t, fmt.Sprintf("KASI-LOS1-20260314-NET-%04d", i+1), id)
	}
}

func TestGenerateFallsBackToMirror(t *testing.T) {
	store := &fakeStoreCounter{err: errors.New("store down")}
	gen := NewTicketIDGenerator(store, &fakeMirrorCounter{count: 9}, zap.NewNop(), fixedNow)

	id := gen.Generate(context.Background(), "Hardware", "LOS2")
	assert.Equal(t, "KASI-LOS2-20260314-HW-0010", id)
}

func TestGenerateBothCountersDown(t *testing.T) {
	gen := NewTicketIDGenerator(
		&fakeStoreCounter{err: errors.New("store down")},
		&fakeMirrorCounter{err: errors.New("file gone")},
		zap.NewNop(), fixedNow)

	id := gen.Generate(context.Background(), "Security", "ABJ1")
	assert.Equal(t, "KASI-ABJ1-20260314-SEC-0001", id)
}
