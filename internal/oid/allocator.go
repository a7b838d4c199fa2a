// Package oid hands out cluster-wide unique object identifiers backed by a
// persisted high-water mark.
package oid

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// ErrExhausted means the 32-bit identifier space is spent. Fatal upstream.
var ErrExhausted = errors.New("oid: object id space exhausted")

// reserveBlock is how many identifiers are claimed per persisted mark. The
// mark is always persisted ahead of the ids handed out, so a crash can skip
// identifiers but never reissue one.
const reserveBlock = 256

// Store persists the allocator high-water mark.
type Store interface {
	ObjectIDHighWaterMark(ctx context.Context) (uint32, error)
	SaveObjectIDHighWaterMark(ctx context.Context, v uint32) error
}

// Allocator is the monotonic identifier source. Single-threaded.
type Allocator struct {
	store   Store
	current uint32
	ceiling uint32
}

// New loads the persisted mark and resumes allocation above it.
func New(ctx context.Context, store Store) (*Allocator, error) {
	mark, err := store.ObjectIDHighWaterMark(ctx)
	if err != nil {
		return nil, fmt.Errorf("oid: load high-water mark: %w", err)
	}
	log.Info().Msgf("oid.allocator resumed mark=%d", mark)
	return &Allocator{store: store, current: mark, ceiling: mark}, nil
}

// Generate returns the next unused identifier, extending the persisted
// reservation when the current block is spent.
func (a *Allocator) Generate(ctx context.Context) (uint32, error) {
	if a.current == math.MaxUint32 {
		return 0, ErrExhausted
	}
	if a.current == a.ceiling {
		next := a.ceiling + reserveBlock
		if next < a.ceiling {
			next = math.MaxUint32
		}
		if err := a.store.SaveObjectIDHighWaterMark(ctx, next); err != nil {
			return 0, fmt.Errorf("oid: persist high-water mark: %w", err)
		}
		a.ceiling = next
	}
	a.current++
	return a.current, nil
}

// Flush persists the exact mark so a clean restart resumes without a gap.
func (a *Allocator) Flush(ctx context.Context) error {
	if err := a.store.SaveObjectIDHighWaterMark(ctx, a.current); err != nil {
		return fmt.Errorf("oid: persist high-water mark: %w", err)
	}
	a.ceiling = a.current
	return nil
}

// Current is the last identifier handed out.
func (a *Allocator) Current() uint32 {
	return a.current
}
