// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package state persists accumulator state in BadgerDB so per-user minima
// and pair values survive a restart.
//
// Every accumulator update is written through as one Badger transaction:
//
//	ew:<event>:<user>  -> stored minimum weight
//	mw:<eventA>:<eventB> -> latest pair value (eventA < eventB)
//
// Load rebuilds an aggregator.Snapshot from those keys.
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("state store is closed")

const (
	prefixUserWeight = "ew:"
	prefixPair       = "mw:"
)

// Config configures the store.
type Config struct {
	Path       string
	SyncWrites bool

	// InMemory runs Badger without touching disk. Path is ignored.
	InMemory bool

	GCInterval time.Duration
	GCRatio    float64
}

// entry is the JSON value stored under every key.
type entry struct {
	Value     float64   `json:"v"`
	UpdatedAt time.Time `json:"t"`
}

// Store is a Badger-backed write-through store for accumulator state.
type Store struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("state path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	opts.SyncWrites = cfg.SyncWrites

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("state store opened")

	return &Store{db: db, config: cfg}, nil
}

func (s *Store) checkNotClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func userWeightKey(eventID, userID int64) []byte {
	return []byte(prefixUserWeight + strconv.FormatInt(eventID, 10) + ":" + strconv.FormatInt(userID, 10))
}

func pairKey(p models.Pair) []byte {
	return []byte(prefixPair + strconv.FormatInt(p.A, 10) + ":" + strconv.FormatInt(p.B, 10))
}

// parseIDs splits "<prefix><a>:<b>" into its two ids.
func parseIDs(key, prefix string) (int64, int64, error) {
	rest := strings.TrimPrefix(key, prefix)
	left, right, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed key %q", key)
	}
	a, err := strconv.ParseInt(left, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed key %q: %w", key, err)
	}
	b, err := strconv.ParseInt(right, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed key %q: %w", key, err)
	}
	return a, b, nil
}

// Apply writes an accumulator update. The user weight is written only when it
// changed; every emitted pair is written.
func (s *Store) Apply(ctx context.Context, u aggregator.Update) (err error) {
	defer func() { metrics.RecordStateWrite(err) }()

	if err := s.checkNotClosed(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !u.WeightChanged && len(u.Similarities) == 0 {
		return nil
	}

	ts := u.Action.Timestamp
	return s.db.Update(func(txn *badger.Txn) error {
		if u.WeightChanged {
			data, err := json.Marshal(entry{Value: u.UserWeight, UpdatedAt: ts})
			if err != nil {
				return fmt.Errorf("marshal user weight: %w", err)
			}
			if err := txn.SetEntry(badger.NewEntry(userWeightKey(u.Action.EventID, u.Action.UserID), data)); err != nil {
				return fmt.Errorf("write user weight: %w", err)
			}
		}
		for _, sim := range u.Similarities {
			data, err := json.Marshal(entry{Value: sim.Score, UpdatedAt: sim.Timestamp})
			if err != nil {
				return fmt.Errorf("marshal pair: %w", err)
			}
			if err := txn.SetEntry(badger.NewEntry(pairKey(sim.Pair()), data)); err != nil {
				return fmt.Errorf("write pair: %w", err)
			}
		}
		return nil
	})
}

// Load reads the whole persisted state. Malformed entries are logged and skipped.
func (s *Store) Load(ctx context.Context) (aggregator.Snapshot, error) {
	var snap aggregator.Snapshot
	if err := s.checkNotClosed(); err != nil {
		return snap, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			key := string(item.Key())

			var e entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				logging.Warn().Err(err).Str("key", key).Msg("state store failed to unmarshal entry")
				continue
			}

			switch {
			case strings.HasPrefix(key, prefixUserWeight):
				eventID, userID, err := parseIDs(key, prefixUserWeight)
				if err != nil {
					logging.Warn().Err(err).Msg("state store skipping entry")
					continue
				}
				snap.UserWeights = append(snap.UserWeights, aggregator.UserWeight{EventID: eventID, UserID: userID, Weight: e.Value})
			case strings.HasPrefix(key, prefixPair):
				a, b, err := parseIDs(key, prefixPair)
				if err != nil {
					logging.Warn().Err(err).Msg("state store skipping entry")
					continue
				}
				snap.Pairs = append(snap.Pairs, aggregator.PairWeight{Pair: models.CanonicalPair(a, b), Score: e.Value})
			}
		}
		return nil
	})
	if err != nil {
		return aggregator.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snap, nil
}

// RunGC triggers BadgerDB value log garbage collection until nothing is rewritten.
func (s *Store) RunGC() error {
	if err := s.checkNotClosed(); err != nil {
		return err
	}
	if s.config.InMemory {
		return nil
	}

	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database. Calling Close twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("state store closed")
	return nil
}
