// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package modelstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
)

// Key prefixes. The current model of a vendor lives under prefixCurrent;
// every deployment is also appended under prefixHistory.
const (
	prefixCurrent = "model:"
	prefixHistory = "history:"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("model store is closed")

var _ forecast.ModelPersister = (*Store)(nil)

// Store persists deployed vendor models in BadgerDB.
type Store struct {
	db         *badger.DB
	inMemory   bool
	gcInterval time.Duration

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store. An empty cfg.Path keeps models in memory.
func Open(cfg config.ModelStoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.Path == "").
		Msg("Model store opened")
	return &Store{db: db, inMemory: cfg.Path == "", gcInterval: 10 * time.Minute}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func historyKey(dm *forecast.DeployedModel) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixHistory, dm.VendorID, dm.DeployedAt.UnixNano()))
}

// SaveModel makes dm the vendor's current model and appends it to the history.
func (s *Store) SaveModel(ctx context.Context, dm *forecast.DeployedModel) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dm == nil || dm.VendorID == "" || dm.Model == nil {
		return errors.New("deployed model requires a vendor and a model")
	}

	data, err := json.Marshal(dm)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixCurrent+dm.VendorID), data); err != nil {
			return err
		}
		return txn.Set(historyKey(dm), data)
	})
	if err != nil {
		return fmt.Errorf("write model for %s: %w", dm.VendorID, err)
	}
	return nil
}

// LoadModels returns the current model of every vendor. Entries that fail
// to decode are logged and skipped.
func (s *Store) LoadModels(ctx context.Context) ([]*forecast.DeployedModel, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	models, err := s.scan(ctx, []byte(prefixCurrent))
	if err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}
	return models, nil
}

// History returns every model deployed for a vendor, oldest first.
func (s *Store) History(ctx context.Context, vendorID string) ([]*forecast.DeployedModel, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	models, err := s.scan(ctx, []byte(prefixHistory+vendorID+":"))
	if err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].DeployedAt.Before(models[j].DeployedAt)
	})
	return models, nil
}

func (s *Store) scan(ctx context.Context, prefix []byte) ([]*forecast.DeployedModel, error) {
	var out []*forecast.DeployedModel
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var dm forecast.DeployedModel
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable model entry")
				continue
			}
			out = append(out, &dm)
		}
		return nil
	})
	return out, err
}

// Serve runs value log garbage collection until ctx is done. It lets the
// store run as a supervised service.
func (s *Store) Serve(ctx context.Context) error {
	if s.inMemory {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runGC()
		}
	}
}

func (s *Store) runGC() {
	if s.checkOpen() != nil {
		return
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return
		}
		if err != nil {
			logging.Warn().Err(err).Msg("Model store value log GC failed")
			return
		}
	}
}

// String names the service in supervisor logs.
func (s *Store) String() string { return "model-store-gc" }

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Model store closed")
	return nil
}
