// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists reconstruction summaries in BadgerDB so earlier
// runs can be listed and compared.
//
// Keys are "result/<scenario>/<instantiation>" with the instantiation ID
// zero padded, so a prefix scan returns a scenario's results in ID order.
// Values are JSON encoded Records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AxiomTrace/services/trace/reconstruct"
	"github.com/AleutianAI/AxiomTrace/services/trace/storage/badger"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

const keyPrefix = "result/"

var (
	// ErrNotFound is returned by Get for an absent record.
	ErrNotFound = errors.New("result not found")

	// ErrInvalidScenarioName is returned for names that cannot be keyed.
	ErrInvalidScenarioName = errors.New("invalid scenario name")
)

var storeOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "axiomtrace_store_operations_total",
	Help: "Result store operations by operation and status.",
}, []string{"op", "status"})

// Record is one stored reconstruction.
type Record struct {
	Scenario string              `json:"scenario"`
	Digest   string              `json:"digest,omitempty"`
	SavedAt  time.Time           `json:"saved_at"`
	Summary  reconstruct.Summary `json:"summary"`
}

// Store reads and writes Records.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db *badger.DB
}

// New wraps an open database. The caller keeps ownership of db.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens the database for cfg and wraps it. Close releases it.
func Open(cfg badger.Config) (*Store, error) {
	db, err := badger.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(scenario string, inst term.InstID) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", keyPrefix, scenario, inst))
}

func scenarioPrefix(scenario string) []byte {
	if scenario == "" {
		return []byte(keyPrefix)
	}
	return []byte(keyPrefix + scenario + "/")
}

func checkName(scenario string) error {
	if scenario == "" || strings.Contains(scenario, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidScenarioName, scenario)
	}
	return nil
}

func observe(op string, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	storeOps.WithLabelValues(op, status).Inc()
}

// Put stores rec, replacing any earlier record for the same scenario and
// instantiation. A zero SavedAt is set to now.
func (s *Store) Put(ctx context.Context, rec *Record) (err error) {
	defer func() { observe("put", err) }()

	if err := checkName(rec.Scenario); err != nil {
		return err
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(recordKey(rec.Scenario, rec.Summary.InstantiationID), data)
	})
}

// Get returns the record for scenario and inst.
func (s *Store) Get(ctx context.Context, scenario string, inst term.InstID) (rec *Record, err error) {
	defer func() { observe("get", err) }()

	if err := checkName(scenario); err != nil {
		return nil, err
	}
	err = s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(recordKey(scenario, inst))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%d", ErrNotFound, scenario, inst)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec = &Record{}
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the records of scenario in instantiation order, or every
// record when scenario is empty.
func (s *Store) List(ctx context.Context, scenario string) (recs []*Record, err error) {
	defer func() { observe("list", err) }()

	if scenario != "" {
		if err := checkName(scenario); err != nil {
			return nil, err
		}
	}
	prefix := scenarioPrefix(scenario)
	err = s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		it := txn.NewIterator(dgbadger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			recs = append(recs, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Scenarios returns the distinct scenario names with stored results, in
// key order.
func (s *Store) Scenarios(ctx context.Context) (names []string, err error) {
	defer func() { observe("scenarios", err) }()

	prefix := []byte(keyPrefix)
	err = s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), keyPrefix)
			name, _, ok := strings.Cut(rest, "/")
			if !ok || name == last {
				continue
			}
			names = append(names, name)
			last = name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Delete removes every record of scenario and returns how many there were.
func (s *Store) Delete(ctx context.Context, scenario string) (n int, err error) {
	defer func() { observe("delete", err) }()

	if err := checkName(scenario); err != nil {
		return 0, err
	}
	prefix := scenarioPrefix(scenario)
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
