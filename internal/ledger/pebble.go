package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/sirupsen/logrus"
)

const submissionPrefix = "submission/"

// PebbleLedger keeps the ledger in a local pebble store.
type PebbleLedger struct {
	db  *pebble.DB
	log *logrus.Entry
}

// OpenPebble opens or creates the store at path.
func OpenPebble(path string, log *logrus.Entry) (*PebbleLedger, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	log.WithField("path", path).Debug("ledger opened")
	return &PebbleLedger{db: db, log: log}, nil
}

func entryKey(endpoint, fingerprint string) []byte {
	return []byte(submissionPrefix + endpoint + "|" + fingerprint)
}

func (p *PebbleLedger) Lookup(_ context.Context, fingerprint, endpoint string) (*Entry, error) {
	val, closer, err := p.db.Get(entryKey(endpoint, fingerprint))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger lookup failed: %w", err)
	}
	defer closer.Close()

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, fmt.Errorf("corrupt ledger entry: %w", err)
	}
	return &e, nil
}

func (p *PebbleLedger) Record(_ context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}
	if err := p.db.Set(entryKey(e.Endpoint, e.Fingerprint), data, &pebble.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("ledger write failed: %w", err)
	}
	return nil
}

// List returns the most recent entries first.
func (p *PebbleLedger) List(_ context.Context, limit int) ([]Entry, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(submissionPrefix),
		UpperBound: []byte(submissionPrefix[:len(submissionPrefix)-1] + "0"), // '/'+1
	})
	if err != nil {
		return nil, fmt.Errorf("ledger scan failed: %w", err)
	}
	defer iter.Close()

	var out []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			p.log.WithField("key", string(iter.Key())).Warn("skipping corrupt ledger entry")
			continue
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("ledger scan failed: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *PebbleLedger) Close() error { return p.db.Close() }
