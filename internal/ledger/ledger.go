package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"zkv-router/internal/config"
	"zkv-router/internal/encoder"
)

// ErrNotFound is returned by Lookup when nothing was recorded.
var ErrNotFound = errors.New("submission not found")

// Entry is one accepted submission.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Endpoint    string    `json:"endpoint"`
	TxHash      string    `json:"tx_hash"`
	RequestID   string    `json:"request_id,omitempty"`
	ProofPath   string    `json:"proof_path,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Ledger remembers accepted submissions per (fingerprint, endpoint) so the
// same proof is not paid for twice on one chain.
type Ledger interface {
	Lookup(ctx context.Context, fingerprint, endpoint string) (*Entry, error)
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Fingerprint is blake2b-256 over the key, the length-prefixed proof and the
// public inputs, as 0x-hex.
func Fingerprint(rec *encoder.CanonicalProof) (string, error) {
	key, err := rec.Key()
	if err != nil {
		return "", err
	}
	proof, err := rec.ProofBytes()
	if err != nil {
		return "", err
	}
	pubs, err := rec.PublicInputBytes()
	if err != nil {
		return "", err
	}

	h, _ := blake2b.New256(nil)
	h.Write(key[:])
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(proof)))
	h.Write(n[:])
	h.Write(proof)
	h.Write(pubs)
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

// Open builds the ledger named by cfg.Driver.
func Open(cfg config.LedgerConfig, log *logrus.Entry) (Ledger, error) {
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "pebble":
		return OpenPebble(cfg.Path, log)
	case "postgres":
		return OpenPostgres(cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// Nop records nothing and finds nothing.
type Nop struct{}

func (Nop) Lookup(context.Context, string, string) (*Entry, error) { return nil, ErrNotFound }
func (Nop) Record(context.Context, *Entry) error                   { return nil }
func (Nop) List(context.Context, int) ([]Entry, error)             { return nil, nil }
func (Nop) Close() error                                           { return nil }
