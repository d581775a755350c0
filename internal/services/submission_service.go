package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/encoder"
	"zkv-router/internal/events"
	"zkv-router/internal/ledger"
	"zkv-router/internal/metrics"
	"zkv-router/internal/proofstore"
)

// ChainSubmitter is the chain side of the router.
type ChainSubmitter interface {
	Endpoint() string
	SubmitProof(ctx context.Context, rec *encoder.CanonicalProof, mnemonic string) (string, error)
	Remark(ctx context.Context, data []byte, mnemonic string) (string, error)
	ListPallets() string
}

// SubmitResult outcome of a proof submission
type SubmitResult struct {
	TxHash      string
	Fingerprint string
	Endpoint    string
	// Duplicate is set when the ledger already held this proof and nothing
	// was sent.
	Duplicate bool
}

// SubmissionService sends proof records and remarks to the chain.
type SubmissionService struct {
	submitter ChainSubmitter
	store     *proofstore.Store
	ledger    ledger.Ledger
	publisher events.Publisher
	log       *logrus.Entry
}

// NewSubmissionService Create submission service
func NewSubmissionService(
	submitter ChainSubmitter,
	store *proofstore.Store,
	l ledger.Ledger,
	publisher events.Publisher,
	log *logrus.Entry,
) *SubmissionService {
	if l == nil {
		l = ledger.Nop{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &SubmissionService{
		submitter: submitter,
		store:     store,
		ledger:    l,
		publisher: publisher,
		log:       log,
	}
}

// Submit reads the proof file at proofPath and submits it. Unless force is
// set, a proof already accepted by this endpoint is reported as a duplicate
// instead of being sent again.
func (s *SubmissionService) Submit(ctx context.Context, proofPath, requestID, mnemonic string, force bool) (*SubmitResult, error) {
	invocationID := uuid.NewString()
	endpoint := s.submitter.Endpoint()
	log := s.log.WithFields(logrus.Fields{
		"invocation_id": invocationID,
		"request_id":    requestID,
		"endpoint":      endpoint,
	})

	rec, err := s.store.Read(proofPath)
	if err != nil {
		return nil, s.submitFailed(ctx, log, invocationID, requestID, proofPath, &StageError{Stage: StageRead, Err: err})
	}
	fingerprint, err := ledger.Fingerprint(rec)
	if err != nil {
		return nil, s.submitFailed(ctx, log, invocationID, requestID, proofPath, &StageError{Stage: StageRead, Err: err})
	}
	log = log.WithField("fingerprint", fingerprint)

	if !force {
		prev, err := s.ledger.Lookup(ctx, fingerprint, endpoint)
		switch {
		case err == nil:
			log.WithField("tx_hash", prev.TxHash).Warn("⚠️ proof already submitted, skipping")
			publish(ctx, s.publisher, log, &events.Event{
				Type:         events.ProofDuplicate,
				InvocationID: invocationID,
				RequestID:    requestID,
				ProofPath:    proofPath,
				Fingerprint:  fingerprint,
				Endpoint:     endpoint,
				TxHash:       prev.TxHash,
				Timestamp:    time.Now().UTC(),
			})
			return &SubmitResult{TxHash: prev.TxHash, Fingerprint: fingerprint, Endpoint: endpoint, Duplicate: true}, nil
		case !errors.Is(err, ledger.ErrNotFound):
			return nil, s.submitFailed(ctx, log, invocationID, requestID, proofPath, &StageError{Stage: StageLedger, Err: err})
		}
	}

	txHash, err := s.submitter.SubmitProof(ctx, rec, mnemonic)
	if err != nil {
		return nil, s.submitFailed(ctx, log, invocationID, requestID, proofPath, &StageError{Stage: StageSubmit, Err: err})
	}
	log = log.WithField("tx_hash", txHash)
	log.Info("✅ proof submitted")

	entry := &ledger.Entry{
		Fingerprint: fingerprint,
		Endpoint:    endpoint,
		TxHash:      txHash,
		RequestID:   requestID,
		ProofPath:   proofPath,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		// the transaction is already in the pool
		log.WithError(err).Error("failed to record submission in ledger")
	}

	publish(ctx, s.publisher, log, &events.Event{
		Type:         events.ProofSubmitted,
		InvocationID: invocationID,
		RequestID:    requestID,
		ProofPath:    proofPath,
		Fingerprint:  fingerprint,
		Endpoint:     endpoint,
		TxHash:       txHash,
		Timestamp:    entry.SubmittedAt,
	})
	return &SubmitResult{TxHash: txHash, Fingerprint: fingerprint, Endpoint: endpoint}, nil
}

// Remark posts the raw bytes of the file at path as a System.remark.
func (s *SubmissionService) Remark(ctx context.Context, path, mnemonic string) (string, error) {
	invocationID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{
		"invocation_id": invocationID,
		"endpoint":      s.submitter.Endpoint(),
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return "", s.remarkFailed(ctx, log, invocationID, path, &StageError{Stage: StageRead, Err: fmt.Errorf("failed to read %s: %w", path, err)})
	}

	txHash, err := s.submitter.Remark(ctx, data, mnemonic)
	if err != nil {
		return "", s.remarkFailed(ctx, log, invocationID, path, &StageError{Stage: StageRemark, Err: err})
	}
	log.WithFields(logrus.Fields{"tx_hash": txHash, "bytes": len(data)}).Info("✅ remark submitted")

	publish(ctx, s.publisher, log, &events.Event{
		Type:         events.RemarkSubmitted,
		InvocationID: invocationID,
		ProofPath:    path,
		Endpoint:     s.submitter.Endpoint(),
		TxHash:       txHash,
		Timestamp:    time.Now().UTC(),
	})
	return txHash, nil
}

// ListPallets returns the informational pallet listing.
func (s *SubmissionService) ListPallets() string {
	return s.submitter.ListPallets()
}

// History lists recorded submissions, newest first.
func (s *SubmissionService) History(ctx context.Context, limit int) ([]ledger.Entry, error) {
	entries, err := s.ledger.List(ctx, limit)
	if err != nil {
		return nil, &StageError{Stage: StageLedger, Err: err}
	}
	return entries, nil
}

func (s *SubmissionService) submitFailed(ctx context.Context, log *logrus.Entry, invocationID, requestID, path string, err error) error {
	s.failed(ctx, log, &events.Event{
		Type:         events.ProofSubmitFailed,
		InvocationID: invocationID,
		RequestID:    requestID,
		ProofPath:    path,
	}, err)
	return err
}

func (s *SubmissionService) remarkFailed(ctx context.Context, log *logrus.Entry, invocationID, path string, err error) error {
	s.failed(ctx, log, &events.Event{
		Type:         events.RemarkFailed,
		InvocationID: invocationID,
		ProofPath:    path,
	}, err)
	return err
}

func (s *SubmissionService) failed(ctx context.Context, log *logrus.Entry, e *events.Event, err error) {
	stage := stageOf(err)
	kind := ErrorKind(err)
	metrics.StageFailures.WithLabelValues(stage, kind).Inc()
	log.WithFields(logrus.Fields{"stage": stage, "kind": kind}).WithError(err).Error("❌ chain operation failed")

	e.Endpoint = s.submitter.Endpoint()
	e.Stage = stage
	e.ErrorKind = kind
	e.Error = err.Error()
	e.Timestamp = time.Now().UTC()
	publish(ctx, s.publisher, log, e)
}
