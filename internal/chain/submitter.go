package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/config"
	"zkv-router/internal/encoder"
	"zkv-router/internal/metrics"
)

// Submitter ChainSubmitter: owns call construction and failure
// classification, and opens one session per operation.
type Submitter struct {
	cfg  config.ChainConfig
	dial DialFunc
	log  *logrus.Entry
}

// NewSubmitter Create a chain submitter. A nil dial uses DialSubstrate.
func NewSubmitter(cfg config.ChainConfig, dial DialFunc, log *logrus.Entry) *Submitter {
	if dial == nil {
		dial = DialSubstrate(log)
	}
	return &Submitter{cfg: cfg, dial: dial, log: log}
}

// Endpoint is the node this submitter talks to.
func (s *Submitter) Endpoint() string { return s.cfg.WsURL }

// SubmitProof sends the verifier call built from rec and returns the
// transaction hash.
func (s *Submitter) SubmitProof(ctx context.Context, rec *encoder.CanonicalProof, mnemonic string) (string, error) {
	call, err := SubmitProofCall(s.cfg.Pallet, s.cfg.Call, rec)
	if err != nil {
		return "", err
	}
	return s.execute(ctx, call, mnemonic)
}

// Remark stores data on chain via System.remark.
func (s *Submitter) Remark(ctx context.Context, data []byte, mnemonic string) (string, error) {
	return s.execute(ctx, RemarkCall(data), mnemonic)
}

// ListPallets is informational only; it never touches the network.
func (s *Submitter) ListPallets() string {
	return fmt.Sprintf(
		"Endpoint: %s\nProof submissions use %s.%s; remarks use %s.%s.\n"+
			"The full pallet list is published in the network's runtime documentation.",
		s.cfg.WsURL, s.palletOrDefault(), s.callOrDefault(), PalletSystem, CallRemark)
}

func (s *Submitter) palletOrDefault() string {
	if s.cfg.Pallet != "" {
		return s.cfg.Pallet
	}
	return DefaultProofPallet
}

func (s *Submitter) callOrDefault() string {
	if s.cfg.Call != "" {
		return s.cfg.Call
	}
	return DefaultProofCall
}

func (s *Submitter) execute(ctx context.Context, call RuntimeCallDescriptor, mnemonic string) (hash string, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStage("submit", start)
		outcome := "success"
		if err != nil {
			outcome = "error"
			var ce *ChainError
			if errors.As(err, &ce) {
				outcome = ce.Kind.String()
			}
		}
		metrics.Submissions.WithLabelValues(call.Name(), outcome).Inc()
	}()

	log := s.log.WithFields(logrus.Fields{"call": call.Name(), "endpoint": s.cfg.WsURL})

	sess, err := s.dial(ctx, s.cfg.WsURL)
	if err != nil {
		return "", asChainError(Connectivity, err)
	}
	defer sess.Close()

	signer, err := NewSigner(mnemonic, s.cfg.SS58Prefix)
	if err != nil {
		return "", err
	}

	hash, err = sess.SignAndSubmit(ctx, call, signer)
	if err != nil {
		ce := ClassifySubmitError(err)
		log.WithFields(logrus.Fields{"kind": ce.Kind.String(), "code": ce.Code}).Warn("❌ submission failed")
		return "", ce
	}

	log.WithField("tx_hash", hash).Info("✅ extrinsic accepted")
	return hash, nil
}

func asChainError(kind ErrorKind, err error) *ChainError {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce
	}
	return newChainError(kind, err)
}
