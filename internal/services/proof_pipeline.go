package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/encoder"
	"zkv-router/internal/events"
	"zkv-router/internal/extractor"
	"zkv-router/internal/ledger"
	"zkv-router/internal/metrics"
	"zkv-router/internal/proofstore"
	"zkv-router/internal/renderer"
)

const previewLen = 500

// ArtifactFetcher downloads a proof artifact.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ConvertOptions one conversion request
type ConvertOptions struct {
	RequestID string
	// OutputPath receives the canonical proof record.
	OutputPath string
	// DetailsPath, when set, receives a proof details report.
	DetailsPath string
	// ArtifactPath, when set, keeps the raw downloaded artifact.
	ArtifactPath string
}

// ConvertResult what a conversion produced
type ConvertResult struct {
	InvocationID string
	Record       *encoder.CanonicalProof
	Metadata     *extractor.Record
	OutputPath   string
	Fingerprint  string
}

// ProofPipeline runs render, extract, fetch, encode and write for one
// request id. It holds no per-request state, so one value may serve
// concurrent invocations.
type ProofPipeline struct {
	renderer  renderer.PageRenderer
	extractor *extractor.Extractor
	fetcher   ArtifactFetcher
	encoder   *encoder.Encoder
	store     *proofstore.Store
	publisher events.Publisher
	log       *logrus.Entry
}

// NewProofPipeline Create the conversion pipeline
func NewProofPipeline(
	r renderer.PageRenderer,
	x *extractor.Extractor,
	f ArtifactFetcher,
	e *encoder.Encoder,
	store *proofstore.Store,
	publisher events.Publisher,
	log *logrus.Entry,
) *ProofPipeline {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ProofPipeline{
		renderer:  r,
		extractor: x,
		fetcher:   f,
		encoder:   e,
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// Convert produces and persists the canonical proof for opts.RequestID.
func (p *ProofPipeline) Convert(ctx context.Context, opts ConvertOptions) (*ConvertResult, error) {
	invocationID := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{
		"invocation_id": invocationID,
		"request_id":    opts.RequestID,
	})

	res, err := p.convert(ctx, log, opts)
	if err != nil {
		p.fail(ctx, log, invocationID, opts, err)
		return nil, err
	}
	res.InvocationID = invocationID

	publish(ctx, p.publisher, log, &events.Event{
		Type:         events.ProofConverted,
		InvocationID: invocationID,
		RequestID:    opts.RequestID,
		ProofPath:    res.OutputPath,
		Fingerprint:  res.Fingerprint,
		Timestamp:    time.Now().UTC(),
	})
	return res, nil
}

func (p *ProofPipeline) convert(ctx context.Context, log *logrus.Entry, opts ConvertOptions) (*ConvertResult, error) {
	if opts.RequestID == "" {
		return nil, &StageError{Stage: StageRender, Err: fmt.Errorf("request id is required")}
	}

	start := time.Now()
	page, err := p.renderer.Render(ctx, opts.RequestID)
	metrics.ObserveStage(StageRender, start)
	if err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}
	log.WithField("bytes", len(page)).Info("🌐 request page rendered")
	log.Debugf("page preview: %s", preview(page))

	meta, err := p.extractor.Extract(page)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}

	artifact, err := p.fetcher.Fetch(ctx, meta.ArtifactURL)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}
	if opts.ArtifactPath != "" {
		if err := writeFile(opts.ArtifactPath, artifact); err != nil {
			return nil, &StageError{Stage: StageWrite, Err: err}
		}
		log.WithField("path", opts.ArtifactPath).Info("artifact kept")
	}

	rec, err := p.encoder.Convert(ctx, artifact, meta.VerificationKey)
	if err != nil {
		return nil, &StageError{Stage: StageEncode, Err: err}
	}
	fingerprint, err := ledger.Fingerprint(rec)
	if err != nil {
		return nil, &StageError{Stage: StageEncode, Err: err}
	}

	if err := p.store.Write(opts.OutputPath, rec); err != nil {
		return nil, &StageError{Stage: StageWrite, Err: err}
	}
	log.WithFields(logrus.Fields{
		"path":        opts.OutputPath,
		"fingerprint": fingerprint,
	}).Info("✅ proof record written")

	if opts.DetailsPath != "" {
		proof, _ := rec.ProofBytes()
		pubs, _ := rec.PublicInputBytes()
		details := &proofstore.Details{
			RequestID:       opts.RequestID,
			ArtifactURL:     meta.ArtifactURL,
			ArtifactBytes:   len(artifact),
			ProofBytes:      len(proof),
			PublicBytes:     len(pubs),
			VerificationKey: rec.VerificationKey,
			Fingerprint:     fingerprint,
			Strategy:        meta.Strategy,
			GeneratedAt:     time.Now().UTC(),
		}
		if err := p.store.WriteDetails(opts.DetailsPath, details); err != nil {
			return nil, &StageError{Stage: StageWrite, Err: err}
		}
	}

	return &ConvertResult{
		Record:      rec,
		Metadata:    meta,
		OutputPath:  opts.OutputPath,
		Fingerprint: fingerprint,
	}, nil
}

func (p *ProofPipeline) fail(ctx context.Context, log *logrus.Entry, invocationID string, opts ConvertOptions, err error) {
	stage := stageOf(err)
	kind := ErrorKind(err)
	metrics.StageFailures.WithLabelValues(stage, kind).Inc()
	log.WithFields(logrus.Fields{"stage": stage, "kind": kind}).WithError(err).Error("❌ conversion failed")

	publish(ctx, p.publisher, log, &events.Event{
		Type:         events.ConversionFailed,
		InvocationID: invocationID,
		RequestID:    opts.RequestID,
		Stage:        stage,
		ErrorKind:    kind,
		Error:        err.Error(),
		Timestamp:    time.Now().UTC(),
	})
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLen {
		return s
	}
	return string([]rune(s)[:previewLen]) + "..."
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
