package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/chain"
	"zkv-router/internal/clients"
	"zkv-router/internal/config"
	"zkv-router/internal/encoder"
	"zkv-router/internal/events"
	"zkv-router/internal/extractor"
	"zkv-router/internal/ledger"
	"zkv-router/internal/proofstore"
	"zkv-router/internal/renderer"
	"zkv-router/internal/services"
)

// ServiceContainer builds and owns the long-lived components. The ledger
// is opened on first use so that convert-only runs never touch it.
type ServiceContainer struct {
	Config *config.Config

	// Pipeline
	Renderer renderer.PageRenderer
	Fetcher  *clients.ArtifactClient
	Encoder  *encoder.Encoder
	Store    *proofstore.Store
	Pipeline *services.ProofPipeline

	// Chain
	Submitter *chain.Submitter

	// Events: Hub feeds live websocket streams, Publisher is Hub plus the
	// configured external sink.
	Hub       *events.Hub
	Publisher events.Publisher

	ledger      ledger.Ledger
	submissions *services.SubmissionService
	log         *logrus.Entry
}

// NewServiceContainer wires every component from cfg.
func NewServiceContainer(cfg *config.Config, log *logrus.Entry) (*ServiceContainer, error) {
	r, err := renderer.New(cfg.Renderer, cfg.Explorer.BaseURL)
	if err != nil {
		return nil, err
	}

	shrinker, err := newShrinker(cfg.Prover)
	if err != nil {
		return nil, err
	}

	sink, err := events.Open(cfg.Events, log.WithField("component", "events"))
	if err != nil {
		return nil, fmt.Errorf("failed to open event sink: %w", err)
	}
	hub := events.NewHub()

	c := &ServiceContainer{
		Config:    cfg,
		Renderer:  r,
		Fetcher:   clients.NewArtifactClient(seconds(cfg.Fetcher.Timeout), log),
		Encoder:   encoder.New(shrinker, log),
		Store:     proofstore.New(cfg.Chain.FallbackVk, log),
		Submitter: chain.NewSubmitter(cfg.Chain, chain.DialSubstrate(log), log),
		Hub:       hub,
		Publisher: events.Multi{hub, sink},
		log:       log,
	}
	c.Pipeline = services.NewProofPipeline(
		c.Renderer,
		extractor.New(cfg.Extractor, log),
		c.Fetcher,
		c.Encoder,
		c.Store,
		c.Publisher,
		log,
	)
	return c, nil
}

// Submissions returns the submission service, opening the ledger if needed.
func (c *ServiceContainer) Submissions() (*services.SubmissionService, error) {
	if c.submissions != nil {
		return c.submissions, nil
	}
	l, err := ledger.Open(c.Config.Ledger, c.log.WithField("component", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	c.ledger = l
	c.submissions = services.NewSubmissionService(c.Submitter, c.Store, l, c.Publisher, c.log)
	return c.submissions, nil
}

// Close releases the ledger and event sinks.
func (c *ServiceContainer) Close() error {
	var errs []error
	if c.ledger != nil {
		errs = append(errs, c.ledger.Close())
	}
	errs = append(errs, c.Publisher.Close())
	return errors.Join(errs...)
}

func newShrinker(cfg config.ProverConfig) (encoder.Shrinker, error) {
	switch cfg.Mode {
	case "", "exec":
		return &encoder.ExecShrinker{Command: cfg.Command, Timeout: seconds(cfg.Timeout)}, nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, errors.New("prover.baseUrl is required in http mode")
		}
		return clients.NewProverClient(cfg.BaseURL, seconds(cfg.Timeout)), nil
	default:
		return nil, fmt.Errorf("unknown prover mode %q", cfg.Mode)
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
