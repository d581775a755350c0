package extractor

import (
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/config"
	"zkv-router/internal/metrics"
)

// ErrNotFound matches every NotFoundError.
var ErrNotFound = errors.New("request metadata not found")

// NotFoundError reports which of the two values no strategy could locate.
type NotFoundError struct {
	ArtifactURLFound     bool
	VerificationKeyFound bool
}

func (e *NotFoundError) Error() string {
	switch {
	case e.ArtifactURLFound && e.VerificationKeyFound:
		return "artifact URL and verification key found by different strategies, none yielded both"
	case e.ArtifactURLFound:
		return "verification key not found in page (artifact URL was found)"
	case e.VerificationKeyFound:
		return "artifact URL not found in page (verification key was found)"
	default:
		return "artifact URL and verification key not found in page"
	}
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Record is the pair every downstream stage needs. VerificationKey is the
// raw value as it appeared in the page.
type Record struct {
	ArtifactURL     string
	VerificationKey string
	Strategy        string
}

func (r Record) complete() bool { return r.ArtifactURL != "" && r.VerificationKey != "" }

// Document is a rendered page. Raw is the markup as dumped; Text has
// character entities decoded and is what pattern strategies search.
type Document struct {
	Raw  string
	Text string
}

// NewDocument wraps rendered markup.
func NewDocument(raw string) *Document {
	return &Document{Raw: raw, Text: DecodeEntities(raw)}
}

// Strategy is one way of locating the pair in a page. A partial Record is
// returned when only one of the two values was found.
type Strategy interface {
	Name() string
	Extract(doc *Document) Record
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// DecodeEntities replaces the five basic character entities in one pass.
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// Extractor MetadataExtractor: runs strategies in order, first complete pair wins.
type Extractor struct {
	strategies []Strategy
	log        *logrus.Entry
}

// New builds the default strategy chain.
func New(cfg config.ExtractorConfig, log *logrus.Entry) *Extractor {
	return NewWithStrategies(log,
		&nextDataStrategy{},
		&globalStateStrategy{},
		&fieldPatternStrategy{},
		newKeywordStrategy(cfg.Keywords, cfg.WindowBefore, cfg.WindowAfter),
	)
}

// NewWithStrategies builds an extractor over an explicit strategy list.
func NewWithStrategies(log *logrus.Entry, strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies, log: log}
}

// Extract locates the artifact URL and verification key in rendered markup.
func (e *Extractor) Extract(html string) (*Record, error) {
	start := time.Now()
	defer metrics.ObserveStage("extract", start)

	doc := NewDocument(html)
	var nf NotFoundError

	for _, s := range e.strategies {
		rec := s.Extract(doc)
		if rec.complete() {
			rec.Strategy = s.Name()
			metrics.ExtractionStrategyHits.WithLabelValues(s.Name()).Inc()
			e.log.WithFields(logrus.Fields{
				"strategy":     s.Name(),
				"artifact_url": rec.ArtifactURL,
				"vk":           rec.VerificationKey,
			}).Info("🔍 request metadata extracted")
			return &rec, nil
		}

		nf.ArtifactURLFound = nf.ArtifactURLFound || rec.ArtifactURL != ""
		nf.VerificationKeyFound = nf.VerificationKeyFound || rec.VerificationKey != ""
		e.log.WithFields(logrus.Fields{
			"strategy":  s.Name(),
			"url_found": rec.ArtifactURL != "",
			"vk_found":  rec.VerificationKey != "",
		}).Debug("strategy did not yield a complete pair")
	}

	return nil, &nf
}
