package proofstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/encoder"
)

// fileRecord is the on-disk shape. Older writers used pub_inputs.
type fileRecord struct {
	Proof     string  `json:"proof"`
	Pubs      *string `json:"pubs,omitempty"`
	PubInputs *string `json:"pub_inputs,omitempty"`
	Vk        *string `json:"vk,omitempty"`
}

// Details is the supplementary report written next to a proof file.
type Details struct {
	RequestID       string    `json:"request_id"`
	ArtifactURL     string    `json:"artifact_url"`
	ArtifactBytes   int       `json:"artifact_bytes"`
	ProofBytes      int       `json:"proof_bytes"`
	PublicBytes     int       `json:"pubs_bytes"`
	VerificationKey string    `json:"vk"`
	Fingerprint     string    `json:"fingerprint"`
	Strategy        string    `json:"strategy"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Store reads and writes proof files. FallbackVk, when set, stands in for a
// missing vk field.
type Store struct {
	FallbackVk string
	log        *logrus.Entry
}

// New Create a proof file store
func New(fallbackVk string, log *logrus.Entry) *Store {
	return &Store{FallbackVk: fallbackVk, log: log}
}

// Write persists the record as pretty-printed JSON. The file is replaced
// atomically so a concurrent reader never sees a partial document.
func (s *Store) Write(path string, rec *encoder.CanonicalProof) error {
	return writeJSON(path, rec)
}

// WriteDetails persists a proof details report.
func (s *Store) WriteDetails(path string, d *Details) error {
	return writeJSON(path, d)
}

// Read loads a proof file, accepting either public-input field name.
func (s *Store) Read(path string) (*encoder.CanonicalProof, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof file: %w", err)
	}
	return s.Parse(data)
}

// Parse decodes a proof document.
func (s *Store) Parse(data []byte) (*encoder.CanonicalProof, error) {
	var f fileRecord
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse proof file: %w", err)
	}

	if f.Proof == "" {
		return nil, &encoder.EncodingError{Kind: encoder.MissingField, Field: "proof"}
	}

	var pubs string
	switch {
	case f.Pubs != nil:
		pubs = *f.Pubs
	case f.PubInputs != nil:
		pubs = *f.PubInputs
	default:
		return nil, &encoder.EncodingError{Kind: encoder.MissingField, Field: "pubs"}
	}

	var vk string
	switch {
	case f.Vk != nil && *f.Vk != "":
		vk = *f.Vk
	case s.FallbackVk != "":
		s.log.WithField("fallback_vk", s.FallbackVk).Warn("⚠️ proof file has no vk, using configured fallback")
		vk = s.FallbackVk
	default:
		return nil, &encoder.EncodingError{Kind: encoder.MissingField, Field: "vk"}
	}

	canonicalVk, err := encoder.CanonicalKeyHex(vk)
	if err != nil {
		return nil, err
	}

	proof, err := encoder.NormalizeHex("proof", f.Proof)
	if err != nil {
		return nil, err
	}
	if pubs, err = encoder.NormalizeHex("pubs", pubs); err != nil {
		return nil, err
	}
	return &encoder.CanonicalProof{Proof: proof, PublicInputs: pubs, VerificationKey: canonicalVk}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
