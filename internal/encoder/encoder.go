package encoder

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/metrics"
)

// CanonicalProof is the verifier-ready record. All fields are lowercase
// 0x-prefixed hex.
type CanonicalProof struct {
	Proof           string `json:"proof"`
	PublicInputs    string `json:"pubs"`
	VerificationKey string `json:"vk"`
}

// ProofBytes decodes the proof field.
func (p *CanonicalProof) ProofBytes() ([]byte, error) {
	b, err := hexutil.Decode(p.Proof)
	if err != nil {
		return nil, invalidHex("proof", err)
	}
	return b, nil
}

// PublicInputBytes decodes the pubs field.
func (p *CanonicalProof) PublicInputBytes() ([]byte, error) {
	b, err := hexutil.Decode(p.PublicInputs)
	if err != nil {
		return nil, invalidHex("pubs", err)
	}
	return b, nil
}

// NormalizeHex rewrites a hex field as lowercase 0x-prefixed hex. Proof
// files written by older tooling may omit the prefix.
func NormalizeHex(field, s string) (string, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return "", invalidHex(field, err)
	}
	return hexutil.Encode(b), nil
}

// Key decodes the vk field into its 32 raw bytes.
func (p *CanonicalProof) Key() ([KeySize]byte, error) {
	return CanonicalizeKey(p.VerificationKey)
}

// ShrunkProof is what the proving system hands back for one artifact.
type ShrunkProof struct {
	Proof        []byte
	PublicInputs []byte
}

// Shrinker is the external proving-system collaborator that compresses a
// raw artifact into a verifier-compatible proof.
type Shrinker interface {
	Shrink(ctx context.Context, artifact []byte) (*ShrunkProof, error)
}

// ShrinkResponse is the JSON both shrinker transports return.
type ShrinkResponse struct {
	Proof        string `json:"proof"`
	PublicValues string `json:"public_values"`
}

// Decode validates the response and converts it to raw bytes.
func (r *ShrinkResponse) Decode() (*ShrunkProof, error) {
	if r.Proof == "" {
		return nil, &EncodingError{Kind: MissingField, Field: "proof"}
	}
	proof, err := hexutil.Decode(r.Proof)
	if err != nil {
		return nil, invalidHex("proof", err)
	}
	var pubs []byte
	if r.PublicValues != "" {
		if pubs, err = hexutil.Decode(r.PublicValues); err != nil {
			return nil, invalidHex("public_values", err)
		}
	}
	return &ShrunkProof{Proof: proof, PublicInputs: pubs}, nil
}

// Encoder ProofEncoder: canonicalizes the key and delegates the proof
// transform to a Shrinker.
type Encoder struct {
	shrinker Shrinker
	log      *logrus.Entry
}

// New Create a new encoder
func New(shrinker Shrinker, log *logrus.Entry) *Encoder {
	return &Encoder{shrinker: shrinker, log: log}
}

// Convert produces the canonical record for one artifact. The key is
// checked before the collaborator is invoked.
func (e *Encoder) Convert(ctx context.Context, artifact []byte, rawKey string) (*CanonicalProof, error) {
	start := time.Now()
	defer metrics.ObserveStage("encode", start)

	vk, err := CanonicalKeyHex(rawKey)
	if err != nil {
		return nil, err
	}
	if len(artifact) == 0 {
		return nil, &EncodingError{Kind: MissingField, Field: "artifact"}
	}

	shrunk, err := e.shrinker.Shrink(ctx, artifact)
	if err != nil {
		var encErr *EncodingError
		if errors.As(err, &encErr) {
			return nil, err
		}
		return nil, &EncodingError{Kind: ProverFailed, Err: err}
	}
	if len(shrunk.Proof) == 0 {
		return nil, &EncodingError{Kind: MissingField, Field: "proof"}
	}

	e.log.WithFields(logrus.Fields{
		"artifact_bytes": len(artifact),
		"proof_bytes":    len(shrunk.Proof),
		"pubs_bytes":     len(shrunk.PublicInputs),
	}).Debug("artifact shrunk")

	return &CanonicalProof{
		Proof:           hexutil.Encode(shrunk.Proof),
		PublicInputs:    hexutil.Encode(shrunk.PublicInputs),
		VerificationKey: vk,
	}, nil
}
