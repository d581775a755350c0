package encoder

import "fmt"

// EncodingErrorKind classifies ProofEncoder failures.
type EncodingErrorKind int

const (
	// InvalidHex the input was not valid hex, or decoded to the wrong length
	InvalidHex EncodingErrorKind = iota
	// MissingField a required value was absent
	MissingField
	// ProverFailed the proving-system collaborator rejected the artifact
	ProverFailed
)

func (k EncodingErrorKind) String() string {
	switch k {
	case InvalidHex:
		return "invalid_hex"
	case MissingField:
		return "missing_field"
	case ProverFailed:
		return "prover_failed"
	default:
		return "unknown"
	}
}

// EncodingError is returned for every ProofEncoder and proof-file failure.
type EncodingError struct {
	Kind  EncodingErrorKind
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing field %q", e.Field)
	case InvalidHex:
		if e.Err != nil {
			return fmt.Sprintf("invalid hex in %q: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("invalid hex in %q", e.Field)
	default:
		return fmt.Sprintf("proof shrink failed: %v", e.Err)
	}
}

func (e *EncodingError) Unwrap() error { return e.Err }

func invalidHex(field string, err error) error {
	return &EncodingError{Kind: InvalidHex, Field: field, Err: err}
}
