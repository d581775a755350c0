package chain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind classifies chain failures.
type ErrorKind int

const (
	// Connectivity the endpoint could not be reached or dropped mid-call
	Connectivity ErrorKind = iota
	// Signing the secret was unusable
	Signing
	// RuntimeRejection the node refused the extrinsic
	RuntimeRejection
)

func (k ErrorKind) String() string {
	switch k {
	case Connectivity:
		return "connectivity"
	case Signing:
		return "signing"
	case RuntimeRejection:
		return "runtime_rejection"
	default:
		return "unknown"
	}
}

// InvalidTransactionCode is the node's JSON-RPC code for a transaction that
// failed validity checks.
const InvalidTransactionCode = 1010

var invalidTransactionRe = regexp.MustCompile(`\b1010\b`)

const invalidTransactionHint = "the chain rejected the transaction as invalid; possible causes: " +
	"insufficient balance for fees in the signing account; a malformed proof; " +
	"the proof failing chain-side verification"

// ChainError is returned by every chain operation. Detail is the raw
// message from the node or transport and is always kept.
type ChainError struct {
	Kind   ErrorKind
	Code   int
	Detail string
	Hint   string
	Err    error
}

func (e *ChainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", e.Kind)
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	b.WriteString(": ")
	b.WriteString(e.Detail)
	if e.Hint != "" {
		b.WriteString(" [hint: ")
		b.WriteString(e.Hint)
		b.WriteString("]")
	}
	return b.String()
}

func (e *ChainError) Unwrap() error { return e.Err }

func newChainError(kind ErrorKind, err error) *ChainError {
	return &ChainError{Kind: kind, Detail: err.Error(), Err: err}
}

// rpcCodedError matches JSON-RPC errors returned by the substrate client.
type rpcCodedError interface {
	error
	ErrorCode() int
}

type rpcDataError interface {
	ErrorData() interface{}
}

// ClassifySubmitError maps a failure from the submission RPC to a kind. A
// coded JSON-RPC error means the node answered; anything else is transport.
func ClassifySubmitError(err error) *ChainError {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce
	}

	detail := err.Error()
	var de rpcDataError
	if errors.As(err, &de) {
		if data := de.ErrorData(); data != nil {
			detail = fmt.Sprintf("%s: %v", detail, data)
		}
	}

	out := &ChainError{Kind: Connectivity, Detail: detail, Err: err}

	var coded rpcCodedError
	if errors.As(err, &coded) {
		out.Kind = RuntimeRejection
		out.Code = coded.ErrorCode()
	} else if invalidTransactionRe.MatchString(detail) {
		out.Kind = RuntimeRejection
		out.Code = InvalidTransactionCode
	}

	if out.Code == InvalidTransactionCode {
		out.Hint = invalidTransactionHint
	}
	return out
}
