package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type rpcError struct {
	code int
	msg  string
	data interface{}
}

func (e *rpcError) Error() string          { return e.msg }
func (e *rpcError) ErrorCode() int         { return e.code }
func (e *rpcError) ErrorData() interface{} { return e.data }

func TestClassifyInvalidTransaction(t *testing.T) {
	raw := &rpcError{code: 1010, msg: "Invalid Transaction", data: "Inability to pay some fees (e.g. account balance too low)"}

	ce := ClassifySubmitError(fmt.Errorf("submit: %w", raw))
	assert.Equal(t, RuntimeRejection, ce.Kind)
	assert.Equal(t, 1010, ce.Code)
	assert.NotEmpty(t, ce.Hint)
	// the raw node message survives next to the hint
	assert.Contains(t, ce.Detail, "Invalid Transaction")
	assert.Contains(t, ce.Detail, "Inability to pay some fees")
	assert.Contains(t, ce.Error(), "balance")
	assert.Contains(t, ce.Error(), "Inability to pay some fees")
	assert.True(t, errors.Is(ce, raw))
}

func TestClassifyOtherRejection(t *testing.T) {
	ce := ClassifySubmitError(&rpcError{code: 1012, msg: "Transaction is temporarily banned"})
	assert.Equal(t, RuntimeRejection, ce.Kind)
	assert.Equal(t, 1012, ce.Code)
	assert.Empty(t, ce.Hint)
}

func TestClassifyUncodedMessages(t *testing.T) {
	ce := ClassifySubmitError(errors.New("rpc error: code = 1010 desc = Invalid Transaction"))
	assert.Equal(t, RuntimeRejection, ce.Kind)
	assert.NotEmpty(t, ce.Hint)

	ce = ClassifySubmitError(errors.New("websocket: close 1006 (abnormal closure)"))
	assert.Equal(t, Connectivity, ce.Kind)
	assert.Empty(t, ce.Hint)

	// digits inside a longer number are not the code
	ce = ClassifySubmitError(errors.New("dial tcp 10.0.0.1:10101: connection refused"))
	assert.Equal(t, Connectivity, ce.Kind)
}

func TestClassifyKeepsExistingChainError(t *testing.T) {
	orig := &ChainError{Kind: Signing, Detail: "bad key"}
	assert.Same(t, orig, ClassifySubmitError(fmt.Errorf("wrapped: %w", orig)))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "connectivity", Connectivity.String())
	assert.Equal(t, "signing", Signing.String())
	assert.Equal(t, "runtime_rejection", RuntimeRejection.String())
}
