package services

import (
	"errors"

	"zkv-router/internal/chain"
	"zkv-router/internal/clients"
	"zkv-router/internal/encoder"
	"zkv-router/internal/extractor"
	"zkv-router/internal/renderer"
)

// Pipeline stages
const (
	StageRender  = "render"
	StageExtract = "extract"
	StageFetch   = "fetch"
	StageEncode  = "encode"
	StageWrite   = "write"
	StageRead    = "read"
	StageLedger  = "ledger"
	StageSubmit  = "submit"
	StageRemark  = "remark"
)

// StageError names the pipeline stage a failure came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// ErrorKind is a short label for metrics and events.
func ErrorKind(err error) string {
	var (
		nf *extractor.NotFoundError
		fe *clients.FetchError
		ee *encoder.EncodingError
		ce *chain.ChainError
		re *renderer.RenderError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Kind.String()
	case errors.As(err, &ee):
		return ee.Kind.String()
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &fe):
		return "fetch_failed"
	case errors.As(err, &re):
		return "render_failed"
	default:
		return "internal"
	}
}

func stageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "unknown"
}
