package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/chain"
	"zkv-router/internal/clients"
	"zkv-router/internal/encoder"
	"zkv-router/internal/extractor"
	"zkv-router/internal/ledger"
	"zkv-router/internal/proofstore"
	"zkv-router/internal/renderer"
	"zkv-router/internal/services"
)

// request ids become file names under the storage directory
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

const defaultHistoryLimit = 50

// Converter runs the conversion pipeline.
type Converter interface {
	Convert(ctx context.Context, opts services.ConvertOptions) (*services.ConvertResult, error)
}

// Submissions is the chain side of the API.
type Submissions interface {
	Submit(ctx context.Context, proofPath, requestID, mnemonic string, force bool) (*services.SubmitResult, error)
	Remark(ctx context.Context, path, mnemonic string) (string, error)
	ListPallets() string
	History(ctx context.Context, limit int) ([]ledger.Entry, error)
}

// ProofHandler serves the /api/v1 proof routes. Proof files live under dir,
// one per request id.
type ProofHandler struct {
	converter   Converter
	submissions Submissions
	store       *proofstore.Store
	dir         string
	mnemonic    func() (string, error)
	logger      *logrus.Logger
}

// NewProofHandler create proof handler
func NewProofHandler(
	converter Converter,
	submissions Submissions,
	store *proofstore.Store,
	dir string,
	mnemonic func() (string, error),
	logger *logrus.Logger,
) *ProofHandler {
	return &ProofHandler{
		converter:   converter,
		submissions: submissions,
		store:       store,
		dir:         dir,
		mnemonic:    mnemonic,
		logger:      logger,
	}
}

// detached keeps request values but not cancellation: a pipeline run that
// has started finishes even if the caller goes away.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *ProofHandler) proofPath(id string) string {
	return filepath.Join(h.dir, id+".json")
}

func (h *ProofHandler) requestID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !requestIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request id",
			"code":    "INVALID_REQUEST_ID",
		})
		return "", false
	}
	return id, true
}

// ConvertHandler POST /api/v1/requests/:id/convert
func (h *ProofHandler) ConvertHandler(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	opts := services.ConvertOptions{RequestID: id, OutputPath: h.proofPath(id)}
	if c.Query("details") == "true" {
		opts.DetailsPath = filepath.Join(h.dir, id+".details.json")
	}

	res, err := h.converter.Convert(detached(c), opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"request_id":    id,
		"invocation_id": res.InvocationID,
		"proof_path":    res.OutputPath,
		"artifact_url":  res.Metadata.ArtifactURL,
		"strategy":      res.Metadata.Strategy,
		"fingerprint":   res.Fingerprint,
		"proof":         res.Record,
	})
}

// GetProofHandler GET /api/v1/requests/:id/proof
func (h *ProofHandler) GetProofHandler(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	rec, err := h.store.Read(h.proofPath(id))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SubmitHandler POST /api/v1/requests/:id/submit?force=true
func (h *ProofHandler) SubmitHandler(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	mnemonic, ok := h.signingPhrase(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))

	res, err := h.submissions.Submit(detached(c), h.proofPath(id), id, mnemonic, force)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"request_id":  id,
		"tx_hash":     res.TxHash,
		"fingerprint": res.Fingerprint,
		"endpoint":    res.Endpoint,
		"duplicate":   res.Duplicate,
	})
}

// RemarkHandler POST /api/v1/requests/:id/remark
func (h *ProofHandler) RemarkHandler(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	mnemonic, ok := h.signingPhrase(c)
	if !ok {
		return
	}

	hash, err := h.submissions.Remark(detached(c), h.proofPath(id), mnemonic)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request_id": id, "tx_hash": hash})
}

// ListPalletsHandler GET /api/v1/pallets
func (h *ProofHandler) ListPalletsHandler(c *gin.Context) {
	c.String(http.StatusOK, h.submissions.ListPallets())
}

// HistoryHandler GET /api/v1/submissions?limit=N
func (h *ProofHandler) HistoryHandler(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid limit", "code": "INVALID_LIMIT"})
			return
		}
		limit = n
	}

	entries, err := h.submissions.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submissions": entries})
}

func (h *ProofHandler) signingPhrase(c *gin.Context) (string, bool) {
	m, err := h.mnemonic()
	if err != nil {
		h.logger.WithError(err).Error("signing phrase unavailable")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "signing key is not configured",
			"code":    "SIGNING_KEY_MISSING",
		})
		return "", false
	}
	return m, true
}

func (h *ProofHandler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	h.logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"status": status,
		"code":   code,
	}).WithError(err).Warn("request failed")

	body := gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	}
	var ce *chain.ChainError
	if errors.As(err, &ce) && ce.Hint != "" {
		body["hint"] = ce.Hint
	}
	c.JSON(status, body)
}

// classify maps pipeline failures onto HTTP status codes.
func classify(err error) (int, string) {
	var (
		nf *extractor.NotFoundError
		fe *clients.FetchError
		ee *encoder.EncodingError
		ce *chain.ChainError
		re *renderer.RenderError
	)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound, "PROOF_NOT_FOUND"
	case errors.As(err, &nf):
		return http.StatusUnprocessableEntity, "METADATA_NOT_FOUND"
	case errors.As(err, &re):
		return http.StatusBadGateway, "RENDER_FAILED"
	case errors.As(err, &fe):
		return http.StatusBadGateway, "ARTIFACT_FETCH_FAILED"
	case errors.As(err, &ee):
		return http.StatusUnprocessableEntity, "ENCODING_FAILED"
	case errors.As(err, &ce):
		switch ce.Kind {
		case chain.Connectivity:
			return http.StatusServiceUnavailable, "CHAIN_UNREACHABLE"
		case chain.RuntimeRejection:
			return http.StatusConflict, "CHAIN_REJECTED"
		default:
			return http.StatusInternalServerError, "SIGNING_FAILED"
		}
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
