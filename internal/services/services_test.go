package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zkv-router/internal/chain"
	"zkv-router/internal/clients"
	"zkv-router/internal/config"
	"zkv-router/internal/encoder"
	"zkv-router/internal/events"
	"zkv-router/internal/extractor"
	"zkv-router/internal/ledger"
	"zkv-router/internal/proofstore"
)

var testKey = "0x" + strings.Repeat("5a", 32)

const artifactURL = "https://spn-artifacts-mainnet.s3.amazonaws.com/artifacts/proof.bin"

type renderFunc func(ctx context.Context, requestID string) (string, error)

func (f renderFunc) Render(ctx context.Context, requestID string) (string, error) {
	return f(ctx, requestID)
}

type fetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

type shrinkFunc func(ctx context.Context, artifact []byte) (*encoder.ShrunkProof, error)

func (f shrinkFunc) Shrink(ctx context.Context, artifact []byte) (*encoder.ShrunkProof, error) {
	return f(ctx, artifact)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type memLedger struct {
	entries   map[string]ledger.Entry
	lookupErr error
	recordErr error
}

func newMemLedger() *memLedger { return &memLedger{entries: map[string]ledger.Entry{}} }

func (l *memLedger) Lookup(_ context.Context, fp, endpoint string) (*ledger.Entry, error) {
	if l.lookupErr != nil {
		return nil, l.lookupErr
	}
	e, ok := l.entries[endpoint+"|"+fp]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &e, nil
}

func (l *memLedger) Record(_ context.Context, e *ledger.Entry) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	l.entries[e.Endpoint+"|"+e.Fingerprint] = *e
	return nil
}

func (l *memLedger) List(context.Context, int) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out, nil
}

func (l *memLedger) Close() error { return nil }

type mockChain struct {
	mock.Mock
}

func (m *mockChain) Endpoint() string { return "ws://127.0.0.1:9944" }

func (m *mockChain) SubmitProof(ctx context.Context, rec *encoder.CanonicalProof, mnemonic string) (string, error) {
	args := m.Called(ctx, rec, mnemonic)
	return args.String(0), args.Error(1)
}

func (m *mockChain) Remark(ctx context.Context, data []byte, mnemonic string) (string, error) {
	args := m.Called(ctx, data, mnemonic)
	return args.String(0), args.Error(1)
}

func (m *mockChain) ListPallets() string { return "SettlementSp1Pallet\nSystem\n" }

func testLog() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

func requestPage() string {
	return `<html><body><script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"request":{"artifactUrl":"` +
		artifactURL + `","program":{"vk":"` + testKey + `"}}}}}</script></body></html>`
}

type pipelineFixture struct {
	pipeline  *ProofPipeline
	publisher *recordingPublisher
	hook      *test.Hook
	fetched   []string
}

func newPipelineFixture(t *testing.T, page string, fetchErr error) *pipelineFixture {
	t.Helper()
	log, hook := testLog()
	f := &pipelineFixture{publisher: &recordingPublisher{}, hook: hook}

	r := renderFunc(func(_ context.Context, id string) (string, error) {
		assert.Equal(t, "0xabc", id)
		return page, nil
	})
	fetch := fetchFunc(func(_ context.Context, url string) ([]byte, error) {
		f.fetched = append(f.fetched, url)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return []byte("raw-artifact"), nil
	})
	shrink := shrinkFunc(func(_ context.Context, artifact []byte) (*encoder.ShrunkProof, error) {
		assert.Equal(t, []byte("raw-artifact"), artifact)
		return &encoder.ShrunkProof{Proof: []byte{0xca, 0xfe}, PublicInputs: []byte{0x07}}, nil
	})

	f.pipeline = NewProofPipeline(
		r,
		extractor.New(config.Default().Extractor, log),
		fetch,
		encoder.New(shrink, log),
		proofstore.New("", log),
		f.publisher,
		log,
	)
	return f
}

func TestConvertWritesCanonicalRecord(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, requestPage(), nil)

	res, err := f.pipeline.Convert(context.Background(), ConvertOptions{
		RequestID:    "0xabc",
		OutputPath:   filepath.Join(dir, "proof.json"),
		DetailsPath:  filepath.Join(dir, "details.json"),
		ArtifactPath: filepath.Join(dir, "artifact.bin"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.InvocationID)
	assert.Equal(t, "embedded_state", res.Metadata.Strategy)
	assert.Equal(t, []string{artifactURL}, f.fetched)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	var onDisk map[string]string
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, map[string]string{"proof": "0xcafe", "pubs": "0x07", "vk": testKey}, onDisk)

	kept, err := os.ReadFile(filepath.Join(dir, "artifact.bin"))
	require.NoError(t, err)
	assert.Equal(t, "raw-artifact", string(kept))

	details, err := os.ReadFile(filepath.Join(dir, "details.json"))
	require.NoError(t, err)
	assert.Contains(t, string(details), res.Fingerprint)

	assert.Equal(t, []string{events.ProofConverted}, f.publisher.types())
}

func TestConvertExtractionFailureSkipsFetch(t *testing.T) {
	f := newPipelineFixture(t, "<html><body>nothing here</body></html>", nil)
	out := filepath.Join(t.TempDir(), "proof.json")

	_, err := f.pipeline.Convert(context.Background(), ConvertOptions{RequestID: "0xabc", OutputPath: out})
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrNotFound)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageExtract, se.Stage)
	assert.Empty(t, f.fetched)
	assert.NoFileExists(t, out)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.ConversionFailed, f.publisher.events[0].Type)
	assert.Equal(t, "not_found", f.publisher.events[0].ErrorKind)
}

func TestConvertFetchFailure(t *testing.T) {
	f := newPipelineFixture(t, requestPage(), &clients.FetchError{URL: artifactURL, StatusCode: 403})
	out := filepath.Join(t.TempDir(), "proof.json")

	_, err := f.pipeline.Convert(context.Background(), ConvertOptions{RequestID: "0xabc", OutputPath: out})
	var fe *clients.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 403, fe.StatusCode)
	assert.Equal(t, "fetch_failed", ErrorKind(err))
	assert.NoFileExists(t, out)
}

func TestConvertPublishFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture(t, requestPage(), nil)
	f.publisher.err = errors.New("broker down")

	_, err := f.pipeline.Convert(context.Background(), ConvertOptions{
		RequestID:  "0xabc",
		OutputPath: filepath.Join(t.TempDir(), "proof.json"),
	})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, f.hook.LastEntry().Level)
}

func TestPreviewTruncates(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("x", 600)
	assert.Len(t, preview(long), previewLen+3)

	// multi-byte characters are kept whole
	wide := strings.Repeat("é", 600)
	got := preview(wide)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, previewLen, utf8.RuneCountInString(strings.TrimSuffix(got, "...")))
}

func writeProof(t *testing.T) string {
	t.Helper()
	log, _ := testLog()
	path := filepath.Join(t.TempDir(), "proof.json")
	require.NoError(t, proofstore.New("", log).Write(path, &encoder.CanonicalProof{
		Proof:           "0xcafe",
		PublicInputs:    "0x07",
		VerificationKey: testKey,
	}))
	return path
}

func newSubmissionFixture(l ledger.Ledger) (*SubmissionService, *mockChain, *recordingPublisher) {
	log, _ := testLog()
	ch := new(mockChain)
	pub := &recordingPublisher{}
	return NewSubmissionService(ch, proofstore.New("", log), l, pub, log), ch, pub
}

func TestSubmitRecordsAndDeduplicates(t *testing.T) {
	path := writeProof(t)
	l := newMemLedger()
	svc, ch, pub := newSubmissionFixture(l)
	ch.On("SubmitProof", mock.Anything, mock.MatchedBy(func(rec *encoder.CanonicalProof) bool {
		return rec.Proof == "0xcafe" && rec.VerificationKey == testKey
	}), "//Alice").Return("0xfeed", nil).Once()

	res, err := svc.Submit(context.Background(), path, "0xabc", "//Alice", false)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", res.TxHash)
	assert.False(t, res.Duplicate)
	assert.Len(t, l.entries, 1)

	again, err := svc.Submit(context.Background(), path, "0xabc", "//Alice", false)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, "0xfeed", again.TxHash)

	ch.AssertExpectations(t)
	assert.Equal(t, []string{events.ProofSubmitted, events.ProofDuplicate}, pub.types())
}

func TestSubmitForceBypassesLedger(t *testing.T) {
	path := writeProof(t)
	l := newMemLedger()
	l.lookupErr = errors.New("ledger offline")
	svc, ch, _ := newSubmissionFixture(l)
	ch.On("SubmitProof", mock.Anything, mock.Anything, "//Alice").Return("0xbeef", nil).Once()

	res, err := svc.Submit(context.Background(), path, "", "//Alice", true)
	require.NoError(t, err)
	assert.Equal(t, "0xbeef", res.TxHash)
	ch.AssertExpectations(t)
}

func TestSubmitLedgerFailureAborts(t *testing.T) {
	path := writeProof(t)
	l := newMemLedger()
	l.lookupErr = errors.New("ledger offline")
	svc, ch, _ := newSubmissionFixture(l)

	_, err := svc.Submit(context.Background(), path, "", "//Alice", false)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageLedger, se.Stage)
	ch.AssertNotCalled(t, "SubmitProof", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitRecordFailureIsNotFatal(t *testing.T) {
	path := writeProof(t)
	l := newMemLedger()
	l.recordErr = errors.New("disk full")
	svc, ch, _ := newSubmissionFixture(l)
	ch.On("SubmitProof", mock.Anything, mock.Anything, "//Alice").Return("0xfeed", nil).Once()

	res, err := svc.Submit(context.Background(), path, "", "//Alice", false)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", res.TxHash)
}

func TestSubmitChainRejection(t *testing.T) {
	path := writeProof(t)
	svc, ch, pub := newSubmissionFixture(newMemLedger())
	ch.On("SubmitProof", mock.Anything, mock.Anything, "//Alice").
		Return("", &chain.ChainError{Kind: chain.RuntimeRejection, Code: chain.InvalidTransactionCode, Detail: "Invalid Transaction"}).Once()

	_, err := svc.Submit(context.Background(), path, "0xabc", "//Alice", false)
	var ce *chain.ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, chain.RuntimeRejection, ce.Kind)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.ProofSubmitFailed, pub.events[0].Type)
	assert.Equal(t, StageSubmit, pub.events[0].Stage)
	assert.Equal(t, chain.RuntimeRejection.String(), pub.events[0].ErrorKind)
}

func TestSubmitMissingFile(t *testing.T) {
	svc, ch, _ := newSubmissionFixture(ledger.Nop{})

	_, err := svc.Submit(context.Background(), filepath.Join(t.TempDir(), "missing.json"), "", "//Alice", false)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageRead, se.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
	ch.AssertNotCalled(t, "SubmitProof", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemarkSendsRawBytes(t *testing.T) {
	path := writeProof(t)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	svc, ch, pub := newSubmissionFixture(ledger.Nop{})
	ch.On("Remark", mock.Anything, raw, "//Alice").Return("0xaaaa", nil).Once()

	hash, err := svc.Remark(context.Background(), path, "//Alice")
	require.NoError(t, err)
	assert.Equal(t, "0xaaaa", hash)
	ch.AssertExpectations(t)
	assert.Equal(t, []string{events.RemarkSubmitted}, pub.types())
}

func TestListPalletsAndHistory(t *testing.T) {
	l := newMemLedger()
	svc, _, _ := newSubmissionFixture(l)
	assert.Contains(t, svc.ListPallets(), "SettlementSp1Pallet")

	require.NoError(t, l.Record(context.Background(), &ledger.Entry{Fingerprint: "0x01", Endpoint: "ws://x", TxHash: "0x02"}))
	entries, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0x02", entries[0].TxHash)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
	assert.Equal(t, "not_found", ErrorKind(&StageError{Stage: StageExtract, Err: &extractor.NotFoundError{}}))
	assert.Equal(t, encoder.InvalidHex.String(), ErrorKind(&encoder.EncodingError{Kind: encoder.InvalidHex}))
	assert.Equal(t, "unknown", stageOf(errors.New("boom")))
}
