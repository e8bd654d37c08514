package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/request"
	domusage "github.com/kailas-cloud/listingsearch/internal/domain/usage"
	backfilluc "github.com/kailas-cloud/listingsearch/internal/usecase/backfill"
	documentuc "github.com/kailas-cloud/listingsearch/internal/usecase/document"
	healthuc "github.com/kailas-cloud/listingsearch/internal/usecase/health"
	indexuc "github.com/kailas-cloud/listingsearch/internal/usecase/index"
	searchuc "github.com/kailas-cloud/listingsearch/internal/usecase/search"
)

type mockBackfiller struct {
	gotBatchSize int
	gotCtxErr    error
	delay        time.Duration
	result       backfilluc.Result
	err          error
	progress     backfilluc.ProgressSnapshot
}

func (m *mockBackfiller) RunBackfill(ctx context.Context, batchSize int) (backfilluc.Result, error) {
	m.gotBatchSize = batchSize
	time.Sleep(m.delay)
	m.gotCtxErr = ctx.Err()
	return m.result, m.err
}

func (m *mockBackfiller) Progress() backfilluc.ProgressSnapshot { return m.progress }

type mockSearcher struct {
	got  *request.Request
	resp searchuc.Response
	err  error
}

func (m *mockSearcher) Search(_ context.Context, req *request.Request) (searchuc.Response, error) {
	m.got = req
	return m.resp, m.err
}

type mockIndex struct {
	result indexuc.Result
	err    error
}

func (m *mockIndex) Provision(_ context.Context) (indexuc.Result, error) { return m.result, m.err }

type mockDocuments struct {
	gotID   string
	listing *domlisting.Listing
	stats   documentuc.Stats
	err     error
}

func (m *mockDocuments) Get(_ context.Context, id string) (*domlisting.Listing, error) {
	m.gotID = id
	return m.listing, m.err
}

func (m *mockDocuments) Stats(_ context.Context) (documentuc.Stats, error) { return m.stats, m.err }

type mockUsage struct {
	gotPeriod domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.gotPeriod = period
	return domusage.NewReport(period, 0, 86_400_000, 1200, 1000, 0)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type fixture struct {
	backfill  *mockBackfiller
	search    *mockSearcher
	index     *mockIndex
	documents *mockDocuments
	usage     *mockUsage
	health    *mockHealth
	handler   http.Handler
}

func newFixture(t *testing.T, apiKeys ...string) *fixture {
	t.Helper()
	f := &fixture{
		backfill:  &mockBackfiller{},
		search:    &mockSearcher{},
		index:     &mockIndex{},
		documents: &mockDocuments{},
		usage:     &mockUsage{},
		health:    &mockHealth{},
	}
	srv := NewServer(f.backfill, f.search, f.index, f.documents, f.usage, f.health, Config{
		APIKeys:          apiKeys,
		DefaultBatchSize: 50,
		Search:           SearchDefaults{NumCandidates: 150, Limit: 10, TopK: 5},
	}, zap.NewNop())
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}
