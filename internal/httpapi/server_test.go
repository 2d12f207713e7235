package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/S4DIB/news-hud-sub001/internal/auth"
	"github.com/S4DIB/news-hud-sub001/internal/cluster"
	"github.com/S4DIB/news-hud-sub001/internal/db"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
	"github.com/S4DIB/news-hud-sub001/internal/pipeline"
)

const (
	testToken   = "s3cret-ingest-token"
	clusterUUID = "0b8e8a34-7d5f-5a43-9a51-3f1d3c1c2b10"
)

type fakeReader struct {
	pingErr  error
	listOpts db.ClusterListOptions
	summary  []db.ClusterSummary
	detail   *db.ClusterDetail
}

func (f *fakeReader) ListClusters(_ context.Context, opts db.ClusterListOptions) ([]db.ClusterSummary, error) {
	f.listOpts = opts
	if opts.Limit < len(f.summary) {
		return f.summary[:opts.Limit], nil
	}
	return f.summary, nil
}

func (f *fakeReader) GetCluster(_ context.Context, id string) (*db.ClusterDetail, error) {
	if f.detail == nil || f.detail.Cluster.ClusterUUID != id {
		return nil, db.ErrNoRows
	}
	return f.detail, nil
}

func (f *fakeReader) QueryEngineStats(context.Context) (*db.EngineStats, error) {
	return &db.EngineStats{Articles: 3, ActiveClusters: 1}, nil
}

func (f *fakeReader) Ping(context.Context) error {
	return f.pingErr
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T, reader *fakeReader, batches BatchProcessor, tokenHash string) http.Handler {
	t.Helper()

	srv := NewServer(reader, batches, zerolog.Nop(), Options{IngestTokenHash: tokenHash})
	e, err := srv.Handler()
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	return e
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, header map[string]string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	t.Parallel()

	code, env := doRequest(t, newTestServer(t, &fakeReader{}, nil, ""), http.MethodGet, "/api/v1/health", "", nil)
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("unexpected health response: %d %+v", code, env)
	}

	down := &fakeReader{pingErr: errors.New("connection refused")}
	code, env = doRequest(t, newTestServer(t, down, nil, ""), http.MethodGet, "/api/v1/health", "", nil)
	if code != http.StatusServiceUnavailable || env.Status != "error" {
		t.Fatalf("expected 503 error envelope, got %d %+v", code, env)
	}
}

func TestListClusters_PaginationAndFilters(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{summary: []db.ClusterSummary{
		{ClusterUUID: "a", Topic: "Security"},
		{ClusterUUID: "b", Topic: "Security"},
		{ClusterUUID: "c", Topic: "Security"},
	}}
	h := newTestServer(t, reader, nil, "")

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/clusters?page=2&page_size=2&topic=Security&status=active&sort=score&since=2026-03-01", "", nil)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %+v", code, env)
	}
	if reader.listOpts.Limit != 3 || reader.listOpts.Offset != 2 {
		t.Fatalf("unexpected paging: %+v", reader.listOpts)
	}
	if reader.listOpts.Topic != "Security" || reader.listOpts.Status != "active" || reader.listOpts.Sort != "score" {
		t.Fatalf("unexpected filters: %+v", reader.listOpts)
	}
	if !reader.listOpts.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected since: %s", reader.listOpts.Since)
	}

	var data struct {
		Items      []db.ClusterSummary `json:"items"`
		Pagination struct {
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Items) != 2 || !data.Pagination.HasMore {
		t.Fatalf("expected trimmed page with has_more, got %+v", data)
	}
}

func TestListClusters_RejectsBadQuery(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &fakeReader{}, nil, "")
	for _, target := range []string{
		"/api/v1/clusters?page=0",
		"/api/v1/clusters?page_size=500",
		"/api/v1/clusters?status=archived",
		"/api/v1/clusters?sort=random",
		"/api/v1/clusters?since=yesterday",
	} {
		code, env := doRequest(t, h, http.MethodGet, target, "", nil)
		if code != http.StatusBadRequest || env.Status != "fail" {
			t.Fatalf("%s: expected 400 fail, got %d %+v", target, code, env)
		}
	}
}

func TestClusterDetail(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{detail: &db.ClusterDetail{Cluster: db.ClusterSummary{ClusterUUID: clusterUUID}}}
	h := newTestServer(t, reader, nil, "")

	if code, _ := doRequest(t, h, http.MethodGet, "/api/v1/clusters/"+clusterUUID, "", nil); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code, _ := doRequest(t, h, http.MethodGet, "/api/v1/clusters/not-a-uuid", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if code, _ := doRequest(t, h, http.MethodGet, "/api/v1/clusters/6f1c1f0e-1111-4c1a-9d7e-3a2b1c0d9e8f", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

const batchBody = `{"articles":[
	{"payload_version":"v1","id":"a","source":"reddit","title":"Company X raises $50M Series B","url":"https://techwire.test/company-x-funding","published_at":"2026-03-02T09:00:00Z","popularity":0.5},
	{"payload_version":"v1","id":"a2","source":"reddit","title":"Company X raises $50M Series B","url":"https://techwire.test/company-x-funding?utm_source=feed","published_at":"2026-03-02T09:00:00Z","popularity":0.5}
]}`

func TestCreateBatch(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashToken(testToken, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	store := pipeline.NewMemoryStore()
	svc := pipeline.NewService(store, zerolog.Nop(), cluster.Options{
		Now: globaltime.Fixed(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)),
	})
	h := newTestServer(t, &fakeReader{}, svc, hash)

	code, _ := doRequest(t, h, http.MethodPost, "/api/v1/batches", batchBody, map[string]string{"Content-Type": "application/json"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	code, _ = doRequest(t, h, http.MethodPost, "/api/v1/batches", batchBody, map[string]string{"Authorization": "Bearer wrong"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", code)
	}

	authHeader := map[string]string{"Authorization": "Bearer " + testToken}
	code, env := doRequest(t, h, http.MethodPost, "/api/v1/batches", `{"articles":[{"id":"x"}]}`, authHeader)
	if code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("expected validation failure, got %d %+v", code, env)
	}

	code, env = doRequest(t, h, http.MethodPost, "/api/v1/batches", batchBody, authHeader)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, env)
	}
	var resp batchResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if resp.ArticlesIn != 2 || resp.ExactDuplicates != 1 || resp.ClustersFormed != 1 || len(resp.ClustersTouched) != 1 {
		t.Fatalf("unexpected batch response: %+v", resp)
	}
	if len(store.Clusters()) != 1 {
		t.Fatalf("expected batch to be persisted")
	}
}

func TestCreateBatch_DisabledWithoutTokenHash(t *testing.T) {
	t.Parallel()

	svc := pipeline.NewService(pipeline.NewMemoryStore(), zerolog.Nop(), cluster.Options{})
	h := newTestServer(t, &fakeReader{}, svc, "")

	code, _ := doRequest(t, h, http.MethodPost, "/api/v1/batches", batchBody, map[string]string{"Authorization": "Bearer " + testToken})
	if code != http.StatusNotFound && code != http.StatusMethodNotAllowed {
		t.Fatalf("expected batches route to be absent, got %d", code)
	}
}
