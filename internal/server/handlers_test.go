package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/clusterindex"
	"github.com/hupe1980/mrlsearch/internal/testutil"
	"github.com/hupe1980/mrlsearch/prommetrics"
)

func newTestServer(t *testing.T) (*Server, *testutil.Corpus) {
	t.Helper()
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	corpus, err := testutil.BuildCorpus(ctx, store, testutil.CorpusOptions{Vectors: 120, Clusters: 4})
	require.NoError(t, err)
	indexes, err := clusterindex.NewStatic(corpus.Index)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	engine, err := mrlsearch.New(store, indexes,
		mrlsearch.WithFullDimension(128),
		mrlsearch.WithLogger(mrlsearch.NoopLogger()),
		mrlsearch.WithMetricsCollector(prommetrics.New(reg)),
	)
	require.NoError(t, err)

	return NewServer(engine, store, "localhost:0", WithGatherer(reg), WithDefaultK(3)), corpus
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleSearch(t *testing.T) {
	srv, corpus := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/search", SearchRequest{
		Vector:    corpus.Entries[4].Vector,
		Namespace: "docs",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []struct {
			ID    string  `json:"id"`
			Score float32 `json:"score"`
			Tier  string  `json:"tier"`
		} `json:"results"`
		Stats struct {
			QueryID string `json:"query_id"`
			Results int    `json:"results"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "doc-00004", resp.Results[0].ID)
	assert.Equal(t, "cold", resp.Results[0].Tier)
	assert.NotEmpty(t, resp.Stats.QueryID)
	assert.Equal(t, 3, resp.Stats.Results)
}

func TestHandleSearch_Where(t *testing.T) {
	srv, corpus := newTestServer(t)

	body := `{"vector": ` + mustJSON(t, corpus.Entries[4].Vector) + `, "k": 5,
		"where": [{"key": "even", "operator": "eq", "value": false}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []struct {
			Metadata map[string]any `json:"metadata"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, false, r.Metadata["even"])
	}
}

func TestHandleSearch_Errors(t *testing.T) {
	srv, corpus := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name string
		body any
		want int
	}{
		{"BadBody", "not json", http.StatusBadRequest},
		{"WrongDimension", SearchRequest{Vector: []float32{1, 2, 3}}, http.StatusBadRequest},
		{"ZeroVector", SearchRequest{Vector: make([]float32, 128)}, http.StatusBadRequest},
		{"UnknownMode", SearchRequest{Vector: corpus.Entries[0].Vector, Mode: "fast"}, http.StatusBadRequest},
		{"UnknownMetric", SearchRequest{Vector: corpus.Entries[0].Vector, Metric: "hamming"}, http.StatusBadRequest},
		{"NoProvider", SearchRequest{Vector: corpus.Entries[0].Vector, Mode: "two_phase"}, http.StatusBadRequest},
		{"ExclusiveTiers", SearchRequest{Vector: corpus.Entries[0].Vector, HotOnly: true, ColdOnly: true}, http.StatusBadRequest},
		{"HotOnlyWithoutHot", SearchRequest{Vector: corpus.Entries[0].Vector, HotOnly: true}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestHandleSearch_BodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"vector": [` + strings.Repeat("0.5,", maxBodyBytes/4) + `0.5]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "exceeds")
}

func TestHandleIndex(t *testing.T) {
	srv, corpus := newTestServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/index", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out IndexSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, corpus.Index.Version, out.Version)
	assert.Equal(t, 64, out.Dimension)
	assert.Len(t, out.Clusters, 4)
}

func TestHandlePartition(t *testing.T) {
	srv, corpus := newTestServer(t)
	h := srv.Handler()

	key := corpus.Index.Clusters[0].PartitionKeys[0]
	w := do(t, h, http.MethodGet, "/api/v1/partitions?key="+key, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out PartitionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, key, out.Key)
	assert.Equal(t, len(corpus.Partitions[key]), out.Entries)

	w = do(t, h, http.MethodGet, "/api/v1/partitions?key=partitions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/partitions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, corpus := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_ = do(t, h, http.MethodPost, "/api/v1/search", SearchRequest{Vector: corpus.Entries[0].Vector})

	w = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mrlsearch_searches_total{mode="single",status="success"} 1`)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
