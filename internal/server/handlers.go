package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/codec"
	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Vector        []float32         `json:"vector"`
	K             int               `json:"k"`
	Mode          string            `json:"mode"`
	Namespace     string            `json:"namespace"`
	Type          string            `json:"type"`
	Where         []metadata.Filter `json:"where"`
	Metric        string            `json:"metric"`
	TimeoutMS     int               `json:"timeout_ms"`
	ProbeClusters *int              `json:"probe_clusters"`
	HotOnly       bool              `json:"hot_only"`
	ColdOnly      bool              `json:"cold_only"`
}

// ClusterSummary describes one cluster of the current index.
type ClusterSummary struct {
	ID         string   `json:"id"`
	Partitions []string `json:"partitions"`
}

// IndexSummary is the body of GET /api/v1/index.
type IndexSummary struct {
	Version   uint64           `json:"version"`
	Dimension int              `json:"dimension"`
	Metric    vecmath.Metric   `json:"metric"`
	Clusters  []ClusterSummary `json:"clusters"`
}

// PartitionSummary is the body of GET /api/v1/partitions.
type PartitionSummary struct {
	Key        string            `json:"key"`
	Entries    int               `json:"entries"`
	Dimension  int               `json:"dimension"`
	Namespaces map[string]uint64 `json:"namespaces"`
	Types      map[string]uint64 `json:"types"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	var req SearchRequest
	if err := codec.Default.Unmarshal(body, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := s.buildQuery(req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := q.Execute(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "search failed", "error", err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) buildQuery(req SearchRequest) (*mrlsearch.QueryBuilder, error) {
	if req.HotOnly && req.ColdOnly {
		return nil, errors.New("hot_only and cold_only are exclusive")
	}
	k := req.K
	if k == 0 {
		k = s.defaultK
	}

	q := s.engine.Query(req.Vector).K(k).Namespace(req.Namespace).Type(req.Type).Where(req.Where...)
	switch req.Mode {
	case "", string(mrlsearch.ModeSingle):
	case string(mrlsearch.ModeTwoPhase):
		q.TwoPhase()
	default:
		return nil, errors.New("unknown mode " + req.Mode)
	}
	if req.Metric != "" {
		m, err := vecmath.ParseMetric(req.Metric)
		if err != nil {
			return nil, err
		}
		q.Metric(m)
	}
	if req.TimeoutMS > 0 {
		q.Timeout(time.Duration(req.TimeoutMS) * time.Millisecond)
	}
	if req.ProbeClusters != nil {
		q.ProbeClusters(*req.ProbeClusters)
	}
	if req.HotOnly {
		q.HotOnly()
	}
	if req.ColdOnly {
		q.ColdOnly()
	}
	return q, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := s.engine.ClusterIndex(r.Context())
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	out := IndexSummary{
		Version:   idx.Version,
		Dimension: idx.Dimension,
		Metric:    idx.Metric,
		Clusters:  make([]ClusterSummary, len(idx.Clusters)),
	}
	for i, c := range idx.Clusters {
		out.Clusters[i] = ClusterSummary{ID: c.ID, Partitions: c.PartitionKeys}
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handlePartition(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "missing key")
		return
	}
	if s.store == nil {
		s.respondError(w, http.StatusNotFound, "no cold tier")
		return
	}

	p, err := partition.FetchPartition(r.Context(), s.store, key)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if p == nil {
		s.respondError(w, http.StatusNotFound, "partition not found")
		return
	}
	s.respondJSON(w, http.StatusOK, PartitionSummary{
		Key:        p.Key,
		Entries:    p.Len(),
		Dimension:  p.Dimension,
		Namespaces: p.Namespaces(),
		Types:      p.Types(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var (
		mismatch    *vecmath.ErrDimensionMismatch
		unsupported *vecmath.ErrUnsupportedDimension
		allFailed   *mrlsearch.AllPartitionsFailedError
	)
	switch {
	case errors.Is(err, mrlsearch.ErrInvalidK),
		errors.Is(err, vecmath.ErrZeroVector),
		errors.Is(err, mrlsearch.ErrNoTierEnabled),
		errors.Is(err, mrlsearch.ErrNoEmbeddingProvider),
		errors.As(err, &mismatch),
		errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.As(err, &allFailed), errors.Is(err, partition.ErrCorrupt):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
