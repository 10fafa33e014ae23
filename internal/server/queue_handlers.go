package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
)

// QueueAPI is the request queue as seen by the HTTP surface
type QueueAPI interface {
	Enqueue(ctx context.Context, kind queue.Kind, payload any) (*queue.Item, error)
	Accepts(kind queue.Kind) bool
	Kinds() []queue.Kind
	Policy() queue.Policy
	Get(ctx context.Context, id string) (*queue.Item, error)
	List(ctx context.Context, status queue.Status, limit int) ([]*queue.Item, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

type enqueueRequest struct {
	Kind    queue.Kind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// handleEnqueue handles POST /api/queue/items
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.cfg.Queue.Accepts(req.Kind) {
		s.writeError(w, http.StatusBadRequest, "unknown kind: "+string(req.Kind))
		return
	}

	item, err := s.cfg.Queue.Enqueue(r.Context(), req.Kind, req.Payload)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

type kindInfo struct {
	Kind        queue.Kind `json:"kind"`
	Description string     `json:"description"`
}

// handleListQueueKinds handles GET /api/queue/kinds
func (s *Server) handleListQueueKinds(w http.ResponseWriter, r *http.Request) {
	kinds := s.cfg.Queue.Kinds()
	out := make([]kindInfo, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, kindInfo{Kind: k, Description: k.Description()})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"kinds":  out,
		"policy": s.cfg.Queue.Policy(),
	})
}

// handleListQueueItems handles GET /api/queue/items?status=&limit=
func (s *Server) handleListQueueItems(w http.ResponseWriter, r *http.Request) {
	status := queue.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := s.cfg.Queue.List(r.Context(), status, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

// handleGetQueueItem handles GET /api/queue/items/{id}
func (s *Server) handleGetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.cfg.Queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// handleQueueStats handles GET /api/queue/stats
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Queue.Stats(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
