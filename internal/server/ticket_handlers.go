package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/research"
)

// TicketAPI is the ticket lifecycle manager as seen by the HTTP surface
type TicketAPI interface {
	Create(ctx context.Context, subject string, payload any) (*research.Ticket, error)
	Get(ctx context.Context, id string) (*research.Ticket, error)
	List(ctx context.Context, status research.Status, limit int) ([]*research.Ticket, error)
	Claim(ctx context.Context, id string) (*research.Ticket, error)
	Complete(ctx context.Context, id string, result any) (*research.Ticket, error)
	Fail(ctx context.Context, id string, message string) (*research.Ticket, error)
	Stats(ctx context.Context) (research.Stats, error)
}

type createTicketRequest struct {
	Subject string          `json:"subject"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type completeTicketRequest struct {
	Result json.RawMessage `json:"result"`
}

type failTicketRequest struct {
	Error string `json:"error"`
}

// handleCreateTicket handles POST /api/tickets
func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		s.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	ticket, err := s.cfg.Tickets.Create(r.Context(), req.Subject, payload)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ticket)
}

// handleListTickets handles GET /api/tickets?status=&limit=
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	status := research.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tickets, err := s.cfg.Tickets.List(r.Context(), status, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets, "count": len(tickets)})
}

// handleGetTicket handles GET /api/tickets/{id}
func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.cfg.Tickets.Get(r.Context(), chi.URLParam(r, "id"))
	s.writeTicket(w, ticket, err)
}

// handleTicketStats handles GET /api/tickets/stats
func (s *Server) handleTicketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Tickets.Stats(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleClaimTicket handles POST /api/tickets/{id}/claim
func (s *Server) handleClaimTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.cfg.Tickets.Claim(r.Context(), chi.URLParam(r, "id"))
	s.writeTicket(w, ticket, err)
}

// handleCompleteTicket handles POST /api/tickets/{id}/complete
func (s *Server) handleCompleteTicket(w http.ResponseWriter, r *http.Request) {
	var req completeTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var result any
	if len(req.Result) > 0 {
		result = req.Result
	}
	ticket, err := s.cfg.Tickets.Complete(r.Context(), chi.URLParam(r, "id"), result)
	s.writeTicket(w, ticket, err)
}

// handleFailTicket handles POST /api/tickets/{id}/fail
func (s *Server) handleFailTicket(w http.ResponseWriter, r *http.Request) {
	var req failTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Error) == "" {
		s.writeError(w, http.StatusBadRequest, "error message is required")
		return
	}

	ticket, err := s.cfg.Tickets.Fail(r.Context(), chi.URLParam(r, "id"), req.Error)
	s.writeTicket(w, ticket, err)
}

func (s *Server) writeTicket(w http.ResponseWriter, ticket *research.Ticket, err error) {
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ticket)
}
