package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vaultsandbox/e3kit-go/internal/api"
	"github.com/vaultsandbox/e3kit-go/internal/crypto"
	"github.com/vaultsandbox/e3kit-go/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handlePublishCard(w http.ResponseWriter, r *http.Request) {
	var req api.PublishCardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		writeError(w, r, http.StatusBadRequest, "identity is required")
		return
	}
	if !s.authorize(w, r, req.Identity) {
		return
	}
	if _, err := crypto.ParsePublicKey(req.PublicKey); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid public key")
		return
	}

	card, err := s.store.PublishCard(r.Context(), storage.Card{
		ID:             crypto.CardID(req.Identity, req.PublicKey),
		Identity:       req.Identity,
		PublicKey:      req.PublicKey,
		PreviousCardID: req.PreviousCardID,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		s.storeError(w, r, "publish card", err)
		return
	}
	s.metrics.cardsPublished.Inc()
	s.log.Info("card published", "request_id", requestID(r.Context()), "identity", card.Identity, "card_id", card.ID)
	writeJSON(w, http.StatusOK, toAPICard(card))
}

func (s *Server) handleSearchCards(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	var req api.SearchCardsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Identities) == 0 {
		writeError(w, r, http.StatusBadRequest, "identities are required")
		return
	}
	if len(req.Identities) > maxSearchLength {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("at most %d identities per search", maxSearchLength))
		return
	}

	found, err := s.store.LatestCards(r.Context(), req.Identities)
	if err != nil {
		s.storeError(w, r, "search cards", err)
		return
	}

	resp := api.SearchCardsResponse{Cards: make([]api.Card, 0, len(found))}
	for _, id := range req.Identities {
		if c, ok := found[id]; ok {
			resp.Cards = append(resp.Cards, toAPICard(c))
			delete(found, id)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	identity, name := r.PathValue("identity"), r.PathValue("name")
	if !s.authorize(w, r, identity) {
		return
	}
	if !s.limiter.Allow(identity, s.now()) {
		s.metrics.rateLimited.Inc()
		s.log.Warn("entry read throttled", "request_id", requestID(r.Context()), "identity", identity)
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusTooManyRequests, "too many requests")
		return
	}

	e, err := s.store.GetEntry(r.Context(), identity, name)
	if err != nil {
		s.storeError(w, r, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIEntry(e))
}

func (s *Server) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	identity, name := r.PathValue("identity"), r.PathValue("name")
	if !s.authorize(w, r, identity) {
		return
	}
	var req api.PutEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Data) == 0 {
		writeError(w, r, http.StatusBadRequest, "data is required")
		return
	}

	e, err := s.store.PutEntry(r.Context(), identity, name, req.Data, req.ExpectedVersion)
	if errors.Is(err, storage.ErrNotFound) {
		// A versioned write against a missing entry is a lost race.
		err = storage.ErrConflict
	}
	if err != nil {
		s.metrics.entryWrites.WithLabelValues("put", "error").Inc()
		s.storeError(w, r, "put entry", err)
		return
	}
	s.metrics.entryWrites.WithLabelValues("put", "ok").Inc()
	s.log.Info("entry written", "request_id", requestID(r.Context()), "identity", identity, "name", name)
	writeJSON(w, http.StatusOK, toAPIEntry(e))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	identity, name := r.PathValue("identity"), r.PathValue("name")
	if !s.authorize(w, r, identity) {
		return
	}
	version := r.URL.Query().Get("version")
	if version == "" {
		writeError(w, r, http.StatusBadRequest, "version is required")
		return
	}

	if err := s.store.DeleteEntry(r.Context(), identity, name, version); err != nil {
		s.metrics.entryWrites.WithLabelValues("delete", "error").Inc()
		s.storeError(w, r, "delete entry", err)
		return
	}
	s.metrics.entryWrites.WithLabelValues("delete", "ok").Inc()
	s.log.Info("entry deleted", "request_id", requestID(r.Context()), "identity", identity, "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// storeError maps a storage failure to a response.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, r, http.StatusConflict, "version conflict")
	default:
		s.log.Error(op+" failed", "request_id", requestID(r.Context()), "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg, RequestID: requestID(r.Context())})
}

func toAPICard(c storage.Card) api.Card {
	return api.Card{
		ID:             c.ID,
		Identity:       c.Identity,
		PublicKey:      c.PublicKey,
		PreviousCardID: c.PreviousCardID,
		CreatedAt:      c.CreatedAt,
	}
}

func toAPIEntry(e storage.Entry) api.Entry {
	return api.Entry{
		Identity:  e.Identity,
		Name:      e.Name,
		Data:      e.Data,
		Version:   e.Version,
		UpdatedAt: e.UpdatedAt,
	}
}
