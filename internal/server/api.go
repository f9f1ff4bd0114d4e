package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/assets"
)

// DeckInfo describes a discovered deck in the JSON API.
type DeckInfo struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Slides int    `json:"slides"`
	Error  string `json:"error,omitempty"`
}

// serveDecks lists the loaded decks followed by the failed ones.
func (s *Server) serveDecks(w http.ResponseWriter, r *http.Request) {
	routes := s.Routes()
	failures := s.Failures()
	out := make([]DeckInfo, 0, len(routes)+len(failures))
	for _, route := range routes {
		out = append(out, DeckInfo{
			Name:   route.FilePath,
			URL:    route.Pattern,
			Title:  route.Deck.Title,
			Slides: route.Deck.SlideCount(),
		})
	}
	for _, f := range failures {
		out = append(out, DeckInfo{Name: f.FilePath, URL: f.Pattern, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, out)
}

// serveJournal returns recent journal entries, newest first.
// Query parameters: deck (optional) and limit (default 50).
func (s *Server) serveJournal(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 1000)
	}

	entries, err := s.store.Recent(r.Context(), r.URL.Query().Get("deck"), limit)
	if err != nil {
		s.log.Warn("journal query failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	if entries == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// serveVisits returns per-slide visit counts of one deck.
func (s *Server) serveVisits(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	deck := r.URL.Query().Get("deck")
	if deck == "" {
		writeJSONError(w, http.StatusBadRequest, "deck is required")
		return
	}
	visits, err := s.store.Visits(r.Context(), deck)
	if err != nil {
		s.log.Warn("journal query failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	if visits == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, visits)
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"decks":       len(s.Routes()),
		"connections": s.ConnectionCount(),
		"journal":     s.store != nil,
	})
}

// serveAsset serves the embedded client files.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	content, contentType, err := assets.Get(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(content)
}
