package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rasadlabs/newscrawler/internal/news"
)

type sourceRequest struct {
	Name            string         `json:"name"`
	BaseURL         string         `json:"base_url"`
	Active          *bool          `json:"active"`
	IntervalMinutes int            `json:"interval_minutes"`
	Settings        map[string]any `json:"settings"`
}

func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.BaseURL == "" {
		writeError(w, http.StatusBadRequest, "name and base_url are required")
		return
	}
	now := s.clock.Now()
	cfg := news.SourceConfig{
		Name:            req.Name,
		BaseURL:         req.BaseURL,
		Active:          boolOrDefault(req.Active, true),
		IntervalMinutes: req.IntervalMinutes,
		Settings:        req.Settings,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.configs.Create(r.Context(), cfg); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.configs.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) updateSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Crawl markers and creation time are owned by the crawler; an update
	// only replaces the operator-editable fields.
	cfg, err := s.configs.Get(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if req.BaseURL != "" {
		cfg.BaseURL = req.BaseURL
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	if req.IntervalMinutes > 0 {
		cfg.IntervalMinutes = req.IntervalMinutes
	}
	if req.Settings != nil {
		cfg.Settings = req.Settings
	}
	cfg.UpdatedAt = s.clock.Now()

	if err := s.configs.Update(r.Context(), cfg); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.configs.Delete(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	runID, err := s.disp.Dispatch(r.Context(), news.CrawlRequest{
		SourceName: name,
		Scheduled:  false,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "source": name})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := news.RunFilter{
		SourceName: r.URL.Query().Get("source"),
		Status:     news.RunStatus(r.URL.Query().Get("status")),
		Limit:      intQuery(r, "limit"),
		Offset:     intQuery(r, "offset"),
	}
	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	filter := news.ArticleFilter{
		SourceName: r.URL.Query().Get("source"),
		Limit:      intQuery(r, "limit"),
		Offset:     intQuery(r, "offset"),
	}
	articles, err := s.articles.ListArticles(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	article, err := s.articles.Get(r.Context(), chi.URLParam(r, "article_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.articles.Stats(r.Context(), r.URL.Query().Get("source"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeStoreError maps domain errors onto HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, news.ErrSourceUnknown),
		errors.Is(err, news.ErrRunUnknown),
		errors.Is(err, news.ErrArticleUnknown):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, news.ErrSourceExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func intQuery(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}
