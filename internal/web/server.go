package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conorfennell/ripen/internal/app"
	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/review"
	"github.com/conorfennell/ripen/internal/storage"
	cardsync "github.com/conorfennell/ripen/internal/sync"
)

//go:embed all:templates
var templateFiles embed.FS

var funcs = template.FuncMap{
	"wait": func(d time.Duration) string {
		if d < time.Minute {
			return "less than a minute"
		}
		return d.Truncate(time.Minute).String()
	},
}

// Server holds the dependencies for the HTTP server. All handlers share one App, so
// requests are served one at a time.
type Server struct {
	mu        sync.Mutex
	app       *app.App
	router    *http.ServeMux
	templates *template.Template
	logger    *slog.Logger
}

// NewServer creates and configures a new server.
func NewServer(a *app.App, logger *slog.Logger) (*Server, error) {
	tpl, err := template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:       a,
		router:    http.NewServeMux(),
		templates: tpl,
		logger:    logger,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /{$}", s.handleIndex)

	// HTMX-based routes
	s.router.HandleFunc("GET /review/next", s.handleNextReview)
	s.router.HandleFunc("GET /review/answer", s.handleShowAnswer)
	s.router.HandleFunc("POST /review/{result}", s.handlePostReview)
	s.router.HandleFunc("GET /summary", s.handleSummary)
	s.router.HandleFunc("POST /analyze", s.handleAnalyze)

	// Source management routes
	s.router.HandleFunc("GET /sources", s.handleGetSources)
	s.router.HandleFunc("POST /sources", s.handlePostSource)
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource)
	s.router.HandleFunc("POST /sync", s.handlePostSync)
}

type cardView struct {
	Question  string
	Answer    string
	Remaining int
}

type sourcesView struct {
	Sources []storage.Source
	Report  *cardsync.Report
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.serverError(w, "error rendering template", err, "template", name)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error, args ...any) {
	s.logger.Error(msg, append(args, "error", err)...)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// handleIndex renders the deck page with the due count.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index", s.app.Status())
}

// handleNextReview renders the front of the current card, starting a session when
// none is running.
func (s *Server) handleNextReview(w http.ResponseWriter, r *http.Request) {
	if s.app.Reviews.State() != review.Active {
		s.app.Reviews.ContinueSession()
	}
	s.renderCurrent(w)
}

func (s *Server) renderCurrent(w http.ResponseWriter) {
	e := s.app.Reviews.Current()
	if e == nil {
		s.render(w, "deck", s.app.Status())
		return
	}
	s.render(w, "card_front", cardView{Question: e.Question(), Remaining: s.app.Reviews.Remaining()})
}

// handleShowAnswer renders the back of the current card.
func (s *Server) handleShowAnswer(w http.ResponseWriter, r *http.Request) {
	e := s.app.Reviews.Current()
	if e == nil {
		http.NotFound(w, r)
		return
	}
	s.render(w, "card_back", cardView{
		Question:  e.Question(),
		Answer:    e.Answer(),
		Remaining: s.app.Reviews.Remaining(),
	})
}

// handlePostReview records the answer for the current card, persists it, and renders
// the next card or the session summary.
func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	result, err := domain.ParseReviewResult(r.PathValue("result"))
	if err != nil {
		http.Error(w, "Invalid review result", http.StatusBadRequest)
		return
	}
	if err := s.app.Answer(r.Context(), result); err != nil {
		if errors.Is(err, review.ErrNoCurrentEntry) {
			http.Error(w, "No card under review", http.StatusConflict)
			return
		}
		s.serverError(w, "error recording review", err)
		return
	}
	if summary, ok := s.app.Reviews.Summary(); ok && s.app.Reviews.State() == review.Ended {
		s.render(w, "summary", summary)
		return
	}
	s.renderCurrent(w)
}

// handleSummary renders the summary of the last finished session.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.app.Reviews.Summary()
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, "summary", summary)
}

// handleAnalyze refreshes the recommendations and renders the analysis report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var buf strings.Builder
	if err := s.app.Analyze(r.Context(), &buf); err != nil {
		s.serverError(w, "error analyzing collection", err)
		return
	}
	s.render(w, "report", buf.String())
}

func (s *Server) sourcesView(w http.ResponseWriter, r *http.Request, report *cardsync.Report) (sourcesView, bool) {
	sources, err := s.app.DB.GetAllSources(r.Context())
	if err != nil {
		s.serverError(w, "error getting sources", err)
		return sourcesView{}, false
	}
	return sourcesView{Sources: sources, Report: report}, true
}

// handleGetSources renders the main sources management page.
func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	if view, ok := s.sourcesView(w, r, nil); ok {
		s.render(w, "sources_page", view)
	}
}

// handlePostSource adds a new source and re-renders the source list.
func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.PostFormValue("path"))
	if path == "" {
		http.Error(w, "Path cannot be empty", http.StatusBadRequest)
		return
	}
	if _, err := s.app.AddSource(r.Context(), path); err != nil {
		if errors.Is(err, cardsync.ErrSourceExists) {
			http.Error(w, "Source already exists", http.StatusConflict)
			return
		}
		s.logger.Warn("rejected source", "path", path, "error", err)
		http.Error(w, "Failed to add source", http.StatusBadRequest)
		return
	}
	if view, ok := s.sourcesView(w, r, nil); ok {
		s.render(w, "source_list", view)
	}
}

// handleDeleteSource deletes a source and re-renders the source list.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid source ID", http.StatusBadRequest)
		return
	}
	if err := s.app.DB.DeleteSource(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.serverError(w, "error deleting source", err, "source_id", id)
		return
	}
	if view, ok := s.sourcesView(w, r, nil); ok {
		s.render(w, "source_list", view)
	}
}

// handlePostSync triggers a sync in the foreground and re-renders the source list.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.app.Sync(r.Context())
	if err != nil {
		s.serverError(w, "error syncing sources", err)
		return
	}
	if view, ok := s.sourcesView(w, r, &report); ok {
		s.render(w, "source_list", view)
	}
}
