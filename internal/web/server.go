package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"smartcal/internal/assistant"
	"smartcal/internal/ics"
	"smartcal/internal/models"
	"smartcal/internal/present"
)

// stateTTL bounds how long a login attempt may take.
const stateTTL = 10 * time.Minute

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Server is the browser UI and JSON API for a single local user.
type Server struct {
	logger    *slog.Logger
	assistant *assistant.Assistant
	oauth     *oauth2.Config
	mux       *http.ServeMux

	statesMu sync.Mutex
	states   map[string]time.Time
}

// NewServer constructs a new Server. oauth may be nil, in which case login is
// unavailable from the browser.
func NewServer(logger *slog.Logger, a *assistant.Assistant, oauth *oauth2.Config) *Server {
	s := &Server{
		logger:    logger,
		assistant: a,
		oauth:     oauth,
		mux:       http.NewServeMux(),
		states:    make(map[string]time.Time),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.rejectCrossOrigin(s.mux)
}

// rejectCrossOrigin refuses state-changing requests sent by other sites.
func (s *Server) rejectCrossOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if !isSameOrigin(r) {
				s.logger.Warn("Rejected cross-origin request", "method", r.Method, "path", r.URL.Path,
					"origin", r.Header.Get("Origin"), "fetchSite", r.Header.Get("Sec-Fetch-Site"))
				http.Error(w, "cross-origin request rejected", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isSameOrigin trusts Sec-Fetch-Site when the browser sends it and falls back
// to comparing Origin with Host. Requests carrying neither header come from
// non-browser clients and are allowed.
func isSameOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /login", s.handleLogin)
	s.mux.HandleFunc("GET /oauth/callback", s.handleCallback)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("POST /events", s.handleSubmit)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
}

// eventView is an upcoming event prepared for display.
type eventView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Link    string `json:"link,omitempty"`
	Start   string `json:"start"`
	AllDay  bool   `json:"allDay"`
	Color   string `json:"color"`
	Hex     string `json:"hex"`
	IconURL string `json:"icon,omitempty"`
}

func toViews(events []*models.Event) []eventView {
	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		color := present.ColorOf(ev.Title)
		icon, _ := present.IconURL(present.IconFor(color))
		v := eventView{
			ID:      ev.ID,
			Title:   ev.Title,
			Link:    ev.Link,
			AllDay:  ev.AllDay,
			Color:   string(color),
			Hex:     color.Hex(),
			IconURL: icon,
		}
		if ev.AllDay {
			v.Start = ev.Start.Format("2006-01-02")
		} else {
			v.Start = ev.Start.Format(time.RFC3339)
		}
		views = append(views, v)
	}
	return views
}

type pageData struct {
	LoggedIn  bool
	Email     string
	CanLogin  bool
	Message   models.Message
	Draft     string
	Preview   *models.ExtractedEvent
	Upcoming  []eventView
	Examples  []string
	Templates []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := s.assistant.Session()
	if err != nil {
		s.logger.Error("Failed to load session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		LoggedIn:  sess != nil,
		CanLogin:  s.oauth != nil,
		Message:   s.assistant.Message(),
		Draft:     r.URL.Query().Get("text"),
		Examples:  present.Examples,
		Templates: present.Templates,
	}
	if sess != nil {
		data.Email = sess.Email
		data.Preview = s.assistant.Preview()
		data.Upcoming = toViews(s.assistant.Upcoming())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Error("Failed to render page", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.Error(w, "Google OAuth is not configured", http.StatusServiceUnavailable)
		return
	}

	state := uuid.NewString()
	s.statesMu.Lock()
	s.pruneStatesLocked()
	s.states[state] = time.Now().Add(stateTTL)
	s.statesMu.Unlock()

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// consumeState reports whether state was issued and is still valid. A state
// can be used once.
func (s *Server) consumeState(state string) bool {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	expires, ok := s.states[state]
	delete(s.states, state)
	return ok && time.Now().Before(expires)
}

func (s *Server) pruneStatesLocked() {
	now := time.Now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.Error(w, "Google OAuth is not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.logger.Error("Login failed", "error", e)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !s.consumeState(q.Get("state")) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := s.oauth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		s.logger.Error("Failed to exchange authorization code", "error", err)
		http.Error(w, "authorization failed", http.StatusBadGateway)
		return
	}

	if _, err := s.assistant.Login(r.Context(), token.AccessToken); err != nil {
		s.logger.Error("Login failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.assistant.Logout(); err != nil {
		s.logger.Error("Logout failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	Message models.Message         `json:"message"`
	Preview *models.ExtractedEvent `json:"preview,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	jsonBody := isJSON(r)

	var text string
	if jsonBody {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		text = req.Text
	} else {
		text = r.FormValue("text")
	}

	err := s.assistant.Submit(r.Context(), text)

	if !jsonBody {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, models.ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrBusy):
		status = http.StatusConflict
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, submitResponse{
		Message: s.assistant.Message(),
		Preview: s.assistant.Preview(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		if err := s.assistant.Refresh(r.Context()); err != nil {
			switch {
			case errors.Is(err, models.ErrNotAuthenticated), errors.Is(err, models.ErrAuthExpired):
				http.Error(w, "not authenticated", http.StatusUnauthorized)
			default:
				s.logger.Error("Failed to refresh events", "error", err)
				http.Error(w, "failed to fetch events", http.StatusBadGateway)
			}
			return
		}
	}
	writeJSON(w, http.StatusOK, toViews(s.assistant.Upcoming()))
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="smartcal.ics"`)
	if err := ics.Encode(w, s.assistant.Upcoming()); err != nil {
		s.logger.Error("Failed to export events", "error", err)
	}
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func wantsJSON(r *http.Request) bool {
	return isJSON(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
