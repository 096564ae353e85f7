package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"smartcal/internal/builder"
	"smartcal/internal/models"
	"smartcal/internal/present"
)

const (
	// MaxUpcoming caps the working set of upcoming events.
	MaxUpcoming = 5

	// PreviewTTL is how long the extracted preview stays visible after a
	// successful creation.
	PreviewTTL = 5 * time.Second
)

// User-facing messages.
const (
	MsgConnected    = "¡Conectado con Google Calendar!"
	MsgCreated      = "¡Evento creado exitosamente en Google Calendar!"
	MsgEmptyInput   = "Por favor describe tu tarea"
	MsgSubmitFailed = "Error al crear el evento. Revisa el registro para más detalles."
	MsgProfileError = "No se pudo obtener la información del usuario."
)

// Extractor turns free text into event fields.
type Extractor interface {
	Extract(ctx context.Context, text string, now time.Time) (models.ExtractedEvent, error)
}

// Calendar is the provider surface the assistant needs.
type Calendar interface {
	GetProfile(ctx context.Context, token string) (string, error)
	CreateEvent(ctx context.Context, token string, draft models.EventDraft) (*models.Event, error)
	ListUpcoming(ctx context.Context, token string, from time.Time, maxResults int64) ([]*models.Event, error)
}

// SessionStore persists the session across restarts.
type SessionStore interface {
	Save(token, email string) error
	Load() (*models.Session, error)
	Clear() error
}

// Assistant orchestrates extraction and event creation for a single user.
type Assistant struct {
	logger    *slog.Logger
	extractor Extractor
	calendar  Calendar
	sessions  SessionStore
	location  func() *time.Location
	now       func() time.Time

	inFlight atomic.Bool

	mu           sync.Mutex
	message      models.Message
	preview      *models.ExtractedEvent
	previewUntil time.Time
	upcoming     []*models.Event
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// WithLocation sets how the event timezone is resolved. It is called once per
// submission.
func WithLocation(loc func() *time.Location) Option {
	return func(a *Assistant) { a.location = loc }
}

// New creates a new Assistant.
func New(logger *slog.Logger, extractor Extractor, calendar Calendar, sessions SessionStore, opts ...Option) *Assistant {
	a := &Assistant{
		logger:    logger,
		extractor: extractor,
		calendar:  calendar,
		sessions:  sessions,
		location:  func() *time.Location { return time.Local },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Restore reports whether a stored session exists and, if so, greets the user.
func (a *Assistant) Restore() (bool, error) {
	sess, err := a.sessions.Load()
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return false, nil
	}
	a.logger.Info("Session restored from local storage.", "email", sess.Email)
	a.setMessage(models.MessageSuccess, MsgConnected)
	return true, nil
}

// Session returns the current session, or nil when logged out.
func (a *Assistant) Session() (*models.Session, error) {
	return a.sessions.Load()
}

// Login looks up the account for token, persists the session and loads the
// upcoming events. A failed load does not fail the login.
func (a *Assistant) Login(ctx context.Context, token string) (string, error) {
	email, err := a.calendar.GetProfile(ctx, token)
	if err != nil {
		a.logger.Error("Error fetching user info", "error", err)
		a.setMessage(models.MessageError, MsgProfileError)
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}

	if err := a.sessions.Save(token, email); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	a.logger.Info("Login successful.", "email", email)
	a.setMessage(models.MessageSuccess, MsgConnected)

	if err := a.refresh(ctx, &models.Session{AccessToken: token, Email: email}); err != nil {
		a.logger.Warn("Logged in but fetching upcoming events failed", "error", err)
	}
	return email, nil
}

// Logout drops the session and all derived state.
func (a *Assistant) Logout() error {
	if err := a.sessions.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.message = models.Message{}
	a.preview = nil
	a.upcoming = nil
	return nil
}

// Submit turns text into a calendar event. Extraction, creation and the
// refresh of upcoming events run strictly in that order.
func (a *Assistant) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		a.setMessage(models.MessageError, MsgEmptyInput)
		return models.ErrEmptyInput
	}

	if !a.inFlight.CompareAndSwap(false, true) {
		return models.ErrBusy
	}
	defer a.inFlight.Store(false)

	sess, err := a.sessions.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return models.ErrNotAuthenticated
	}

	a.setMessage(models.MessageNone, "")

	extracted, err := a.create(ctx, sess, text)
	if err != nil {
		a.logger.Error("Failed to create event", "error", err)
		a.setMessage(models.MessageError, MsgSubmitFailed)
		return err
	}

	if err := a.refresh(ctx, sess); err != nil {
		a.logger.Warn("Event created but refreshing upcoming events failed", "error", err)
	}

	a.mu.Lock()
	a.message = models.Message{Kind: models.MessageSuccess, Text: MsgCreated}
	a.preview = &extracted
	a.previewUntil = a.now().Add(PreviewTTL)
	a.mu.Unlock()
	return nil
}

// create runs extraction, building and creation.
func (a *Assistant) create(ctx context.Context, sess *models.Session, text string) (models.ExtractedEvent, error) {
	a.logger.Info("Extracting event from text.", "text", text)
	extracted, err := a.extractor.Extract(ctx, text, a.now())
	if err != nil {
		return models.ExtractedEvent{}, fmt.Errorf("extraction failed: %w", err)
	}
	a.logger.Debug("Extracted event", "title", extracted.Title, "date", extracted.Date, "time", extracted.Time)

	draft, err := builder.Build(extracted, a.location())
	if err != nil {
		return models.ExtractedEvent{}, fmt.Errorf("failed to build event: %w", err)
	}

	if _, err := a.calendar.CreateEvent(ctx, sess.AccessToken, draft); err != nil {
		return models.ExtractedEvent{}, err
	}
	return extracted, nil
}

// Refresh replaces the upcoming events working set.
func (a *Assistant) Refresh(ctx context.Context) error {
	sess, err := a.sessions.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return models.ErrNotAuthenticated
	}
	return a.refresh(ctx, sess)
}

func (a *Assistant) refresh(ctx context.Context, sess *models.Session) error {
	events, err := a.calendar.ListUpcoming(ctx, sess.AccessToken, a.now(), MaxUpcoming)
	if err != nil {
		if errors.Is(err, models.ErrAuthExpired) {
			// The calendar client has already cleared the stored session.
			a.mu.Lock()
			a.upcoming = nil
			a.preview = nil
			a.mu.Unlock()
		}
		return err
	}

	visible := present.Visible(events)
	a.mu.Lock()
	a.upcoming = visible
	a.mu.Unlock()
	return nil
}

// Message returns the latest user-facing message.
func (a *Assistant) Message() models.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

// Preview returns the last extracted event while it is still fresh.
func (a *Assistant) Preview() *models.ExtractedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.preview == nil || !a.now().Before(a.previewUntil) {
		a.preview = nil
		return nil
	}
	p := *a.preview
	return &p
}

// Upcoming returns a copy of the current working set.
func (a *Assistant) Upcoming() []*models.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*models.Event, len(a.upcoming))
	copy(out, a.upcoming)
	return out
}

// Busy reports whether a submission is in flight.
func (a *Assistant) Busy() bool {
	return a.inFlight.Load()
}

func (a *Assistant) setMessage(kind models.MessageKind, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.message = models.Message{Kind: kind, Text: text}
}
