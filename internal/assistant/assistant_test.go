package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcal/internal/models"
)

// recorder collects calls across fakes so ordering can be asserted.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeExtractor struct {
	rec    *recorder
	result models.ExtractedEvent
	err    error
	block  chan struct{}
	gotNow time.Time
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, now time.Time) (models.ExtractedEvent, error) {
	f.rec.add("extract")
	f.gotNow = now
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return models.ExtractedEvent{}, f.err
	}
	ev := f.result
	ev.Description = text
	return ev, nil
}

type fakeCalendar struct {
	rec       *recorder
	sessions  *memSessions
	email     string
	profErr   error
	createErr error
	listErr   error
	events    []*models.Event
	drafts    []models.EventDraft
	tokens    []string
}

func (f *fakeCalendar) GetProfile(ctx context.Context, token string) (string, error) {
	f.rec.add("profile")
	return f.email, f.profErr
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, token string, draft models.EventDraft) (*models.Event, error) {
	f.rec.add("create")
	f.tokens = append(f.tokens, token)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.drafts = append(f.drafts, draft)
	return &models.Event{ID: "new", Title: draft.Title, Start: draft.Start, End: draft.End}, nil
}

func (f *fakeCalendar) ListUpcoming(ctx context.Context, token string, from time.Time, maxResults int64) ([]*models.Event, error) {
	f.rec.add(fmt.Sprintf("list:%d", maxResults))
	if errors.Is(f.listErr, models.ErrAuthExpired) {
		_ = f.sessions.Clear()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

type memSessions struct {
	mu   sync.Mutex
	sess *models.Session
}

func (m *memSessions) Save(token, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &models.Session{AccessToken: token, Email: email}
	return nil
}

func (m *memSessions) Load() (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	s := *m.sess
	return &s, nil
}

func (m *memSessions) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

type fixture struct {
	rec       *recorder
	extractor *fakeExtractor
	calendar  *fakeCalendar
	sessions  *memSessions
	clock     *time.Time
	assistant *Assistant
}

func newFixture(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	rec := &recorder{}
	sessions := &memSessions{}
	if loggedIn {
		require.NoError(t, sessions.Save("ya29.token", "fran@example.com"))
	}
	clock := time.Date(2024, 6, 12, 10, 0, 0, 0, loc)
	f := &fixture{
		rec: rec,
		extractor: &fakeExtractor{rec: rec, result: models.ExtractedEvent{
			Title: "Cena con Fran y Gaby", Date: "2024-06-15", Time: "21:00",
		}},
		calendar: &fakeCalendar{rec: rec, sessions: sessions, email: "fran@example.com"},
		sessions: sessions,
		clock:    &clock,
	}
	f.assistant = New(slog.New(slog.NewTextHandler(io.Discard, nil)), f.extractor, f.calendar, sessions,
		WithClock(func() time.Time { return *f.clock }),
		WithLocation(func() *time.Location { return loc }),
	)
	return f
}

func TestSubmitScenario(t *testing.T) {
	f := newFixture(t, true)
	f.calendar.events = []*models.Event{
		{ID: "new", Title: "Cena con Fran y Gaby"},
		{ID: "bday", Title: "¡Feliz cumpleaños!"},
	}
	input := "Cena con Fran y Gaby el sábado a las 21hs"

	require.NoError(t, f.assistant.Submit(context.Background(), input))

	assert.Equal(t, []string{"extract", "create", "list:5"}, f.rec.list())
	assert.Equal(t, *f.clock, f.extractor.gotNow)

	require.Len(t, f.calendar.drafts, 1)
	draft := f.calendar.drafts[0]
	assert.Equal(t, "2024-06-15T21:00:00", draft.Start.Format("2006-01-02T15:04:05"))
	assert.Equal(t, "2024-06-15T22:00:00", draft.End.Format("2006-01-02T15:04:05"))
	assert.Equal(t, input, draft.Description)
	assert.Equal(t, []string{"ya29.token"}, f.calendar.tokens)

	assert.Equal(t, models.Message{Kind: models.MessageSuccess, Text: MsgCreated}, f.assistant.Message())

	upcoming := f.assistant.Upcoming()
	require.Len(t, upcoming, 1)
	assert.Equal(t, "new", upcoming[0].ID)

	preview := f.assistant.Preview()
	require.NotNil(t, preview)
	assert.Equal(t, "Cena con Fran y Gaby", preview.Title)
}

func TestPreviewExpires(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.assistant.Submit(context.Background(), "Cena el sábado"))

	*f.clock = f.clock.Add(PreviewTTL - time.Millisecond)
	assert.NotNil(t, f.assistant.Preview())

	*f.clock = f.clock.Add(time.Millisecond)
	assert.Nil(t, f.assistant.Preview())
}

func TestSubmitEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		f := newFixture(t, true)

		err := f.assistant.Submit(context.Background(), input)

		require.ErrorIs(t, err, models.ErrEmptyInput)
		assert.Empty(t, f.rec.list())
		assert.Equal(t, models.Message{Kind: models.MessageError, Text: MsgEmptyInput}, f.assistant.Message())
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	f := newFixture(t, false)

	err := f.assistant.Submit(context.Background(), "Danza mañana")

	require.ErrorIs(t, err, models.ErrNotAuthenticated)
	assert.Empty(t, f.rec.list())
}

func TestSubmitFailuresShortCircuit(t *testing.T) {
	t.Run("extraction", func(t *testing.T) {
		f := newFixture(t, true)
		f.extractor.err = &models.UpstreamError{Service: "openrouter", StatusCode: 500, Payload: "boom"}

		err := f.assistant.Submit(context.Background(), "Danza mañana")

		var upErr *models.UpstreamError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, []string{"extract"}, f.rec.list())
		assert.Equal(t, models.Message{Kind: models.MessageError, Text: MsgSubmitFailed}, f.assistant.Message())
		assert.Nil(t, f.assistant.Preview())
	})

	t.Run("malformed date", func(t *testing.T) {
		f := newFixture(t, true)
		f.extractor.result.Date = "sábado"

		require.Error(t, f.assistant.Submit(context.Background(), "Danza el sábado"))
		assert.Equal(t, []string{"extract"}, f.rec.list())
		assert.Equal(t, MsgSubmitFailed, f.assistant.Message().Text)
	})

	t.Run("creation", func(t *testing.T) {
		f := newFixture(t, true)
		f.calendar.createErr = &models.UpstreamError{Service: "google", StatusCode: 400}

		require.Error(t, f.assistant.Submit(context.Background(), "Danza mañana"))
		assert.Equal(t, []string{"extract", "create"}, f.rec.list())
		assert.Equal(t, MsgSubmitFailed, f.assistant.Message().Text)
	})
}

func TestSubmitRefreshFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, true)
	f.calendar.listErr = &models.UpstreamError{Service: "google", StatusCode: 503}

	require.NoError(t, f.assistant.Submit(context.Background(), "Danza mañana"))
	assert.Equal(t, MsgCreated, f.assistant.Message().Text)
	assert.Len(t, f.calendar.drafts, 1)
}

func TestRefreshUnauthorizedLogsOut(t *testing.T) {
	f := newFixture(t, true)
	f.calendar.listErr = fmt.Errorf("failed to retrieve events: %w", models.ErrAuthExpired)

	err := f.assistant.Refresh(context.Background())
	require.ErrorIs(t, err, models.ErrAuthExpired)

	sess, err := f.assistant.Session()
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Empty(t, f.assistant.Upcoming())
}

func TestSubmitIsSingleFlight(t *testing.T) {
	f := newFixture(t, true)
	f.extractor.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.assistant.Submit(context.Background(), "Danza mañana") }()

	require.Eventually(t, f.assistant.Busy, time.Second, time.Millisecond)
	require.ErrorIs(t, f.assistant.Submit(context.Background(), "Otra cosa"), models.ErrBusy)

	close(f.extractor.block)
	require.NoError(t, <-done)
	assert.False(t, f.assistant.Busy())
	assert.Equal(t, []string{"extract", "create", "list:5"}, f.rec.list())
}

func TestLoginLogout(t *testing.T) {
	f := newFixture(t, false)
	f.calendar.events = []*models.Event{
		{ID: "a", Title: "Chiara tiene Atletismo"},
		{ID: "bday", Title: "¡Feliz cumpleaños!"},
	}

	email, err := f.assistant.Login(context.Background(), "ya29.new")
	require.NoError(t, err)
	assert.Equal(t, "fran@example.com", email)
	assert.Equal(t, MsgConnected, f.assistant.Message().Text)

	assert.Equal(t, []string{"profile", "list:5"}, f.rec.list())
	upcoming := f.assistant.Upcoming()
	require.Len(t, upcoming, 1)
	assert.Equal(t, "a", upcoming[0].ID)

	sess, err := f.assistant.Session()
	require.NoError(t, err)
	assert.Equal(t, &models.Session{AccessToken: "ya29.new", Email: "fran@example.com"}, sess)

	require.NoError(t, f.assistant.Logout())
	sess, err = f.assistant.Session()
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, models.Message{}, f.assistant.Message())
	assert.Empty(t, f.assistant.Upcoming())
}

func TestLoginSurvivesRefreshFailure(t *testing.T) {
	f := newFixture(t, false)
	f.calendar.listErr = &models.UpstreamError{Service: "google", StatusCode: 503}

	_, err := f.assistant.Login(context.Background(), "ya29.new")
	require.NoError(t, err)
	assert.Equal(t, MsgConnected, f.assistant.Message().Text)

	sess, err := f.assistant.Session()
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Empty(t, f.assistant.Upcoming())
}

func TestLoginProfileFailure(t *testing.T) {
	f := newFixture(t, false)
	f.calendar.profErr = errors.New("network down")

	_, err := f.assistant.Login(context.Background(), "ya29.new")
	require.Error(t, err)
	assert.Equal(t, models.Message{Kind: models.MessageError, Text: MsgProfileError}, f.assistant.Message())

	sess, err := f.assistant.Session()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRestore(t *testing.T) {
	f := newFixture(t, true)
	ok, err := f.assistant.Restore()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, MsgConnected, f.assistant.Message().Text)

	f = newFixture(t, false)
	ok, err = f.assistant.Restore()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.Message{}, f.assistant.Message())
}
