package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"smartcal/internal/models"
)

const (
	primaryCalendar = "primary"
	serviceName     = "google"
)

// SessionClearer tears down the local session when the provider rejects the
// access token.
type SessionClearer interface {
	Clear() error
}

// CalendarClient provides a client for interacting with the Google Calendar API.
// Every call is authenticated with the bearer token passed in.
type CalendarClient struct {
	logger   *slog.Logger
	sessions SessionClearer
	opts     []option.ClientOption
}

// NewClient creates a new Google Calendar client. Extra options are appended
// to every service, which lets tests point the client at a local endpoint.
func NewClient(logger *slog.Logger, sessions SessionClearer, opts ...option.ClientOption) *CalendarClient {
	return &CalendarClient{logger: logger, sessions: sessions, opts: opts}
}

// clientOptions sets up an HTTP client that sends "Authorization: Bearer <token>".
func (c *CalendarClient) clientOptions(ctx context.Context, token string) []option.ClientOption {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	return append(opts, c.opts...)
}

// GetProfile returns the email of the account that owns token.
func (c *CalendarClient) GetProfile(ctx context.Context, token string) (string, error) {
	service, err := oauth2api.NewService(ctx, c.clientOptions(ctx, token)...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch user info: %w", c.upstreamError(err))
	}
	if info.Email == "" {
		return "", fmt.Errorf("user info has no email")
	}
	return info.Email, nil
}

// CreateEvent inserts draft into the primary calendar. There is no retry.
func (c *CalendarClient) CreateEvent(ctx context.Context, token string, draft models.EventDraft) (*models.Event, error) {
	service, err := calendar.NewService(ctx, c.clientOptions(ctx, token)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	c.logger.Debug("Creating event", "title", draft.Title, "start", draft.Start, "timeZone", draft.TimeZone)
	created, err := service.Events.Insert(primaryCalendar, toGoogleEvent(draft)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", c.upstreamError(err))
	}

	c.logger.Info("Successfully created event in Google Calendar", "id", created.Id, "title", created.Summary)
	return toInternalEvent(created), nil
}

// ListUpcoming fetches up to maxResults events starting from from, with recurring
// events expanded and ordered by start time. A 401 clears the session.
func (c *CalendarClient) ListUpcoming(ctx context.Context, token string, from time.Time, maxResults int64) ([]*models.Event, error) {
	service, err := calendar.NewService(ctx, c.clientOptions(ctx, token)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	c.logger.Debug("Fetching upcoming events", "from", from, "max", maxResults)
	events, err := service.Events.List(primaryCalendar).
		TimeMin(from.Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
			c.logger.Warn("Google rejected the access token, logging out")
			if cerr := c.sessions.Clear(); cerr != nil {
				c.logger.Error("Failed to clear session", "error", cerr)
			}
			return nil, fmt.Errorf("failed to retrieve events: %w", models.ErrAuthExpired)
		}
		return nil, fmt.Errorf("failed to retrieve events: %w", c.upstreamError(err))
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(events.Items))
	return toInternalEvents(events.Items), nil
}

// upstreamError logs the provider payload and converts it to an UpstreamError.
func (c *CalendarClient) upstreamError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	c.logger.Error("Google API returned an error", "status", gerr.Code, "message", gerr.Message, "body", gerr.Body)
	return &models.UpstreamError{Service: serviceName, StatusCode: gerr.Code, Payload: gerr.Message}
}

// toGoogleEvent converts a draft to the provider payload.
func toGoogleEvent(draft models.EventDraft) *calendar.Event {
	return &calendar.Event{
		Summary:     draft.Title,
		Description: draft.Description,
		Start: &calendar.EventDateTime{
			DateTime: draft.Start.Format(time.RFC3339),
			TimeZone: draft.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: draft.End.Format(time.RFC3339),
			TimeZone: draft.TimeZone,
		},
	}
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func toInternalEvents(googleEvents []*calendar.Event) []*models.Event {
	internalEvents := make([]*models.Event, 0, len(googleEvents))
	for _, item := range googleEvents {
		internalEvents = append(internalEvents, toInternalEvent(item))
	}
	return internalEvents
}

func toInternalEvent(item *calendar.Event) *models.Event {
	event := &models.Event{
		ID:      item.Id,
		Title:   item.Summary,
		Link:    item.HtmlLink,
		ICalUID: item.ICalUID,
	}
	event.Start, event.AllDay = parseEventTime(item.Start)
	event.End, _ = parseEventTime(item.End)

	if item.Organizer != nil {
		event.Organizer = &models.Organizer{
			Email:       item.Organizer.Email,
			DisplayName: item.Organizer.DisplayName,
		}
	}
	return event
}

// parseEventTime reads either a dateTime or a date-only value. The bool
// reports a date-only (all-day) value.
func parseEventTime(t *calendar.EventDateTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		parsed, _ := time.Parse(time.RFC3339, t.DateTime)
		return parsed, false
	}
	if t.Date != "" {
		parsed, _ := time.ParseInLocation("2006-01-02", t.Date, time.Local)
		return parsed, true
	}
	return time.Time{}, false
}
