package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"smartcal/internal/models"
)

const serviceName = "openrouter"

// Config holds what the client needs to reach the completion endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string // Sent as HTTP-Referer, required by OpenRouter
	Title   string // Sent as X-Title
}

// headerTransport adds the OpenRouter identification headers to each request.
type headerTransport struct {
	Referer   string
	Title     string
	Transport http.RoundTripper
}

// RoundTrip adds required headers to each request.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Referer != "" {
		req.Header.Set("HTTP-Referer", t.Referer)
	}
	if t.Title != "" {
		req.Header.Set("X-Title", t.Title)
	}
	return t.Transport.RoundTrip(req)
}

// Client extracts event fields from free text with a hosted language model.
type Client struct {
	client *openai.Client
	logger *slog.Logger
	apiKey string
	model  string
}

// NewClient creates a new extraction client. A missing API key is not an
// error here; Extract reports it on use.
func NewClient(logger *slog.Logger, cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Transport: &headerTransport{
		Referer:   cfg.Referer,
		Title:     cfg.Title,
		Transport: http.DefaultTransport,
	}}

	return &Client{
		client: openai.NewClientWithConfig(oc),
		logger: logger,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

// response is the JSON object the model is asked to produce.
type response struct {
	Titulo string `json:"titulo"`
	Fecha  string `json:"fecha"`
	Hora   string `json:"hora"`
}

// Extract asks the model for the title, date and time described by text.
// now anchors relative expressions such as "mañana".
func (c *Client) Extract(ctx context.Context, text string, now time.Time) (models.ExtractedEvent, error) {
	if c.apiKey == "" {
		return models.ExtractedEvent{}, fmt.Errorf("OPENROUTER_API_KEY is not set: %w", models.ErrConfiguration)
	}

	prompt := buildPrompt(text, now)
	c.logger.Debug("Sending extraction request", "model", c.model, "prompt", prompt)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.ExtractedEvent{}, c.upstreamError(err)
	}

	if len(resp.Choices) == 0 {
		return models.ExtractedEvent{}, &models.ParseError{Cause: errors.New("response has no choices")}
	}
	content := resp.Choices[0].Message.Content
	c.logger.Debug("Received extraction response", "content", content)

	ev, err := parseContent(content)
	if err != nil {
		return models.ExtractedEvent{}, err
	}
	ev.Description = text
	return ev, nil
}

// upstreamError maps go-openai errors to the shared taxonomy.
func (c *Client) upstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("OpenRouter API returned an error", "status", apiErr.HTTPStatusCode, "type", apiErr.Type, "message", apiErr.Message)
		return &models.UpstreamError{Service: serviceName, StatusCode: apiErr.HTTPStatusCode, Payload: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		c.logger.Error("OpenRouter request failed", "status", reqErr.HTTPStatusCode, "error", reqErr.Err)
		return &models.UpstreamError{Service: serviceName, StatusCode: reqErr.HTTPStatusCode, Payload: fmt.Sprint(reqErr.Err)}
	}
	return fmt.Errorf("failed to call extraction endpoint: %w", err)
}

// parseContent decodes the model output. Missing keys are rejected; extra
// keys are ignored.
func parseContent(content string) (models.ExtractedEvent, error) {
	var r response
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return models.ExtractedEvent{}, &models.ParseError{Cause: err}
	}

	var missing []string
	if strings.TrimSpace(r.Titulo) == "" {
		missing = append(missing, "titulo")
	}
	if strings.TrimSpace(r.Fecha) == "" {
		missing = append(missing, "fecha")
	}
	if strings.TrimSpace(r.Hora) == "" {
		missing = append(missing, "hora")
	}
	if len(missing) > 0 {
		return models.ExtractedEvent{}, &models.ParseError{Cause: fmt.Errorf("missing keys: %s", strings.Join(missing, ", "))}
	}

	return models.ExtractedEvent{
		Title: strings.TrimSpace(r.Titulo),
		Date:  strings.TrimSpace(r.Fecha),
		Time:  strings.TrimSpace(r.Hora),
	}, nil
}

func buildPrompt(text string, now time.Time) string {
	return fmt.Sprintf(`Analiza el siguiente texto y extrae la información para un evento de calendario.
La fecha y hora deben basarse en la fecha actual: %s.
Devuelve únicamente un objeto JSON válido con las siguientes claves:
- "titulo": Un título breve y descriptivo para el evento.
- "fecha": La fecha del evento en formato YYYY-MM-DD.
- "hora": La hora del evento en formato HH:MM (24 horas).

Texto a analizar: "%s"`, now.Format(time.RFC3339), text)
}
