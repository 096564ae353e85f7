package models

// Session is the authenticated credential pair for the current user.
type Session struct {
	AccessToken string
	Email       string
}

// Valid reports whether both halves of the session are present.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.Email != ""
}

// MessageKind classifies the message shown to the user.
type MessageKind string

const (
	MessageNone    MessageKind = ""
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Message is the single user-facing status line. The latest one wins.
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}
