// Package remote talks to the research journal server: the document
// endpoint, login and the document event stream.
//
// The client carries no business logic. Reconciliation, retries and status
// tracking belong to the coordinator.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/researchjournal/rj/internal/schema"
)

// Remote is the document endpoint as seen by the coordinator.
type Remote interface {
	// FetchRemote returns the stored document. It returns (nil, nil) when
	// the server has no document yet or the client is local-only, and an
	// error for network failures and unexpected responses.
	FetchRemote(ctx context.Context) (*schema.Document, error)

	// PushRemote stores doc on the server. It is a no-op in local-only mode.
	PushRemote(ctx context.Context, doc *schema.Document) error

	// LocalOnly reports whether no server is configured.
	LocalOnly() bool
}

// Endpoint paths relative to the server base URL.
const (
	DataPath    = "/api/data"
	LoginPath   = "/api/login"
	LogoutPath  = "/api/logout"
	EventsPath  = "/api/events"
	SessionName = "rj-session"
)

var (
	// ErrUnauthorized is returned when the session is missing or expired.
	ErrUnauthorized = errors.New("not logged in")

	// ErrWrongPassword is returned by Login for a rejected password.
	ErrWrongPassword = errors.New("wrong password")

	// ErrNoSession is returned by Login when the server set no session cookie.
	ErrNoSession = errors.New("server did not return a session")
)

// StatusError is an unexpected HTTP status from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Code)
}

// Event types on the event stream.
const (
	EventWelcome  = "welcome"
	EventDocument = "document"
)

// Event is a message on the document event stream.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}
