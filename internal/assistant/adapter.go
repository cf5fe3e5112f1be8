// Package assistant holds the network collaborators the conversation
// core depends on. Every call is asynchronous and fallible; failures
// surface to the user as a visible error and never corrupt session
// state.
package assistant

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// QueryRequest is the normalized question sent to the backend.
type QueryRequest struct {
	Text     string `json:"query"`
	DeviceID string `json:"device_id"`
}

// Source describes a document passage the answer was grounded on.
type Source struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt,omitempty"`
}

// QueryResponse is the backend's answer.
type QueryResponse struct {
	Text    string   `json:"response"`
	Sources []Source `json:"sources,omitempty"`
}

// Escalation is a request to hand the conversation to a human.
type Escalation struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Email   string `json:"email"`
}

// Adapter bridges the conversation core with the answering backend.
type Adapter interface {
	SubmitQuery(ctx context.Context, req QueryRequest) (QueryResponse, error)
	UploadDocument(ctx context.Context, name string, content io.Reader) error
	ClearHistory(ctx context.Context, deviceID string) error
	SubmitEscalation(ctx context.Context, esc Escalation) (string, error)
}

// New picks an adapter: explicit modes win, "auto" uses HTTP when a URL
// is configured and the deterministic mock otherwise. The timeout bounds
// every backend call; zero keeps the default.
func New(mode, httpURL string, timeout time.Duration) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "mock":
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(httpURL) == "" {
			return nil, fmt.Errorf("assistant HTTP URL is required for http mode")
		}
		return NewHTTPAdapter(httpURL, timeout), nil
	case "", "auto":
		if strings.TrimSpace(httpURL) != "" {
			return NewHTTPAdapter(httpURL, timeout), nil
		}
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown assistant mode %q", mode)
	}
}
