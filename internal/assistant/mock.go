package assistant

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// MockAdapter provides deterministic local replies when no backend is
// configured, so the service runs end to end in dev and tests.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) SubmitQuery(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	select {
	case <-ctx.Done():
		return QueryResponse{}, ctx.Err()
	default:
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return QueryResponse{Text: "Could you rephrase that?"}, nil
	}
	return QueryResponse{
		Text: fmt.Sprintf("Here is what I found about: %s", text),
		Sources: []Source{
			{Title: "Employee Handbook", Excerpt: "See the relevant section of the handbook."},
		},
	}, nil
}

func (a *MockAdapter) UploadDocument(ctx context.Context, name string, content io.Reader) error {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return fmt.Errorf("read upload content: %w", err)
	}
	return nil
}

func (a *MockAdapter) ClearHistory(context.Context, string) error { return nil }

func (a *MockAdapter) SubmitEscalation(_ context.Context, esc Escalation) (string, error) {
	if strings.TrimSpace(esc.Subject) == "" {
		return "", fmt.Errorf("escalation subject is required")
	}
	return "esc-" + uuid.NewString()[:8], nil
}
