package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter forwards calls to the answering backend over HTTP.
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
}

const defaultTimeout = 60 * time.Second

func NewHTTPAdapter(baseURL string, timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *HTTPAdapter) SubmitQuery(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	var res QueryResponse
	if err := a.postJSON(ctx, "/api/query", req, &res); err != nil {
		return QueryResponse{}, err
	}
	return res, nil
}

func (a *HTTPAdapter) UploadDocument(ctx context.Context, name string, content io.Reader) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finish upload form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/upload", &body)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	defer res.Body.Close()
	if err := statusError(res); err != nil {
		return err
	}

	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "upload rejected"
		}
		return fmt.Errorf("upload document: %s", out.Error)
	}
	return nil
}

func (a *HTTPAdapter) ClearHistory(ctx context.Context, deviceID string) error {
	req := map[string]string{"device_id": deviceID}
	var out struct {
		Success bool `json:"success"`
	}
	if err := a.postJSON(ctx, "/api/clear-history", req, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("clear history rejected by backend")
	}
	return nil
}

func (a *HTTPAdapter) SubmitEscalation(ctx context.Context, esc Escalation) (string, error) {
	var out struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := a.postJSON(ctx, "/api/escalation", esc, &out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("escalation rejected by backend")
	}
	return out.ID, nil
}

func (a *HTTPAdapter) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if err := statusError(res); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return fmt.Errorf("backend status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
}
