package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenFunc returns the bearer token for the current user, empty when signed out.
type TokenFunc func(ctx context.Context) string

// HTTPRows talks to the progress service:
//
//	GET /v1/journeys/{journey_id}/progress
//	PUT /v1/journeys/{journey_id}/progress
//
// The service derives user_id from the token, so Row.UserID is advisory.
type HTTPRows struct {
	baseURL string
	token   TokenFunc
	client  *http.Client
}

func NewHTTPRows(baseURL string, token TokenFunc, client *http.Client) *HTTPRows {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRows{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

func (h *HTTPRows) endpoint(journeyID string) string {
	return h.baseURL + "/v1/journeys/" + url.PathEscape(journeyID) + "/progress"
}

func (h *HTTPRows) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	tok := ""
	if h.token != nil {
		tok = h.token(ctx)
	}
	if tok == "" {
		return nil, ErrUnauthenticated
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.client.Do(req)
}

func (h *HTTPRows) Select(ctx context.Context, _ string, journeyID string) (Row, error) {
	resp, err := h.do(ctx, http.MethodGet, h.endpoint(journeyID), nil)
	if err != nil {
		return Row{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Row{}, ErrNotFound
	case http.StatusUnauthorized:
		return Row{}, ErrUnauthenticated
	default:
		return Row{}, fmt.Errorf("select progress: unexpected status %d", resp.StatusCode)
	}
	var row Row
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&row); err != nil {
		return Row{}, fmt.Errorf("decode progress: %w", err)
	}
	return row, nil
}

func (h *HTTPRows) Upsert(ctx context.Context, row Row) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	resp, err := h.do(ctx, http.MethodPut, h.endpoint(row.JourneyID), bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	default:
		return fmt.Errorf("upsert progress: unexpected status %d", resp.StatusCode)
	}
}
