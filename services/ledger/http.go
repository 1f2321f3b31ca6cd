package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPLedger talks to a ledger gateway exposing
//
//	POST {base}/anchors        {"key": "...", "hash": "0x..."} -> 201 {"reference": "..."}
//	GET  {base}/anchors/{key}  -> 200 {"hash": "0x...", "reference": "..."}
//
// 409 means the key is already anchored, 404 that it is not, 5xx and 429 are transient.
type HTTPLedger struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPLedger(baseURL, apiKey string, client *http.Client) *HTTPLedger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLedger{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type submitRequest struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
}

// Submit implements Ledger
func (h *HTTPLedger) Submit(ctx context.Context, key Key, hash string) (string, error) {
	body, err := json.Marshal(submitRequest{Key: key.String(), Hash: hash})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/anchors", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out Receipt
	if err := h.do(req, &out); err != nil {
		return "", err
	}
	return out.Reference, nil
}

// Fetch implements Ledger
func (h *HTTPLedger) Fetch(ctx context.Context, key Key) (*Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/anchors/"+url.PathEscape(key.String()), nil)
	if err != nil {
		return nil, err
	}

	var out Receipt
	if err := h.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPLedger) do(req *http.Request, out interface{}) error {
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed ledger response: %v", ErrUnavailable, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrAlreadyAnchored
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
