package supabase

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

// ============================================================
// HTTP helpers for service-role table access
// ============================================================

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, path, nil, c.serviceCreds(), "")
}

func (c *Client) doPost(ctx context.Context, table string, data map[string]any) ([]byte, error) {
	return c.doRequest(ctx, http.MethodPost, table, data, c.serviceCreds(), "return=representation")
}

func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) ([]byte, error) {
	return c.doRequest(ctx, http.MethodPatch, path, data, c.serviceCreds(), "return=representation")
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isEmpty(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || bytes.Equal(b, []byte("[]")) || bytes.Equal(b, []byte("null"))
}

// storeError turns adapter failures into domain errors for table access.
func storeError(service string, err error) error {
	if err == nil {
		return nil
	}
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		return err
	}
	var conflict *domain.ErrConflict
	if errors.As(err, &conflict) {
		return conflict
	}
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return notFound
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// rpcError turns adapter failures into domain errors for stored procedures.
// The backend's own message is surfaced verbatim.
func rpcError(fn string, err error) error {
	if err == nil {
		return nil
	}
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		return err
	}
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return notFound
	}
	if apiErr, ok := asAPIError(err); ok {
		if apiErr.Status == http.StatusUnauthorized || apiErr.Code == "PGRST301" {
			return &domain.ErrUnauthorized{Message: "Invalid or expired session"}
		}
		return &domain.ErrRPC{Function: fn, Message: apiErr.Error()}
	}
	return &domain.ErrRPC{Function: fn, Message: err.Error()}
}
