package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

// VoxCPMPinger checks that the inference backend answers HTTP at all.
type VoxCPMPinger struct {
	httpClient *http.Client
	baseURL    string
}

// NewVoxCPMPinger creates a pinger for baseURL.
func NewVoxCPMPinger(httpClient *http.Client, baseURL string) *VoxCPMPinger {
	return &VoxCPMPinger{httpClient: httpClient, baseURL: baseURL}
}

// Ping issues GET <base>/ and treats any non-5xx answer as reachable.
// Some Gradio apps reject HEAD.
func (p *VoxCPMPinger) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "VoxCPM.Ping")
	defer span.End()

	if p.baseURL == "" {
		return &domain.ErrMissingConfig{Key: "VOXCPM_BASE_URL"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("voxcpm returned status %d", resp.StatusCode)
	}
	return nil
}
