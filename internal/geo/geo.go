// Package geo resolves an approximate device location for maps tool
// routing. Location is a best-effort bias, never a requirement: every
// failure path degrades to "no location" and the turn proceeds without it.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/log"
)

// maxResponseBytes bounds the geolocation response body read.
const maxResponseBytes = 1 << 16

// Resolver looks up the device's approximate coordinates via an
// IP-geolocation endpoint (ip-api.com/json by default).
type Resolver struct {
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// NewResolver creates a Resolver. timeout bounds each lookup at the HTTP
// client level in addition to any caller-supplied context deadline.
func NewResolver(endpoint string, timeout time.Duration, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Resolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// ipAPIResponse is the subset of the ip-api.com JSON payload we read.
type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate returns the device's approximate coordinates.
func (r *Resolver) Locate(ctx context.Context) (*genai.LatLng, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building geolocation request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.Debug("closing geolocation response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading geolocation response: %w", err)
	}

	var parsed ipAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing geolocation response: %w", err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("geolocation lookup failed: %s", parsed.Message)
	}

	return &genai.LatLng{Latitude: &parsed.Lat, Longitude: &parsed.Lon}, nil
}
