// Package fleet loads the vehicle list and follows vehicle presence.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
)

// Client reads the vehicle list from the REST backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for apiBaseURL, e.g. http://localhost:8000/api/v1.
// A nil httpClient uses http.DefaultClient.
func NewClient(apiBaseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(apiBaseURL, "/"), http: httpClient}
}

type vehicleRecord struct {
	ID        string `json:"id"`
	VehicleID string `json:"vehicle_id"`
	Name      string `json:"name"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Status    string `json:"status"`
}

type listResponse struct {
	Vehicles []vehicleRecord `json:"vehicles"`
}

// ListVehicles fetches GET /vehicles. Records without an id are skipped.
func (c *Client) ListVehicles(ctx context.Context, token string) ([]core.Vehicle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/vehicles", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %s", core.ErrFetch, resp.Status)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}

	vehicles := make([]core.Vehicle, 0, len(body.Vehicles))
	for _, r := range body.Vehicles {
		if v, ok := r.toVehicle(); ok {
			vehicles = append(vehicles, v)
		}
	}
	return vehicles, nil
}

func (r vehicleRecord) toVehicle() (core.Vehicle, bool) {
	id := r.ID
	if id == "" {
		id = r.VehicleID
	}
	if id == "" {
		return core.Vehicle{}, false
	}

	model := r.Model
	switch {
	case model == "" && r.Name != "":
		model = r.Name
	case r.Make != "" && model != "":
		model = r.Make + " " + model
	}

	return core.Vehicle{ID: id, Model: model, Status: ParseStatus(r.Status)}, true
}

// ParseStatus maps backend status strings to a VehicleStatus. Anything
// other than connected or online is offline.
func ParseStatus(s string) core.VehicleStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "connected", "online":
		return core.VehicleOnline
	default:
		return core.VehicleOffline
	}
}
