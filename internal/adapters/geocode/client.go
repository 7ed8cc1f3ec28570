package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"eventauthoring/internal/domain"
)

// wireResult is the provider's forward-search entry. Coordinates arrive as
// strings (Nominatim shape) and are parsed; unparsable entries are skipped.
type wireResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

type httpGeocoder struct {
	client  *http.Client
	baseURL string
}

// NewHTTPGeocoder returns a Geocoder that calls a Nominatim-compatible API.
func NewHTTPGeocoder(client *http.Client, baseURL string) domain.Geocoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpGeocoder{client: client, baseURL: baseURL}
}

func (g *httpGeocoder) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json", g.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch geocode results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode}
	}

	var raw []wireResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			continue
		}
		results = append(results, domain.SearchResult{
			DisplayName: r.DisplayName,
			Latitude:    lat,
			Longitude:   lon,
		})
	}
	return results, nil
}

func (g *httpGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	u := fmt.Sprintf("%s/reverse?lat=%s&lon=%s&format=json",
		g.baseURL,
		url.QueryEscape(strconv.FormatFloat(lat, 'f', -1, 64)),
		url.QueryEscape(strconv.FormatFloat(lon, 'f', -1, 64)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &domain.TransportError{StatusCode: resp.StatusCode}
	}

	// An absent display_name is not an error; the caller substitutes a
	// placeholder label.
	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode reverse geocode response: %w", err)
	}
	return body.DisplayName, nil
}
