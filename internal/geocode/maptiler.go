package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/bikerides/internal/models"
)

const (
	DefaultEndpoint = "https://api.maptiler.com"
	DefaultLanguage = "it"
	DefaultLimit    = 5
)

// Geocoder turns free text into ranked candidate places.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.Place, error)
}

// MapTilerClient performs forward geocoding against the MapTiler API.
type MapTilerClient struct {
	Endpoint string
	Key      string
	Language string
	Limit    int
	Client   *http.Client
}

func NewMapTilerClient(endpoint, key string) *MapTilerClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &MapTilerClient{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Key:      key,
		Language: DefaultLanguage,
		Limit:    DefaultLimit,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Search queries /geocoding/{query}.json. A blank query returns no
// places without a request.
func (m *MapTilerClient) Search(ctx context.Context, query string) ([]models.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Place{}, nil
	}
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	params := url.Values{}
	params.Set("key", m.Key)
	params.Set("limit", strconv.Itoa(limit))
	if m.Language != "" {
		params.Set("language", m.Language)
	}
	u := fmt.Sprintf("%s/geocoding/%s.json?%s", m.Endpoint, url.PathEscape(query), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("maptiler geocoding: status %d", resp.StatusCode)
	}
	var out struct {
		Features []struct {
			PlaceName string    `json:"place_name"`
			Text      string    `json:"text"`
			Center    []float64 `json:"center"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode maptiler response: %w", err)
	}
	places := make([]models.Place, 0, len(out.Features))
	for _, f := range out.Features {
		if len(f.Center) < 2 {
			continue
		}
		label := f.PlaceName
		if label == "" {
			label = f.Text
		}
		places = append(places, models.Place{Label: label, Lat: f.Center[1], Lng: f.Center[0]})
		if len(places) == limit {
			break
		}
	}
	return places, nil
}
