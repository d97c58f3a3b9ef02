package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"clientmap/internal"
	"clientmap/internal/config"
)

// Client resolves city names through a Nominatim-compatible search API.
// Every failure mode is reported as a miss; callers never see an error.
type Client struct {
	baseURL    string
	userAgent  string
	country    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.GeocoderTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rps := cfg.GeocoderRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.GeocoderBaseURL, "/"),
		userAgent:  cfg.GeocoderUserAgent,
		country:    strings.TrimSpace(cfg.GeocoderCountry),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.With("component", "geocode"),
	}
}

func (c *Client) Resolve(ctx context.Context, city string) (internal.Coordinate, bool) {
	city = strings.TrimSpace(city)
	if city == "" {
		return internal.Coordinate{}, false
	}

	coord, err := c.search(ctx, c.query(city))
	if err != nil {
		c.logger.Warn("geocoding failed", "city", city, "error", err)
		return internal.Coordinate{}, false
	}
	if coord == nil {
		c.logger.Debug("geocoding returned no match", "city", city)
		return internal.Coordinate{}, false
	}
	return *coord, true
}

func (c *Client) Locate(ctx context.Context, q internal.CityQuery) (internal.Coordinate, bool) {
	return c.Resolve(ctx, q.Display)
}

func (c *Client) query(city string) string {
	if c.country == "" {
		return city
	}
	return city + ", " + c.country
}

func (c *Client) search(ctx context.Context, q string) (*internal.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, err
	}
	params := u.Query()
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocoder status=%d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lat), 64)
	if err != nil {
		return nil, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lon), 64)
	if err != nil {
		return nil, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err)
	}
	if !validCoordinate(lat, lon) {
		return nil, fmt.Errorf("coordinate out of range lat=%q lon=%q", results[0].Lat, results[0].Lon)
	}
	return &internal.Coordinate{Latitude: lat, Longitude: lon}, nil
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
