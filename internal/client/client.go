package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jengzang/locator-backend-go/internal/models"
)

// FormLayout is the datetime-local layout sent for range bounds
const FormLayout = "2006-01-02T15:04"

var (
	// ErrQueryInFlight is returned while a previous historical query is still running
	ErrQueryInFlight = errors.New("consulta histórica en curso")
	// ErrMissingDates means one of the range bounds is empty
	ErrMissingDates = errors.New("por favor selecciona tanto la fecha de inicio como la fecha de fin")
	// ErrInvalidRange means the start is not before the end
	ErrInvalidRange = errors.New("la fecha de inicio debe ser anterior a la fecha de fin")
)

// APIError is an error envelope returned by the server
type APIError struct {
	StatusCode int
	Message    string
	PageName   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Latest is a decoded latest-fixes envelope. Units is keyed by unit id.
type Latest struct {
	Total    int
	PageName string
	Units    map[string][]models.Fix
}

// UnitFixes returns the per-unit fixes ordered by unit id
func (l *Latest) UnitFixes() []models.UnitFixes {
	ids := make([]string, 0, len(l.Units))
	for id := range l.Units {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.UnitFixes, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.UnitFixes{Unit: models.TrackedUnit{ID: id}, Fixes: l.Units[id]})
	}
	return out
}

// Client calls the location endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	rangeBusy  atomic.Bool
}

// New creates a client for the server at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Latest fetches the latest fixes. unit selects one unit; empty fetches all.
// A single-unit response is keyed by unit, or by "" when no selector was sent.
func (c *Client) Latest(ctx context.Context, unit string) (*Latest, error) {
	q := url.Values{}
	if unit != "" {
		q.Set("unit", unit)
	}

	var raw map[string]json.RawMessage
	if err := c.get(ctx, "/api/v1/locations/latest", q, &raw); err != nil {
		return nil, err
	}

	out := &Latest{Units: make(map[string][]models.Fix)}
	if err := decodeField(raw, "total", &out.Total); err != nil {
		return nil, err
	}
	if err := decodeField(raw, "pageName", &out.PageName); err != nil {
		return nil, err
	}

	if locs, ok := raw["locations"]; ok {
		var fixes []models.Fix
		if err := json.Unmarshal(locs, &fixes); err != nil {
			return nil, fmt.Errorf("failed to decode locations: %w", err)
		}
		out.Units[unit] = withTime(fixes)
		return out, nil
	}

	for key, v := range raw {
		id, ok := strings.CutPrefix(key, "vehicle")
		if !ok {
			continue
		}
		var fixes []models.Fix
		if err := json.Unmarshal(v, &fixes); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		out.Units[id] = withTime(fixes)
	}
	return out, nil
}

// Range fetches the fixes of unit between start and end (FormLayout).
// The bounds are checked before any request is sent, and only one range query may
// run at a time.
func (c *Client) Range(ctx context.Context, start, end, unit string) (*models.RangeResponse, error) {
	if err := CheckRange(start, end); err != nil {
		return nil, err
	}
	if !c.rangeBusy.CompareAndSwap(false, true) {
		return nil, ErrQueryInFlight
	}
	defer c.rangeBusy.Store(false)

	q := url.Values{}
	q.Set("fecha_inicio", start)
	q.Set("fecha_fin", end)
	if unit != "" {
		q.Set("vehiculo_id", unit)
	}

	var resp models.RangeResponse
	if err := c.get(ctx, "/api/v1/locations/range", q, &resp); err != nil {
		return nil, err
	}
	resp.Locations = withTime(resp.Locations)
	return &resp, nil
}

// Radius fetches the fixes within radio meters of (lat, lng); radio <= 0 uses the server default
func (c *Client) Radius(ctx context.Context, lat, lng float64, radio int, unit string) (*models.RadiusResponse, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	if radio > 0 {
		q.Set("radio", strconv.Itoa(radio))
	}
	if unit != "" {
		q.Set("vehiculo_id", unit)
	}

	var resp models.RadiusResponse
	if err := c.get(ctx, "/api/v1/locations/radius", q, &resp); err != nil {
		return nil, err
	}
	resp.Locations = withTime(resp.Locations)
	return &resp, nil
}

// CheckRange validates range bounds the way the form does before submitting
func CheckRange(start, end string) error {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return ErrMissingDates
	}
	s, err := time.Parse(FormLayout, start)
	if err != nil {
		return fmt.Errorf("fecha de inicio inválida: %w", err)
	}
	e, err := time.Parse(FormLayout, end)
	if err != nil {
		return fmt.Errorf("fecha de fin inválida: %w", err)
	}
	if !s.Before(e) {
		return ErrInvalidRange
	}
	return nil
}

// DefaultWindow is the last 24 hours ending at now, formatted for Range
func DefaultWindow(now time.Time) (start, end string) {
	return now.Add(-24 * time.Hour).Format(FormLayout), now.Format(FormLayout)
}

// get decodes the whole body before returning, so callers never see a partial response
func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	var envelope struct {
		Success  *bool  `json:"success"`
		Error    string `json:"error"`
		PageName string `json:"pageName"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if envelope.Success == nil || !*envelope.Success || resp.StatusCode != http.StatusOK {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, PageName: envelope.PageName}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeField(raw map[string]json.RawMessage, key string, out interface{}) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func withTime(fixes []models.Fix) []models.Fix {
	for i := range fixes {
		fixes[i].Time, _ = models.ParseTimestamp(fixes[i].Timestamp)
	}
	return fixes
}
