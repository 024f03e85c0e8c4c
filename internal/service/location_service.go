package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jengzang/locator-backend-go/internal/models"
	"github.com/jengzang/locator-backend-go/internal/repository"
	"github.com/jengzang/locator-backend-go/internal/spatial"
)

const (
	DefaultRadiusMeters = 500
	MinRadiusMeters     = 1
	MaxRadiusMeters     = 10000
)

// decimalNumber matches plain decimal notation: no hex, no inf/nan, no digit separators
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Date-time layouts tried first for range bounds. The browser's datetime-local input
// sends the first one; anything else goes through dateparse.
var dateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

type fixRepository interface {
	ListFixes(ctx context.Context, unit models.TrackedUnit) ([]models.Fix, error)
	ListFixesInRange(ctx context.Context, unit models.TrackedUnit, window models.QueryWindow) ([]models.Fix, error)
}

// LatestResult holds the ordered fixes per requested unit.
// Single is set when a selector was given or only one unit is configured.
type LatestResult struct {
	Single bool
	Units  []models.UnitFixes
}

// Total counts the fixes across all units
func (r *LatestResult) Total() int {
	n := 0
	for _, u := range r.Units {
		n += len(u.Fixes)
	}
	return n
}

// RangeResult holds the fixes of a range query and its raw and normalized bounds
type RangeResult struct {
	Unit     models.TrackedUnit
	RawStart string
	RawEnd   string
	Window   models.QueryWindow
	Fixes    []models.Fix
}

// RadiusResult holds the fixes of a radius query, each carrying its distance
type RadiusResult struct {
	Unit  models.TrackedUnit
	Query models.RadiusQuery
	Fixes []models.Fix
}

// LocationService validates requests and turns store rows into client-ready fixes
type LocationService struct {
	repo   fixRepository
	units  []models.TrackedUnit
	logger *slog.Logger
}

// NewLocationService creates a new location service; units must not be empty
func NewLocationService(repo fixRepository, units []models.TrackedUnit, logger *slog.Logger) *LocationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationService{
		repo:   repo,
		units:  units,
		logger: logger.With("component", "query"),
	}
}

// Units returns the configured tracked units
func (s *LocationService) Units() []models.TrackedUnit {
	return s.units
}

// FetchLatest reads every fix of the selected unit, or of all units when unit is nil
func (s *LocationService) FetchLatest(ctx context.Context, unit *string) (*LatestResult, error) {
	targets := s.units
	single := len(s.units) == 1
	if unit != nil {
		u, err := s.resolveUnit(*unit, "unit")
		if err != nil {
			return nil, err
		}
		targets = []models.TrackedUnit{u}
		single = true
	}

	result := &LatestResult{Single: single}
	for _, u := range targets {
		fixes, err := s.repo.ListFixes(ctx, u)
		if err != nil {
			return nil, classifyStoreError(err)
		}
		result.Units = append(result.Units, models.UnitFixes{Unit: u, Fixes: fixes})
	}

	s.logger.Debug("latest fetched", "units", len(targets), "total", result.Total())
	return result, nil
}

// FetchRange reads the fixes of a unit whose timestamp lies within [fecha_inicio, fecha_fin].
// start >= end is not rejected here; an inverted window simply matches nothing.
func (s *LocationService) FetchRange(ctx context.Context, filter models.RangeFilter) (*RangeResult, error) {
	if blank(filter.FechaInicio) || blank(filter.FechaFin) {
		return nil, newError(MissingParameter, "Se requieren los parámetros fecha_inicio y fecha_fin", nil)
	}
	rawStart, rawEnd := *filter.FechaInicio, *filter.FechaFin

	unit := s.units[0]
	if filter.VehiculoID != nil {
		u, err := s.resolveUnit(*filter.VehiculoID, "vehiculo_id")
		if err != nil {
			return nil, err
		}
		unit = u
	}

	start, okStart := ParseDateTime(rawStart)
	end, okEnd := ParseDateTime(rawEnd)
	if !okStart || !okEnd {
		return nil, newError(InvalidDateFormat, "Formato de fecha inválido. Use: YYYY-MM-DDTHH:MM", map[string]interface{}{
			"fechaInicio": rawStart,
			"fechaFin":    rawEnd,
		})
	}

	window := models.QueryWindow{
		Start: start.Format(models.TimestampLayout),
		End:   end.Format(models.TimestampLayout),
	}

	fixes, err := s.repo.ListFixesInRange(ctx, unit, window)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	s.logger.Debug("range fetched", "unit", unit.ID, "from", window.Start, "to", window.End, "total", len(fixes))
	return &RangeResult{
		Unit:     unit,
		RawStart: rawStart,
		RawEnd:   rawEnd,
		Window:   window,
		Fixes:    fixes,
	}, nil
}

// FetchRadius reads the fixes of a unit lying within radio meters of (lat, lng).
// Results keep insertion order; distance is a selection predicate, not a ranking.
func (s *LocationService) FetchRadius(ctx context.Context, filter models.RadiusFilter) (*RadiusResult, error) {
	if filter.Lat == nil || filter.Lng == nil {
		return nil, newError(MissingParameter, "Se requieren los parámetros lat y lng", nil)
	}

	rawRadio := strconv.Itoa(DefaultRadiusMeters)
	if filter.Radio != nil {
		rawRadio = *filter.Radio
	}

	lat, okLat := parseNumber(*filter.Lat)
	lng, okLng := parseNumber(*filter.Lng)
	radio, okRadio := parseNumber(rawRadio)
	if !okLat || !okLng || !okRadio {
		return nil, newError(InvalidParameter, "Los parámetros lat, lng y radio deben ser numéricos", map[string]interface{}{
			"lat":   *filter.Lat,
			"lng":   *filter.Lng,
			"radio": rawRadio,
		})
	}

	// Fractional radii are truncated to whole meters before the range check
	radio = math.Trunc(radio)
	if radio < MinRadiusMeters || radio > MaxRadiusMeters {
		echo := map[string]interface{}{"radio": rawRadio}
		if math.Abs(radio) <= math.MaxInt32 {
			echo["radio"] = int(radio)
		}
		return nil, newError(InvalidRange, fmt.Sprintf("El radio debe estar entre %d y %d metros", MinRadiusMeters, MaxRadiusMeters), echo)
	}

	unit := s.units[0]
	if filter.VehiculoID != nil {
		u, err := s.resolveUnit(*filter.VehiculoID, "vehiculo_id")
		if err != nil {
			return nil, err
		}
		unit = u
	}

	query := models.RadiusQuery{CenterLat: lat, CenterLng: lng, RadiusMeters: int(radio)}

	fixes, err := s.repo.ListFixes(ctx, unit)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	matched := WithinRadius(fixes, query)

	s.logger.Debug("radius fetched", "unit", unit.ID, "lat", lat, "lng", lng, "radio", query.RadiusMeters,
		"scanned", len(fixes), "total", len(matched))
	return &RadiusResult{Unit: unit, Query: query, Fixes: matched}, nil
}

// WithinRadius keeps the fixes at most q.RadiusMeters from the query center, in input
// order, annotating each with its distance rounded to 2 decimals
func WithinRadius(fixes []models.Fix, q models.RadiusQuery) []models.Fix {
	matched := []models.Fix{}
	for _, f := range fixes {
		d := spatial.GreatCircleDistance(q.CenterLat, q.CenterLng, f.Lat, f.Lng)
		if d > float64(q.RadiusMeters) {
			continue
		}
		rounded := spatial.Round(d, 2)
		f.Distance = &rounded
		matched = append(matched, f)
	}
	return matched
}

// ParseDateTime parses a calendar date-time in any accepted layout.
// Zone offsets are dropped; the wall clock is compared against the store as-is.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return wallClock(t), true
		}
	}
	// slash dates are month first, as strtotime reads them
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return wallClock(t), true
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func (s *LocationService) resolveUnit(id, param string) (models.TrackedUnit, error) {
	id = strings.TrimSpace(id)
	for _, u := range s.units {
		if u.ID == id {
			return u, nil
		}
	}

	ids := make([]string, 0, len(s.units))
	for _, u := range s.units {
		ids = append(ids, u.ID)
	}
	return models.TrackedUnit{}, newError(InvalidUnit,
		fmt.Sprintf("%s inválido. Valores permitidos: %s", param, strings.Join(ids, ", ")),
		map[string]interface{}{param: id})
}

func classifyStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrConnection):
		return &Error{Kind: StoreConnectionFailure, Message: "Conexión fallida: " + err.Error(), Err: err}
	case errors.Is(err, repository.ErrPrepare):
		return &Error{Kind: QueryPreparationFailure, Message: "Error preparando consulta: " + err.Error(), Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: UnexpectedFailure, Message: "Error interno del servidor: consulta cancelada", Err: err}
	default:
		return &Error{Kind: UnexpectedFailure, Message: "Error interno del servidor: " + err.Error(), Err: err}
	}
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// parseNumber accepts finite decimal numbers only
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !decimalNumber.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
