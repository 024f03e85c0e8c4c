package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/locator-backend-go/internal/models"
	"github.com/jengzang/locator-backend-go/internal/repository"
	"github.com/jengzang/locator-backend-go/internal/service"
)

type mockLocationService struct {
	fetchLatestFn func(ctx context.Context, unit *string) (*service.LatestResult, error)
	fetchRangeFn  func(ctx context.Context, filter models.RangeFilter) (*service.RangeResult, error)
	fetchRadiusFn func(ctx context.Context, filter models.RadiusFilter) (*service.RadiusResult, error)
}

func (m *mockLocationService) FetchLatest(ctx context.Context, unit *string) (*service.LatestResult, error) {
	return m.fetchLatestFn(ctx, unit)
}

func (m *mockLocationService) FetchRange(ctx context.Context, filter models.RangeFilter) (*service.RangeResult, error) {
	return m.fetchRangeFn(ctx, filter)
}

func (m *mockLocationService) FetchRadius(ctx context.Context, filter models.RadiusFilter) (*service.RadiusResult, error) {
	return m.fetchRadiusFn(ctx, filter)
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }

var (
	unit1 = models.TrackedUnit{ID: "1", Table: "locations2", HasRPM: true}
	unit2 = models.TrackedUnit{ID: "2", Table: "vehiculo2", HasRPM: true}
)

func setupRouter(svc locationService, store pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewLocationHandler(svc, store, "Flota", nil)
	r.GET("/latest", h.Latest)
	r.GET("/range", h.Range)
	r.GET("/radius", h.Radius)
	r.GET("/health", h.Health)
	return r
}

func serve(t *testing.T, r *gin.Engine, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %s: %v", w.Body.String(), err)
	}
	return w, body
}

func intPtr(v int) *int { return &v }

func TestLatest_MultipleUnits(t *testing.T) {
	svc := &mockLocationService{
		fetchLatestFn: func(_ context.Context, unit *string) (*service.LatestResult, error) {
			if unit != nil {
				t.Fatalf("expected no selector, got %q", *unit)
			}
			return &service.LatestResult{Units: []models.UnitFixes{
				{Unit: unit1, Fixes: []models.Fix{
					{Lat: 4.61, Lng: -74.08, RPM: intPtr(1200), Timestamp: "2024-01-01 08:00:00"},
					{Lat: 4.62, Lng: -74.07, Timestamp: "2024-01-01 08:00:05"},
				}},
				{Unit: unit2, Fixes: nil},
			}}, nil
		},
	}

	w, body := serve(t, setupRouter(svc, nil), "/latest")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["total"] != float64(2) || body["pageName"] != "Flota" {
		t.Errorf("unexpected envelope %v", body)
	}
	if _, ok := body["locations"]; ok {
		t.Error("multi-unit envelope should not carry locations")
	}
	v1, _ := body["vehicle1"].([]interface{})
	v2, ok := body["vehicle2"].([]interface{})
	if len(v1) != 2 || !ok || len(v2) != 0 {
		t.Fatalf("unexpected vehicle keys %v", body)
	}
	first := v1[0].(map[string]interface{})
	if first["rpm"] != float64(1200) {
		t.Errorf("expected rpm 1200, got %v", first["rpm"])
	}
	if _, ok := v1[1].(map[string]interface{})["rpm"]; ok {
		t.Error("NULL rpm must be omitted")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestLatest_Selector(t *testing.T) {
	svc := &mockLocationService{
		fetchLatestFn: func(_ context.Context, unit *string) (*service.LatestResult, error) {
			if unit == nil || *unit != "2" {
				t.Fatalf("expected selector 2")
			}
			return &service.LatestResult{Single: true, Units: []models.UnitFixes{
				{Unit: unit2, Fixes: []models.Fix{{Lat: 1, Lng: 2, Timestamp: "2024-01-01 08:00:00"}}},
			}}, nil
		},
	}

	_, body := serve(t, setupRouter(svc, nil), "/latest?unit=2")
	locs, ok := body["locations"].([]interface{})
	if !ok || len(locs) != 1 || body["total"] != float64(1) {
		t.Fatalf("unexpected envelope %v", body)
	}
	if _, ok := body["vehicle2"]; ok {
		t.Error("single-unit envelope should not carry vehicle keys")
	}
}

func TestLatest_InvalidUnit(t *testing.T) {
	svc := &mockLocationService{
		fetchLatestFn: func(_ context.Context, _ *string) (*service.LatestResult, error) {
			return nil, &service.Error{Kind: service.InvalidUnit, Message: "unit inválido. Valores permitidos: 1, 2"}
		},
	}

	w, body := serve(t, setupRouter(svc, nil), "/latest?unit=9")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for validation errors, got %d", w.Code)
	}
	if body["success"] != false || body["error"] != "unit inválido. Valores permitidos: 1, 2" {
		t.Errorf("unexpected envelope %v", body)
	}
}

func TestRange_Success(t *testing.T) {
	svc := &mockLocationService{
		fetchRangeFn: func(_ context.Context, filter models.RangeFilter) (*service.RangeResult, error) {
			if filter.FechaInicio == nil || *filter.FechaInicio != "2024-01-01T00:00" {
				t.Fatalf("unexpected filter %+v", filter)
			}
			if filter.VehiculoID != nil {
				t.Fatal("vehiculo_id should be absent")
			}
			return &service.RangeResult{
				Unit:     unit1,
				RawStart: "2024-01-01T00:00",
				RawEnd:   "2024-01-01T23:59",
				Window:   models.QueryWindow{Start: "2024-01-01 00:00:00", End: "2024-01-01 23:59:00"},
			}, nil
		},
	}

	w, body := serve(t, setupRouter(svc, nil), "/range?fecha_inicio=2024-01-01T00:00&fecha_fin=2024-01-01T23:59")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["consulta_desde"] != "2024-01-01 00:00:00" || body["consulta_hasta"] != "2024-01-01 23:59:00" {
		t.Errorf("unexpected normalized bounds %v", body)
	}
	if body["fecha_inicio"] != "2024-01-01T00:00" || body["pageName"] != "Flota - Histórico" {
		t.Errorf("unexpected envelope %v", body)
	}
	locs, ok := body["locations"].([]interface{})
	if !ok || len(locs) != 0 || body["total"] != float64(0) {
		t.Errorf("expected empty locations array, got %v", body["locations"])
	}
	if !strings.Contains(w.Body.String(), "Histórico") {
		t.Error("expected unescaped UTF-8")
	}
}

func TestRange_EmptyParameterIsPresent(t *testing.T) {
	svc := &mockLocationService{
		fetchRangeFn: func(_ context.Context, filter models.RangeFilter) (*service.RangeResult, error) {
			if filter.FechaInicio == nil || *filter.FechaInicio != "" {
				t.Fatalf("expected empty but present fecha_inicio, got %+v", filter.FechaInicio)
			}
			if filter.FechaFin != nil {
				t.Fatal("expected absent fecha_fin")
			}
			return nil, &service.Error{Kind: service.MissingParameter, Message: "Se requieren los parámetros fecha_inicio y fecha_fin"}
		},
	}
	w, body := serve(t, setupRouter(svc, nil), "/range?fecha_inicio=")
	if w.Code != http.StatusOK || body["success"] != false {
		t.Fatalf("unexpected response %d %v", w.Code, body)
	}
}

func TestRange_InvalidDateEchoesParameters(t *testing.T) {
	svc := &mockLocationService{
		fetchRangeFn: func(_ context.Context, _ models.RangeFilter) (*service.RangeResult, error) {
			return nil, &service.Error{
				Kind:    service.InvalidDateFormat,
				Message: "Formato de fecha inválido. Use: YYYY-MM-DDTHH:MM",
				Echo:    map[string]interface{}{"fechaInicio": "not-a-date", "fechaFin": "2024-01-01T23:59"},
			}
		},
	}

	_, body := serve(t, setupRouter(svc, nil), "/range?fecha_inicio=not-a-date&fecha_fin=2024-01-01T23:59")
	if body["fechaInicio"] != "not-a-date" || body["fechaFin"] != "2024-01-01T23:59" {
		t.Errorf("expected echoed parameters, got %v", body)
	}
	if body["pageName"] != "Flota - Histórico" {
		t.Errorf("unexpected pageName %v", body["pageName"])
	}
	if locs, ok := body["locations"].([]interface{}); !ok || len(locs) != 0 {
		t.Errorf("expected empty locations, got %v", body["locations"])
	}
}

func TestRange_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&service.Error{Kind: service.StoreConnectionFailure, Message: "Conexión fallida: refused"}, http.StatusOK},
		{&service.Error{Kind: service.QueryPreparationFailure, Message: "Error preparando consulta: x"}, http.StatusOK},
		{&service.Error{Kind: service.UnexpectedFailure, Message: "Error interno del servidor: x"}, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", repository.ErrConnection), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for i, c := range cases {
		svc := &mockLocationService{
			fetchRangeFn: func(_ context.Context, _ models.RangeFilter) (*service.RangeResult, error) {
				return nil, c.err
			},
		}
		w, body := serve(t, setupRouter(svc, nil), "/range?fecha_inicio=a&fecha_fin=b")
		if w.Code != c.status {
			t.Errorf("case %d: expected %d, got %d", i, c.status, w.Code)
		}
		if body["success"] != false {
			t.Errorf("case %d: expected failure envelope", i)
		}
	}
}

func TestRadius_Success(t *testing.T) {
	d := 0.0
	svc := &mockLocationService{
		fetchRadiusFn: func(_ context.Context, filter models.RadiusFilter) (*service.RadiusResult, error) {
			if filter.Radio != nil {
				t.Fatal("radio should be absent")
			}
			return &service.RadiusResult{
				Unit:  unit1,
				Query: models.RadiusQuery{CenterLat: 4.61, CenterLng: -74.08, RadiusMeters: 500},
				Fixes: []models.Fix{{Lat: 4.61, Lng: -74.08, Timestamp: "2024-01-01 08:00:00", Distance: &d}},
			}, nil
		},
	}

	w, body := serve(t, setupRouter(svc, nil), "/radius?lat=4.61&lng=-74.08")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["radio_metros"] != float64(500) || body["pageName"] != "Flota - Localizador" {
		t.Errorf("unexpected envelope %v", body)
	}
	center := body["punto_busqueda"].(map[string]interface{})
	if center["lat"] != 4.61 || center["lng"] != -74.08 {
		t.Errorf("unexpected center %v", center)
	}
	locs := body["locations"].([]interface{})
	if len(locs) != 1 || locs[0].(map[string]interface{})["distancia"] != float64(0) {
		t.Errorf("unexpected locations %v", locs)
	}
	if !strings.Contains(w.Body.String(), `"distancia":0`) {
		t.Errorf("expected distancia serialized, got %s", w.Body.String())
	}
}

func TestRadius_InvalidRange(t *testing.T) {
	svc := &mockLocationService{
		fetchRadiusFn: func(_ context.Context, _ models.RadiusFilter) (*service.RadiusResult, error) {
			return nil, &service.Error{
				Kind:    service.InvalidRange,
				Message: "El radio debe estar entre 1 y 10000 metros",
				Echo:    map[string]interface{}{"radio": 10001},
			}
		},
	}

	w, body := serve(t, setupRouter(svc, nil), "/radius?lat=4.61&lng=-74.08&radio=10001")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["radio"] != float64(10001) || body["error"] != "El radio debe estar entre 1 y 10000 metros" {
		t.Errorf("unexpected envelope %v", body)
	}
}

func TestHealth(t *testing.T) {
	w, body := serve(t, setupRouter(&mockLocationService{}, mockPinger{}), "/health")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("unexpected health %d %v", w.Code, body)
	}

	w, body = serve(t, setupRouter(&mockLocationService{}, mockPinger{err: errors.New("down")}), "/health")
	if w.Code != http.StatusServiceUnavailable || body["error"] != "down" {
		t.Errorf("unexpected health %d %v", w.Code, body)
	}
}

func TestUnavailableHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewUnavailableHandler(errors.New("failed to load env file .env"))
	r.GET("/latest", h.Latest)
	r.GET("/range", h.Range)
	r.GET("/radius", h.Radius)

	for _, target := range []string{"/latest", "/range?fecha_inicio=a&fecha_fin=b", "/radius?lat=1&lng=2"} {
		w, body := serve(t, r, target)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", target, w.Code)
		}
		if body["success"] != false || body["pageName"] != "Error" {
			t.Errorf("%s: unexpected envelope %v", target, body)
		}
		if !strings.HasPrefix(body["error"].(string), "Error cargando configuración") {
			t.Errorf("%s: unexpected message %v", target, body["error"])
		}
	}
}
