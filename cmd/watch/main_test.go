package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jengzang/locator-backend-go/internal/client"
	"github.com/jengzang/locator-backend-go/internal/observability"
	"github.com/jengzang/locator-backend-go/internal/reconciler"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("radio") != "250" {
			t.Errorf("expected radio=250, got %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"success":true,"total":1,"punto_busqueda":{"lat":4.61,"lng":-74.08},"radio_metros":250,
			"pageName":"Localizador - Localizador","locations":[{"lat":4.61,"lng":-74.08,"rpm":900,"timestamp":"2024-01-01 08:00:00","distancia":0}]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "near", "--server", srv.URL, "--lat", "4.61", "--lng", "-74.08", "--radio", "250")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "1 ubicaciones a menos de 250 m") || !strings.Contains(out, "RPM: 900") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestNear_RequiresCoordinates(t *testing.T) {
	if _, err := execute(t, "near", "--lat", "4.61"); err == nil {
		t.Fatal("expected missing --lng to fail")
	}
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"total":2,"fecha_inicio":"2024-01-01T00:00","fecha_fin":"2024-01-01T23:59",
			"consulta_desde":"2024-01-01 00:00:00","consulta_hasta":"2024-01-01 23:59:00","pageName":"Localizador - Histórico",
			"locations":[{"lat":4.61,"lng":-74.08,"timestamp":"2024-01-01 08:00:00"},{"lat":4.63,"lng":-74.06,"timestamp":"2024-01-01 23:59:00"}]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "history", "--server", srv.URL, "--from", "2024-01-01T00:00", "--to", "2024-01-01T23:59")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Recorrido histórico: 2 puntos | Inicio: 2024-01-01 08:00:00 | Fin: 2024-01-01 23:59:00") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Distancia: 3.14 km") {
		t.Errorf("expected route length, got:\n%s", out)
	}
	if !strings.Contains(out, "padding 20") {
		t.Errorf("expected historical fit padding, got:\n%s", out)
	}
}

func TestHistory_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"total":0,"fecha_inicio":"","fecha_fin":"","consulta_desde":"","consulta_hasta":"","pageName":"x","locations":[]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "history", "--server", srv.URL, "--from", "2024-01-01T00:00", "--to", "2024-01-01T23:59")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No se encontraron datos") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestHistory_InvertedWindowRejected(t *testing.T) {
	_, err := execute(t, "history", "--server", "http://127.0.0.1:1", "--from", "2024-01-02T00:00", "--to", "2024-01-01T00:00")
	if !errors.Is(err, client.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestLiveWatcher_Poll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"total":2,"pageName":"Localizador",
			"vehicle1":[{"lat":4.61,"lng":-74.08,"rpm":1200,"timestamp":"2024-01-01 08:00:00"}],
			"vehicle2":[{"lat":6.25,"lng":-75.56,"timestamp":"2024-01-01 09:00:00"}]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	var logs bytes.Buffer
	w := &liveWatcher{
		api:      client.New(srv.URL, 5*time.Second),
		rec:      reconciler.New(),
		sessions: reconciler.NewMemoryStore(),
		logger:   observability.NewLoggerTo(&logs, "info"),
		out:      &out,
	}
	w.rec.SetMode(reconciler.FollowUnit("2"))

	w.poll(context.Background())
	w.poll(context.Background())

	text := out.String()
	if strings.Count(text, "== Localizador ==") != 1 {
		t.Errorf("page name should be printed once:\n%s", text)
	}
	if !strings.Contains(text, "[Vehículo 1] 2024-01-01 08:00:00") || !strings.Contains(text, "RPM: N/A") {
		t.Errorf("unexpected unit lines:\n%s", text)
	}
	if !strings.Contains(text, "(+0)") {
		t.Errorf("second poll should append nothing:\n%s", text)
	}
	if !strings.Contains(text, "Vista (2): centro 6.250000, -75.560000") {
		t.Errorf("expected viewport to follow unit 2:\n%s", text)
	}

	if _, ok, _ := w.sessions.Load(context.Background()); !ok {
		t.Error("expected sessions to be saved after polling")
	}
}

func TestLiveWatcher_FailedPollKeepsState(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"error":"Error interno del servidor","pageName":"Localizador","locations":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"total":1,"pageName":"Localizador",
			"vehicle1":[{"lat":4.61,"lng":-74.08,"timestamp":"2024-01-01 08:00:00"}]}`))
	}))
	defer srv.Close()

	var out, logs bytes.Buffer
	w := &liveWatcher{
		api:    client.New(srv.URL, 5*time.Second),
		rec:    reconciler.New(),
		logger: observability.NewLoggerTo(&logs, "info"),
		out:    &out,
	}

	w.poll(context.Background())
	fail.Store(true)
	w.poll(context.Background())

	st, ok := w.rec.Session("1")
	if !ok || len(st.Route) != 1 {
		t.Errorf("failed poll should not change the route: %+v", st)
	}
	if !strings.Contains(out.String(), "No se pudieron cargar los datos") {
		t.Errorf("expected error line:\n%s", out.String())
	}
}
