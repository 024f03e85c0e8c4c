package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jengzang/locator-backend-go/internal/models"
	"github.com/jengzang/locator-backend-go/internal/observability"
	"github.com/jengzang/locator-backend-go/internal/spatial"
)

const (
	DefaultZoom = 12
	// Fit-bounds padding in pixels
	LivePadding    = 50
	HistoryPadding = 20
)

// DefaultCenter is shown until the first fix arrives (Bogotá)
var DefaultCenter = models.LatLng{Lat: 4.61, Lng: -74.08}

// ErrNoData means a historical query returned no drawable points
var ErrNoData = errors.New("no se encontraron datos para el período seleccionado")

// Mode selects how the viewport tracks the units
type Mode struct {
	Follow string `json:"follow,omitempty"` // unit id; empty fits all markers
}

// FollowUnit centers the viewport on one unit's marker, keeping the zoom
func FollowUnit(id string) Mode { return Mode{Follow: id} }

// FitAll fits the viewport to every current marker
var FitAll = Mode{}

// ParseMode accepts a unit id or "all"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "":
		return Mode{}, fmt.Errorf("empty follow mode")
	case "all", "0":
		return FitAll, nil
	default:
		return FollowUnit(s), nil
	}
}

func (m Mode) String() string {
	if m.Follow == "" {
		return "all"
	}
	return m.Follow
}

// Viewport is the map camera derived from the current state
type Viewport struct {
	Center  models.LatLng
	Zoom    int
	Bounds  *spatial.Bounds // set when fitting bounds
	Padding int
}

// History is the result of a one-shot historical replace
type History struct {
	Unit   string
	Route  []models.LatLng
	Start  models.Fix
	End    models.Fix
	Bounds spatial.Bounds
	Length float64 // route length in meters
}

// Points returns the number of drawn points
func (h *History) Points() int {
	return len(h.Route)
}

// Reconciler merges repeated poll responses into per-unit routes and keeps the
// viewport in line with the selected mode. Safe for concurrent use.
type Reconciler struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	mode     Mode
	view     Viewport
	history  *History
}

// New creates a reconciler following the first of units, or fitting all when units is empty
func New(units ...string) *Reconciler {
	r := &Reconciler{
		sessions: make(map[string]*Session),
		view:     Viewport{Center: DefaultCenter, Zoom: DefaultZoom},
	}
	if len(units) > 0 {
		r.mode = FollowUnit(units[0])
	}
	for _, u := range units {
		r.session(u)
	}
	return r
}

func (r *Reconciler) session(unit string) *Session {
	s, ok := r.sessions[unit]
	if !ok {
		s = newSession(unit)
		r.sessions[unit] = s
		r.order = append(r.order, unit)
	}
	return s
}

// IngestLive applies one latest-fixes poll response and returns the number of points
// appended per unit. Leaves any historical view.
func (r *Reconciler) IngestLive(batch []models.UnitFixes) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = nil
	appended := make(map[string]int, len(batch))
	for _, uf := range batch {
		s := r.session(uf.Unit.ID)
		n := 0
		for _, f := range uf.Fixes {
			if s.ingest(f) {
				n++
			}
		}
		appended[uf.Unit.ID] = n
		if n > 0 {
			observability.ReconcilerAppended.WithLabelValues(uf.Unit.ID).Add(float64(n))
		}
	}

	r.refreshView()
	return appended
}

// SetMode switches the viewport mode and recenters immediately
func (r *Reconciler) SetMode(m Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = m
	r.refreshView()
}

// Mode returns the current viewport mode
func (r *Reconciler) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetZoom records a user zoom change; follow modes keep it
func (r *Reconciler) SetZoom(zoom int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Zoom = zoom
}

// Viewport returns the current camera
func (r *Reconciler) Viewport() Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.view
	if v.Bounds != nil {
		b := *v.Bounds
		v.Bounds = &b
	}
	return v
}

// refreshView must be called with mu held
func (r *Reconciler) refreshView() {
	if r.history != nil {
		b := r.history.Bounds
		r.view.Bounds = &b
		r.view.Center = toLatLng(b.Center())
		r.view.Padding = HistoryPadding
		return
	}

	if r.mode.Follow != "" {
		s, ok := r.sessions[r.mode.Follow]
		if ok && s.Marker != nil {
			r.view.Center = s.Marker.Position()
			r.view.Bounds = nil
			r.view.Padding = 0
		}
		return
	}

	var points []spatial.Point
	for _, id := range r.order {
		if m := r.sessions[id].Marker; m != nil {
			points = append(points, spatial.Point{Lat: m.Lat, Lon: m.Lng})
		}
	}
	b, ok := spatial.BoundingBox(points)
	if !ok {
		return
	}
	r.view.Bounds = &b
	r.view.Center = toLatLng(b.Center())
	r.view.Padding = LivePadding
}

// ReplaceHistory clears every route and marker and draws fixes as one route with
// start and end markers. Points with non-finite coordinates are dropped; when none
// remain the previous state is kept and ErrNoData is returned.
func (r *Reconciler) ReplaceHistory(unit string, fixes []models.Fix) (*History, error) {
	var valid []models.Fix
	for _, f := range fixes {
		if validPosition(f) {
			valid = append(valid, f)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoData
	}

	h := &History{
		Unit:  unit,
		Route: make([]models.LatLng, 0, len(valid)),
		Start: valid[0],
		End:   valid[len(valid)-1],
	}
	points := make([]spatial.Point, 0, len(valid))
	for _, f := range valid {
		h.Route = append(h.Route, f.Position())
		points = append(points, spatial.Point{Lat: f.Lat, Lon: f.Lng})
	}
	h.Bounds, _ = spatial.BoundingBox(points)
	h.Length = spatial.PathLength(points)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
	r.history = h
	r.refreshView()

	out := *h
	out.Route = append([]models.LatLng(nil), h.Route...)
	return &out, nil
}

// History returns the current historical view, nil in live mode
func (r *Reconciler) History() *History {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.history == nil {
		return nil
	}
	h := *r.history
	h.Route = append([]models.LatLng(nil), r.history.Route...)
	return &h
}

// Clear removes every route and marker; the viewport stays where it is
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *Reconciler) clearLocked() {
	r.sessions = make(map[string]*Session)
	r.order = nil
	r.history = nil
}

// Session returns a copy of one unit's state
func (r *Reconciler) Session(unit string) (SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[unit]
	if !ok {
		return SessionState{}, false
	}
	return s.state(), true
}

// Sessions returns a copy of every unit's state in first-seen order
func (r *Reconciler) Sessions() []SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].state())
	}
	return out
}

// Snapshot captures the live sessions
func (r *Reconciler) Snapshot() Snapshot {
	snap := Snapshot{Sessions: r.Sessions(), SavedAt: time.Now().UTC()}
	r.mu.Lock()
	snap.Mode = r.mode
	snap.Zoom = r.view.Zoom
	r.mu.Unlock()
	return snap
}

// Restore replaces the live sessions with a snapshot
func (r *Reconciler) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearLocked()
	for _, st := range snap.Sessions {
		r.sessions[st.Unit] = sessionFromState(st)
		r.order = append(r.order, st.Unit)
	}
	r.mode = snap.Mode
	if snap.Zoom > 0 {
		r.view.Zoom = snap.Zoom
	}
	r.refreshView()
}

// Save writes a snapshot to store
func (r *Reconciler) Save(ctx context.Context, store SessionStore) error {
	if err := store.Save(ctx, r.Snapshot()); err != nil {
		return fmt.Errorf("failed to save sessions: %w", err)
	}
	return nil
}

// Load restores the last snapshot from store; ok is false when none exists
func (r *Reconciler) Load(ctx context.Context, store SessionStore) (bool, error) {
	snap, ok, err := store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load sessions: %w", err)
	}
	if !ok {
		return false, nil
	}
	r.Restore(snap)
	return true, nil
}

func toLatLng(p spatial.Point) models.LatLng {
	return models.LatLng{Lat: p.Lat, Lng: p.Lon}
}
