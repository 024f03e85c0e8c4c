package reconciler

import (
	"time"

	"github.com/jengzang/locator-backend-go/internal/models"
	"github.com/jengzang/locator-backend-go/internal/spatial"
)

// Session is the rendered state of one tracked unit in live mode
type Session struct {
	Unit     string
	Route    []models.LatLng
	Marker   *models.Fix
	Mark     string // high-water mark: timestamp of the last incorporated fix
	hasMark  bool   // an empty timestamp is still a mark
	markTime time.Time
}

func newSession(unit string) *Session {
	return &Session{Unit: unit}
}

// HasPolyline reports whether the route is long enough to draw
func (s *Session) HasPolyline() bool {
	return len(s.Route) >= 2
}

// ingest appends f when it is newer than the high-water mark.
// A fix with the mark's timestamp, or one chronologically before it, is a duplicate.
func (s *Session) ingest(f models.Fix) bool {
	if !validPosition(f) {
		return false
	}
	if s.hasMark && f.Timestamp == s.Mark {
		return false
	}

	t := f.Time
	if t.IsZero() {
		t, _ = models.ParseTimestamp(f.Timestamp)
	}
	if s.hasMark && !t.IsZero() && !s.markTime.IsZero() && t.Before(s.markTime) {
		return false
	}

	s.Route = append(s.Route, f.Position())
	fix := f
	fix.Time = t
	s.Marker = &fix
	s.Mark = f.Timestamp
	s.hasMark = true
	s.markTime = t
	return true
}

func (s *Session) state() SessionState {
	st := SessionState{
		Unit:  s.Unit,
		Route: append([]models.LatLng(nil), s.Route...),
		Mark:  s.Mark,
	}
	if s.Marker != nil {
		m := *s.Marker
		st.Marker = &m
	}
	return st
}

func sessionFromState(st SessionState) *Session {
	s := &Session{
		Unit:  st.Unit,
		Route: append([]models.LatLng(nil), st.Route...),
		Mark:  st.Mark,
	}
	s.markTime, _ = models.ParseTimestamp(st.Mark)
	if st.Marker != nil {
		m := *st.Marker
		m.Time, _ = models.ParseTimestamp(m.Timestamp)
		s.Marker = &m
		s.hasMark = true
	}
	return s
}

func validPosition(f models.Fix) bool {
	return spatial.Point{Lat: f.Lat, Lon: f.Lng}.Valid()
}
