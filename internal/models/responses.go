package models

import (
	"bytes"
	"encoding/json"
)

// UnitFixes holds the ordered fixes of one unit
type UnitFixes struct {
	Unit  TrackedUnit
	Fixes []Fix
}

// LatestResponse is the envelope of the latest-fixes query.
// Either Locations (single unit) or Units (one vehicle<id> key per unit) is populated.
type LatestResponse struct {
	Success   bool
	Total     int
	PageName  string
	Locations []Fix
	Units     []UnitFixes
}

// MarshalJSON renders the per-unit breakdown as vehicle<id> keys
func (r LatestResponse) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"success":  r.Success,
		"total":    r.Total,
		"pageName": r.PageName,
	}
	if r.Units == nil {
		out["locations"] = nonNil(r.Locations)
	} else {
		for _, u := range r.Units {
			out["vehicle"+u.Unit.ID] = nonNil(u.Fixes)
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RangeResponse is the envelope of the historical range query
type RangeResponse struct {
	Success       bool   `json:"success"`
	Total         int    `json:"total"`
	FechaInicio   string `json:"fecha_inicio"`
	FechaFin      string `json:"fecha_fin"`
	ConsultaDesde string `json:"consulta_desde"`
	ConsultaHasta string `json:"consulta_hasta"`
	PageName      string `json:"pageName"`
	Locations     []Fix  `json:"locations"`
}

// RadiusResponse is the envelope of the radius query
type RadiusResponse struct {
	Success       bool   `json:"success"`
	Total         int    `json:"total"`
	PuntoBusqueda LatLng `json:"punto_busqueda"`
	RadioMetros   int    `json:"radio_metros"`
	PageName      string `json:"pageName"`
	Locations     []Fix  `json:"locations"`
}

func nonNil(fixes []Fix) []Fix {
	if fixes == nil {
		return []Fix{}
	}
	return fixes
}
