package models

// Query-string parameters are bound as *string so that an absent parameter (nil)
// can be told apart from an empty one ("").

// LatestFilter represents parameters for the latest-fixes query
type LatestFilter struct {
	Unit *string `form:"unit"` // 1, 2 or any configured unit id
}

// RangeFilter represents parameters for the historical range query
type RangeFilter struct {
	FechaInicio *string `form:"fecha_inicio"` // e.g. 2024-01-01T00:00
	FechaFin    *string `form:"fecha_fin"`
	VehiculoID  *string `form:"vehiculo_id"`
}

// RadiusFilter represents parameters for the radius query
type RadiusFilter struct {
	Lat        *string `form:"lat"`
	Lng        *string `form:"lng"`
	Radio      *string `form:"radio"` // meters, default 500
	VehiculoID *string `form:"vehiculo_id"`
}
