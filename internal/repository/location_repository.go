package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jengzang/locator-backend-go/internal/database"
	"github.com/jengzang/locator-backend-go/internal/models"
)

var (
	// ErrConnection means no connection to the Location Store could be acquired
	ErrConnection = errors.New("store connection failed")
	// ErrPrepare means the read statement could not be prepared
	ErrPrepare = errors.New("query preparation failed")
)

// LocationRepository reads fixes from the per-unit partitions of the Location Store
type LocationRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *sql.DB, dialect database.Dialect) *LocationRepository {
	return &LocationRepository{db: db, dialect: dialect}
}

// ListFixes retrieves every fix of a unit ordered by id
func (r *LocationRepository) ListFixes(ctx context.Context, unit models.TrackedUnit) ([]models.Fix, error) {
	return r.query(ctx, unit, "")
}

// ListFixesInRange retrieves the fixes whose fecha + ' ' + hora lies within the window, inclusive
func (r *LocationRepository) ListFixesInRange(ctx context.Context, unit models.TrackedUnit, window models.QueryWindow) ([]models.Fix, error) {
	ts := r.dialect.TimestampExpr()
	where := ts + " >= ? AND " + ts + " <= ?"
	return r.query(ctx, unit, where, window.Start, window.End)
}

// Ping checks the store is reachable
func (r *LocationRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *LocationRepository) query(ctx context.Context, unit models.TrackedUnit, where string, args ...interface{}) ([]models.Fix, error) {
	columns := []string{"id", "lat", "lon", r.dialect.TimestampExpr() + " AS timestamp"}
	if unit.HasRPM {
		columns = append(columns, "rpm")
	}

	// unit.Table is validated as an identifier at config load
	query := "SELECT " + strings.Join(columns, ", ") + " FROM " + unit.Table
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id ASC"

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer conn.Close()

	stmt, err := conn.PrepareContext(ctx, r.dialect.Rebind(query))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrepare, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", unit.Table, err)
	}
	defer rows.Close()

	fixes := []models.Fix{}
	for rows.Next() {
		var (
			id       int64
			lat, lon sql.NullFloat64
			ts       sql.NullString
			rpm      sql.NullInt64
		)
		dest := []interface{}{&id, &lat, &lon, &ts}
		if unit.HasRPM {
			dest = append(dest, &rpm)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan fix: %w", err)
		}

		// Rows without both coordinates never reach a result set
		if !lat.Valid || !lon.Valid {
			continue
		}

		// a NULL fecha or hora leaves the timestamp empty, the fix is still returned
		fix := models.Fix{
			Lat:        lat.Float64,
			Lng:        lon.Float64,
			Timestamp:  ts.String,
			SequenceID: id,
		}
		if t, ok := models.ParseTimestamp(ts.String); ok {
			fix.Time = t
		}
		if rpm.Valid {
			v := int(rpm.Int64)
			fix.RPM = &v
		}
		fixes = append(fixes, fix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixes: %w", err)
	}

	return fixes, nil
}
