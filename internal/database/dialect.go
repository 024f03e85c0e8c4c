package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Dialect captures the SQL differences between the supported stores
type Dialect struct {
	Name       string
	DriverName string
	concatFn   bool // MySQL treats || as OR, so CONCAT() is required
}

// DialectFor returns the dialect of a configured driver
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return Dialect{Name: "sqlite", DriverName: "sqlite"}, nil
	case "mysql":
		return Dialect{Name: "mysql", DriverName: "mysql", concatFn: true}, nil
	case "postgres":
		return Dialect{Name: "postgres", DriverName: "postgres"}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// TimestampExpr is the composite fecha + ' ' + hora expression
func (d Dialect) TimestampExpr() string {
	if d.concatFn {
		return "CONCAT(fecha, ' ', hora)"
	}
	return "fecha || ' ' || hora"
}

// Rebind rewrites ? placeholders into the bind style of the driver
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(d.DriverName), query)
}
