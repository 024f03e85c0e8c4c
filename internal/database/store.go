package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Driver string // sqlite, mysql or postgres
	Host   string
	Port   string
	User   string
	Pass   string
	Name   string // database name, or file path for sqlite
}

// Open opens the Location Store pool and checks it is reachable
func Open(cfg Config) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if cfg.Driver == "sqlite" {
		// Enable WAL mode so readers never block the ingestion writer
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, Dialect{}, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	// Connections are acquired per request; an unreachable store is reported on each
	// query rather than failing startup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Printf("Warning: %s store not reachable: %v", cfg.Driver, err)
		return db, dialect, nil
	}

	log.Printf("Database initialized successfully: %s", describe(cfg))
	return db, dialect, nil
}

func buildDSN(cfg Config) (string, error) {
	switch cfg.Driver {
	case "sqlite":
		return cfg.Name, nil
	case "mysql":
		port := cfg.Port
		if port == "" {
			port = "3306"
		}
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Pass
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, port)
		mc.DBName = cfg.Name
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	case "postgres":
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Pass),
			Host:     net.JoinHostPort(cfg.Host, port),
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func describe(cfg Config) string {
	if cfg.Driver == "sqlite" {
		return cfg.Name
	}
	return fmt.Sprintf("%s://%s/%s", cfg.Driver, cfg.Host, cfg.Name)
}
