package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/jengzang/locator-backend-go/internal/models"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationManager manages database migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// UnitMigrations builds the partition schema of every tracked unit.
// Columns follow the sniffer's insert: lat, lon, fecha, hora, rpm.
func UnitMigrations(units []models.TrackedUnit) []Migration {
	migrations := make([]Migration, 0, len(units))
	for i, u := range units {
		migrations = append(migrations, Migration{
			Version: i + 1,
			Name:    "create_" + u.Table,
			SQL: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %[1]s (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					lat REAL,
					lon REAL,
					fecha TEXT NOT NULL,
					hora TEXT NOT NULL,
					rpm INTEGER
				);
				CREATE INDEX IF NOT EXISTS idx_%[1]s_fecha_hora ON %[1]s (fecha, hora);
			`, u.Table),
		})
	}
	return migrations
}

// InitMigrationsTable creates the migrations tracking table
func (m *MigrationManager) InitMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			name TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns the names of applied migrations
func (m *MigrationManager) GetAppliedMigrations() (map[string]bool, error) {
	rows, err := m.db.Query("SELECT name FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration name: %w", err)
		}
		applied[name] = true
	}

	return applied, rows.Err()
}

// ApplyMigration applies a single migration
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	// Execute migration SQL
	if _, err := tx.Exec(migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
	}

	// Record migration
	if _, err := tx.Exec("INSERT INTO migrations (name, version) VALUES (?, ?)", migration.Name, migration.Version); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", migration.Name, err)
	}

	log.Printf("Applied migration %d: %s", migration.Version, migration.Name)
	return nil
}

// RunMigrations runs all pending migrations
func (m *MigrationManager) RunMigrations(migrations []Migration) error {
	if err := m.InitMigrationsTable(); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Name] {
			log.Printf("Skipping already applied migration %d: %s", migration.Version, migration.Name)
			continue
		}

		if err := m.ApplyMigration(migration); err != nil {
			return err
		}
	}

	log.Println("All migrations applied successfully")
	return nil
}
