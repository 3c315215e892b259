package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/lib/pq"

	"github.com/hombenai/herd-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStore persists the snapshot in three tables. Save rewrites all of
// them inside one transaction, which gives the atomic-replace guarantee the
// Store contract asks for.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg DatabaseConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (*models.Snapshot, error) {
	snap := models.NewSnapshot()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, cows FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Name, pq.Array(&u.Cows)); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		snap.Users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, owner_id, photo_ref, tag FROM animals`)
	if err != nil {
		return nil, fmt.Errorf("failed to load animals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		a := &models.Animal{}
		if err := rows.Scan(&a.ID, &a.Name, &a.OwnerID, &a.PhotoRef, &a.Tag); err != nil {
			return nil, fmt.Errorf("failed to scan animal: %w", err)
		}
		snap.Animals[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load animals: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT animal_id FROM missing`)
	if err != nil {
		return nil, fmt.Errorf("failed to load missing set: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan missing id: %w", err)
		}
		snap.Missing = append(snap.Missing, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load missing set: %w", err)
	}

	return snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, snap *models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"users", "animals", "missing"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for id, u := range snap.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, cows) VALUES ($1, $2, $3)`,
			id, u.Name, pq.Array(u.Cows)); err != nil {
			return fmt.Errorf("failed to save user %s: %w", id, err)
		}
	}
	for id, a := range snap.Animals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO animals (id, name, owner_id, photo_ref, tag) VALUES ($1, $2, $3, $4, $5)`,
			id, a.Name, a.OwnerID, a.PhotoRef, a.Tag); err != nil {
			return fmt.Errorf("failed to save animal %s: %w", id, err)
		}
	}
	for _, id := range dedupe(snap.Missing) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO missing (animal_id) VALUES ($1)`, id); err != nil {
			return fmt.Errorf("failed to save missing id %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
