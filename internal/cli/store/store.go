// Package store is the trustctl state database: the sealed session token
// pair and the verification records the CLI has seen.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/trustkit/internal/cli/store/migrations"
	"github.com/aussiebroadwan/trustkit/pkg/verifysdk"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db  *sql.DB
	dsn string
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ApplyMigrations brings the schema up to date from the embedded migration
// files.
func (s *Store) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", source, "", driver)
	if err != nil {
		return err
	}

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SealedSession is the encrypted token pair and the salt its key was
// derived with.
type SealedSession struct {
	Salt      []byte
	Sealed    []byte
	UpdatedAt time.Time
}

func (s *Store) SaveSession(ctx context.Context, sess SealedSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, salt, sealed, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET salt = excluded.salt, sealed = excluded.sealed, updated_at = excluded.updated_at`,
		sess.Salt, sess.Sealed, sess.UpdatedAt.UTC(),
	)
	return err
}

func (s *Store) LoadSession(ctx context.Context) (SealedSession, error) {
	var sess SealedSession
	err := s.db.QueryRowContext(ctx, `SELECT salt, sealed, updated_at FROM session WHERE id = 1`).
		Scan(&sess.Salt, &sess.Sealed, &sess.UpdatedAt)
	if err != nil {
		return SealedSession{}, mapNotFound(err)
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session`)
	return err
}

// SaveVerification inserts or replaces the cached copy of v.
func (s *Store) SaveVerification(ctx context.Context, v verifysdk.Verification) error {
	record, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode verification: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verifications (id, type, status, record, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET type = excluded.type, status = excluded.status,
			record = excluded.record, updated_at = excluded.updated_at`,
		v.ID, string(v.Type), string(v.Status), string(record), time.Now().UTC(),
	)
	return err
}

func (s *Store) GetVerification(ctx context.Context, id string) (verifysdk.Verification, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM verifications WHERE id = ?`, id).Scan(&record)
	if err != nil {
		return verifysdk.Verification{}, mapNotFound(err)
	}
	return decodeVerification(record)
}

// ListVerifications returns every cached record, most recently saved first.
func (s *Store) ListVerifications(ctx context.Context) ([]verifysdk.Verification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM verifications ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []verifysdk.Verification
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		v, err := decodeVerification(record)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) DeleteVerification(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM verifications WHERE id = ?`, id)
	return err
}

func decodeVerification(record string) (verifysdk.Verification, error) {
	var v verifysdk.Verification
	if err := json.Unmarshal([]byte(record), &v); err != nil {
		return verifysdk.Verification{}, fmt.Errorf("failed to decode verification: %w", err)
	}
	return v, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
