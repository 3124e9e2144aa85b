package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jakejscott/phoneverify/verification"
)

const uniqueViolation = "23505"

const (
	selectLatest = `SELECT latest FROM verifications WHERE phone = $1 AND version = 0`

	insertPointer = `INSERT INTO verifications (phone, version, latest)
		VALUES ($1, 0, $2)
		ON CONFLICT (phone, version) DO NOTHING`

	advancePointer = `UPDATE verifications SET latest = $3
		WHERE phone = $1 AND version = 0 AND latest = $2`

	insertAttempt = `INSERT INTO verifications (id, phone, version, created, secret, attempts)
		VALUES ($1, $2, $3, $4, $5, 0)`

	selectAttempt = `SELECT id, phone, version, created, secret, attempts, verified
		FROM verifications WHERE phone = $1 AND version = $2`

	selectAttemptByID = `SELECT id, phone, version, created, secret, attempts, verified
		FROM verifications WHERE id = $1`

	selectRecent = `SELECT id, phone, version, created, secret, attempts, verified
		FROM verifications WHERE phone = $1 AND version > 0
		ORDER BY version DESC LIMIT $2`

	incrementAttempts = `UPDATE verifications SET attempts = attempts + 1
		WHERE phone = $1 AND version = $2`

	setVerified = `UPDATE verifications SET verified = $3, attempts = attempts + 1
		WHERE phone = $1 AND version = $2 AND verified IS NULL`

	selectVerifiedSet = `SELECT verified IS NOT NULL FROM verifications WHERE phone = $1 AND version = $2`
)

// Store keeps verification chains in PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created and verified stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an open database handle. Run Migrate first.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetLatestVersion(ctx context.Context, phone string) (int64, error) {
	var latest int64
	err := s.db.QueryRowContext(ctx, selectLatest, phone).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, verification.ErrNotFound
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return latest, nil
}

func (s *Store) InsertInitialVersion(ctx context.Context, phone string) (*verification.Record, error) {
	rec, err := verification.NewRecord(phone, 1, s.now())
	if err != nil {
		return nil, err
	}

	err = withTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		res, err := tx.ExecContext(ctx, insertPointer, phone, rec.Version)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return verification.ErrConflict
		}
		return insertRecord(ctx, tx, rec)
	})
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return rec, nil
}

func (s *Store) InsertNextVersion(ctx context.Context, phone string, current int64) (*verification.Record, error) {
	rec, err := verification.NewRecord(phone, current+1, s.now())
	if err != nil {
		return nil, err
	}

	err = withTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		res, err := tx.ExecContext(ctx, advancePointer, phone, current, rec.Version)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return verification.ErrConflict
		}
		return insertRecord(ctx, tx, rec)
	})
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return rec, nil
}

func insertRecord(ctx context.Context, tx dbtx, rec *verification.Record) error {
	_, err := tx.ExecContext(ctx, insertAttempt, rec.ID, rec.Phone, rec.Version, rec.Created, rec.Secret)
	return err
}

func (s *Store) GetVerification(ctx context.Context, phone string, version int64) (*verification.Record, error) {
	if version <= 0 {
		return nil, verification.ErrNotFound
	}
	return scanOne(s.db.QueryRowContext(ctx, selectAttempt, phone, version))
}

func (s *Store) GetVerificationByID(ctx context.Context, id uuid.UUID) (*verification.Record, error) {
	return scanOne(s.db.QueryRowContext(ctx, selectAttemptByID, id))
}

func (s *Store) IncrementAttempts(ctx context.Context, phone string, version int64) error {
	if version <= 0 {
		return verification.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, incrementAttempts, phone, version)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return verification.ErrNotFound
	}
	return nil
}

func (s *Store) SetVerified(ctx context.Context, phone string, version int64) error {
	if version <= 0 {
		return verification.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, setVerified, phone, version, s.now().UTC())
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n > 0 {
		return nil
	}

	var already bool
	err = s.db.QueryRowContext(ctx, selectVerifiedSet, phone, version).Scan(&already)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return verification.ErrNotFound
	case err != nil:
		return unavailable(err)
	case already:
		return verification.ErrAlreadyVerified
	}
	return verification.ErrNotFound
}

func (s *Store) GetRecentVerifications(ctx context.Context, phone string, limit int) ([]verification.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, selectRecent, phone, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make([]verification.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*verification.Record, error) {
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNotFound
	}
	return rec, err
}

func scanRecord(row scanner) (*verification.Record, error) {
	var (
		rec      verification.Record
		verified sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.Phone, &rec.Version, &rec.Created, &rec.Secret, &rec.Attempts, &verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable(err)
	}

	rec.Created = rec.Created.UTC()
	if verified.Valid {
		t := verified.Time.UTC()
		rec.Verified = &t
	}
	return &rec, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", verification.ErrUnavailable, err)
}

func mapWriteErr(err error) error {
	if errors.Is(err, verification.ErrConflict) {
		return verification.ErrConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return verification.ErrConflict
	}
	return unavailable(err)
}
