package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakejscott/phoneverify/verification"
)

const testPhone = "+64223062141"

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

var attemptColumns = []string{"id", "phone", "version", "created", "secret", "attempts", "verified"}

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db, WithClock(func() time.Time { return fixedNow })), mock
}

func TestGetLatestVersion(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT latest FROM verifications WHERE phone = \$1 AND version = 0$`).
		WithArgs(testPhone).
		WillReturnRows(sqlmock.NewRows([]string{"latest"}).AddRow(int64(4)))

	latest, err := store.GetLatestVersion(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest)
}

func TestGetLatestVersionMissing(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT latest FROM verifications`).
		WithArgs(testPhone).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetLatestVersion(context.Background(), testPhone)
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestGetLatestVersionDBError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT latest FROM verifications`).
		WithArgs(testPhone).
		WillReturnError(errors.New("db down"))

	_, err := store.GetLatestVersion(context.Background(), testPhone)
	assert.ErrorIs(t, err, verification.ErrUnavailable)
	assert.Contains(t, err.Error(), "db down")
}

func TestInsertInitialVersion(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^INSERT INTO verifications \(phone, version, latest\).*ON CONFLICT \(phone, version\) DO NOTHING$`).
		WithArgs(testPhone, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT INTO verifications \(id, phone, version, created, secret, attempts\)`).
		WithArgs(sqlmock.AnyArg(), testPhone, int64(1), fixedNow, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.InsertInitialVersion(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, fixedNow, rec.Created)
	assert.Len(t, rec.Secret, verification.SecretSize)
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

func TestInsertInitialVersionConflict(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO verifications \(phone, version, latest\)`).
		WithArgs(testPhone, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.InsertInitialVersion(context.Background(), testPhone)
	assert.ErrorIs(t, err, verification.ErrConflict)
}

func TestInsertInitialVersionUniqueViolationIsConflict(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO verifications \(phone, version, latest\)`).
		WithArgs(testPhone, int64(1)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.InsertInitialVersion(context.Background(), testPhone)
	assert.ErrorIs(t, err, verification.ErrConflict)
}

func TestInsertNextVersion(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE verifications SET latest = \$3\s+WHERE phone = \$1 AND version = 0 AND latest = \$2$`).
		WithArgs(testPhone, int64(2), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO verifications \(id, phone, version, created, secret, attempts\)`).
		WithArgs(sqlmock.AnyArg(), testPhone, int64(3), fixedNow, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.InsertNextVersion(context.Background(), testPhone, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)
}

func TestInsertNextVersionStaleCurrent(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE verifications SET latest`).
		WithArgs(testPhone, int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.InsertNextVersion(context.Background(), testPhone, 1)
	assert.ErrorIs(t, err, verification.ErrConflict)
}

func TestGetVerificationByID(t *testing.T) {
	store, mock := newStoreWithMock(t)
	id := uuid.New()
	verifiedAt := fixedNow.Add(time.Minute)

	mock.ExpectQuery(`(?s)^SELECT id, phone, version, created, secret, attempts, verified\s+FROM verifications WHERE id = \$1$`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(attemptColumns).
			AddRow(id.String(), testPhone, int64(2), fixedNow, []byte("secret"), int64(1), verifiedAt))

	rec, err := store.GetVerificationByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, 1, rec.Attempts)
	require.NotNil(t, rec.Verified)
	assert.True(t, rec.Verified.Equal(verifiedAt))
}

func TestGetVerificationMissing(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM verifications WHERE phone = \$1 AND version = \$2`).
		WithArgs(testPhone, int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetVerification(context.Background(), testPhone, 9)
	assert.ErrorIs(t, err, verification.ErrNotFound)

	_, err = store.GetVerification(context.Background(), testPhone, 0)
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestIncrementAttempts(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE verifications SET attempts = attempts \+ 1`).
		WithArgs(testPhone, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE verifications SET attempts = attempts \+ 1`).
		WithArgs(testPhone, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.IncrementAttempts(context.Background(), testPhone, 1))
	assert.ErrorIs(t, store.IncrementAttempts(context.Background(), testPhone, 7), verification.ErrNotFound)
}

func TestSetVerified(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)UPDATE verifications SET verified = \$3, attempts = attempts \+ 1.*verified IS NULL`).
		WithArgs(testPhone, int64(1), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetVerified(context.Background(), testPhone, 1))
}

func TestSetVerifiedAlreadySet(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE verifications SET verified`).
		WithArgs(testPhone, int64(1), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT verified IS NOT NULL FROM verifications`).
		WithArgs(testPhone, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(true))

	assert.ErrorIs(t, store.SetVerified(context.Background(), testPhone, 1), verification.ErrAlreadyVerified)
}

func TestSetVerifiedMissing(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE verifications SET verified`).
		WithArgs(testPhone, int64(3), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT verified IS NOT NULL FROM verifications`).
		WithArgs(testPhone, int64(3)).
		WillReturnError(sql.ErrNoRows)

	assert.ErrorIs(t, store.SetVerified(context.Background(), testPhone, 3), verification.ErrNotFound)
}

func TestGetRecentVerifications(t *testing.T) {
	store, mock := newStoreWithMock(t)

	rows := sqlmock.NewRows(attemptColumns).
		AddRow(uuid.NewString(), testPhone, int64(3), fixedNow.Add(2*time.Minute), []byte("c"), int64(0), nil).
		AddRow(uuid.NewString(), testPhone, int64(2), fixedNow.Add(time.Minute), []byte("b"), int64(1), nil)

	mock.ExpectQuery(`(?s)WHERE phone = \$1 AND version > 0\s+ORDER BY version DESC LIMIT \$2`).
		WithArgs(testPhone, 2).
		WillReturnRows(rows)

	recent, err := store.GetRecentVerifications(context.Background(), testPhone, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].Version)
	assert.Equal(t, int64(2), recent[1].Version)
	assert.Nil(t, recent[0].Verified)

	none, err := store.GetRecentVerifications(context.Background(), testPhone, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var gotDir string
	orig := gooseUp
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	defer func() { gooseUp = orig }()

	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)

	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestMigrateWrapsError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUp
	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }
	defer func() { gooseUp = orig }()

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goose up: boom")
}
