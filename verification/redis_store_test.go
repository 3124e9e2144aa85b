package verification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testPhone = "+64223062141"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *fakeClock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewRedisStore(client, "", WithClock(clock.Now)), mr, clock
}

func TestInsertInitialVersionCreatesPointerAndRow(t *testing.T) {
	store, mr, clock := newTestStore(t)
	ctx := context.Background()

	rec, err := store.InsertInitialVersion(ctx, testPhone)
	if err != nil {
		t.Fatalf("InsertInitialVersion failed: %v", err)
	}
	if rec.Version != 1 || rec.Attempts != 0 || rec.Verified != nil {
		t.Fatalf("unexpected initial record: %+v", rec)
	}
	if len(rec.Secret) != SecretSize {
		t.Fatalf("expected %d byte secret, got %d", SecretSize, len(rec.Secret))
	}
	if !rec.Created.Equal(clock.Now()) {
		t.Fatalf("expected created %v, got %v", clock.Now(), rec.Created)
	}

	latest, err := store.GetLatestVersion(ctx, testPhone)
	if err != nil || latest != 1 {
		t.Fatalf("expected latest 1, got %d (%v)", latest, err)
	}
	if got := mr.HGet("pv:v:"+testPhone+":0", "latest"); got != "1" {
		t.Fatalf("expected pointer latest=1 in redis, got %q", got)
	}

	byID, err := store.GetVerificationByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetVerificationByID failed: %v", err)
	}
	if byID.Phone != testPhone || byID.Version != 1 || string(byID.Secret) != string(rec.Secret) {
		t.Fatalf("id lookup mismatch: %+v", byID)
	}
}

func TestInsertInitialVersionConflictWhenPointerExists(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertInitialVersion(ctx, testPhone); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := store.InsertInitialVersion(ctx, testPhone); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInsertInitialVersionConcurrentSingleWinner(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	const workers = 16
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.InsertInitialVersion(ctx, testPhone)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if conflicts.Load() != workers-1 {
		t.Fatalf("expected %d conflicts, got %d", workers-1, conflicts.Load())
	}
	recent, err := store.GetRecentVerifications(ctx, testPhone, 10)
	if err != nil {
		t.Fatalf("GetRecentVerifications failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected one attempt row, got %d", len(recent))
	}
}

func TestInsertNextVersionConditionalOnLatest(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertInitialVersion(ctx, testPhone); err != nil {
		t.Fatalf("InsertInitialVersion failed: %v", err)
	}

	next, err := store.InsertNextVersion(ctx, testPhone, 1)
	if err != nil {
		t.Fatalf("InsertNextVersion failed: %v", err)
	}
	if next.Version != 2 {
		t.Fatalf("expected version 2, got %d", next.Version)
	}

	if _, err := store.InsertNextVersion(ctx, testPhone, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale current, got %v", err)
	}
	if _, err := store.InsertNextVersion(ctx, "+15550000000", 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for missing pointer, got %v", err)
	}

	latest, err := store.GetLatestVersion(ctx, testPhone)
	if err != nil || latest != 2 {
		t.Fatalf("expected latest 2, got %d (%v)", latest, err)
	}
}

func TestInsertNextVersionConcurrentSingleAdvance(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertInitialVersion(ctx, testPhone); err != nil {
		t.Fatalf("InsertInitialVersion failed: %v", err)
	}

	const workers = 12
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.InsertNextVersion(ctx, testPhone, 1); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one advance, got %d", wins.Load())
	}
	latest, _ := store.GetLatestVersion(ctx, testPhone)
	if latest != 2 {
		t.Fatalf("expected latest 2, got %d", latest)
	}
}

func TestGetMissing(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetLatestVersion(ctx, testPhone); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetVerification(ctx, testPhone, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetVerification(ctx, testPhone, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pointer row to be unreadable as an attempt, got %v", err)
	}
	if _, err := store.GetVerificationByID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.IncrementAttempts(ctx, testPhone, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetVerified(ctx, testPhone, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	recent, err := store.GetRecentVerifications(ctx, testPhone, 5)
	if err != nil || len(recent) != 0 {
		t.Fatalf("expected empty history, got %d (%v)", len(recent), err)
	}
}

func TestIncrementAttemptsAndSetVerified(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	rec, err := store.InsertInitialVersion(ctx, testPhone)
	if err != nil {
		t.Fatalf("InsertInitialVersion failed: %v", err)
	}

	if err := store.IncrementAttempts(ctx, testPhone, rec.Version); err != nil {
		t.Fatalf("IncrementAttempts failed: %v", err)
	}
	clock.Advance(30 * time.Second)
	if err := store.SetVerified(ctx, testPhone, rec.Version); err != nil {
		t.Fatalf("SetVerified failed: %v", err)
	}

	got, err := store.GetVerification(ctx, testPhone, rec.Version)
	if err != nil {
		t.Fatalf("GetVerification failed: %v", err)
	}
	if got.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", got.Attempts)
	}
	if got.Verified == nil || !got.Verified.Equal(clock.Now()) {
		t.Fatalf("expected verified at %v, got %v", clock.Now(), got.Verified)
	}

	first := *got.Verified
	clock.Advance(time.Minute)
	if err := store.SetVerified(ctx, testPhone, rec.Version); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	again, _ := store.GetVerification(ctx, testPhone, rec.Version)
	if !again.Verified.Equal(first) || again.Attempts != 2 {
		t.Fatalf("expected verified stamp and attempts unchanged, got %+v", again)
	}
}

func TestGetRecentVerificationsNewestFirst(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertInitialVersion(ctx, testPhone); err != nil {
		t.Fatalf("InsertInitialVersion failed: %v", err)
	}
	for v := int64(1); v < 6; v++ {
		clock.Advance(time.Minute)
		if _, err := store.InsertNextVersion(ctx, testPhone, v); err != nil {
			t.Fatalf("InsertNextVersion(%d) failed: %v", v, err)
		}
	}

	recent, err := store.GetRecentVerifications(ctx, testPhone, 4)
	if err != nil {
		t.Fatalf("GetRecentVerifications failed: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recent))
	}
	for i, want := range []int64{6, 5, 4, 3} {
		if recent[i].Version != want {
			t.Fatalf("position %d: expected version %d, got %d", i, want, recent[i].Version)
		}
	}
	if !recent[0].Created.After(recent[1].Created) {
		t.Fatal("expected newest first by created time")
	}

	all, _ := store.GetRecentVerifications(ctx, testPhone, 100)
	if len(all) != 6 {
		t.Fatalf("expected all 6 attempts without the pointer, got %d", len(all))
	}
}

func TestRedisUnavailableWrapped(t *testing.T) {
	store, mr, _ := newTestStore(t)
	mr.Close()

	_, err := store.GetLatestVersion(context.Background(), testPhone)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	_, err = store.InsertInitialVersion(context.Background(), testPhone)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRecordPredicates(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &Record{Created: created, Attempts: 2}
	ttl := 3 * time.Minute

	if rec.Expired(created.Add(ttl), ttl) {
		t.Fatal("expected attempt exactly ttl old to be live")
	}
	if !rec.Expired(created.Add(ttl+time.Nanosecond), ttl) {
		t.Fatal("expected attempt older than ttl to be expired")
	}
	if rec.AttemptsExhausted(3) {
		t.Fatal("expected 2 of 3 attempts to be available")
	}
	rec.Attempts = 3
	if !rec.AttemptsExhausted(3) {
		t.Fatal("expected 3 of 3 attempts to be exhausted")
	}
	if rec.IsVerified() {
		t.Fatal("expected unverified")
	}
}
