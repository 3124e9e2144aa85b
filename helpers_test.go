package phoneverify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jakejscott/phoneverify/internal/hotp"
	"github.com/jakejscott/phoneverify/verification"
)

const testPhone = "+64223062141"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMessage struct {
	phone   string
	message string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, phone, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, sentMessage{phone: phone, message: message})
	return "msg-" + uuid.NewString(), nil
}

func (s *recordingSender) last(t *testing.T) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("expected a delivered message")
	}
	return s.sent[len(s.sent)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type testEnv struct {
	engine *Engine
	store  *verification.RedisStore
	mr     *miniredis.Miniredis
	clock  *testClock
	sender *recordingSender
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestEnv(t testing.TB, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr, client := newTestRedis(t)
	clock := newTestClock()
	store := verification.NewRedisStore(client, "test", verification.WithClock(clock.Now))
	sender := &recordingSender{}

	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithSender(sender).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mr: mr, clock: clock, sender: sender}
}

func (env *testEnv) codeFor(t testing.TB, id uuid.UUID) string {
	t.Helper()

	rec, err := env.store.GetVerificationByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVerificationByID failed: %v", err)
	}
	code, err := hotp.Generate(rec.Secret, rec.Version, env.engine.config.Verification.CodeDigits)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return code
}

func (env *testEnv) record(t testing.TB, id uuid.UUID) *verification.Record {
	t.Helper()

	rec, err := env.store.GetVerificationByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVerificationByID failed: %v", err)
	}
	return rec
}

func (env *testEnv) mustStart(t testing.TB, phone string) uuid.UUID {
	t.Helper()

	id, err := env.engine.Start(context.Background(), phone)
	if err != nil {
		t.Fatalf("Start(%q) failed: %v", phone, err)
	}
	return id
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func codeFromMessage(t *testing.T, message string) string {
	t.Helper()

	code, ok := strings.CutPrefix(message, "Your code is: ")
	if !ok {
		t.Fatalf("unexpected message %q", message)
	}
	return code
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
