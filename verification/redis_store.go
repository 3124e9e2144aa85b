package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces all keys written by RedisStore.
const DefaultPrefix = "pv"

const (
	fieldLatest   = "latest"
	fieldID       = "id"
	fieldPhone    = "phone"
	fieldVersion  = "version"
	fieldCreated  = "created"
	fieldSecret   = "secret"
	fieldAttempts = "attempts"
	fieldVerified = "verified"
)

const incrementAttemptsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`

const setVerifiedScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HEXISTS", KEYS[1], "verified") == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "verified", ARGV[1])
redis.call("HINCRBY", KEYS[1], "attempts", 1)
return 1
`

var (
	incrementAttemptsLua = redis.NewScript(incrementAttemptsScript)
	setVerifiedLua       = redis.NewScript(setVerifiedScript)
)

// RedisStore keeps verification chains in Redis hashes.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithClock overrides the time source used for created and verified stamps.
func WithClock(now func() time.Time) Option {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore returns a store writing under prefix (DefaultPrefix when empty).
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &RedisStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) rowKey(phone string, version int64) string {
	return s.prefix + ":v:" + phone + ":" + strconv.FormatInt(version, 10)
}

func (s *RedisStore) idKey(id uuid.UUID) string {
	return s.prefix + ":id:" + id.String()
}

// GetLatestVersion returns the pointer's latest version or ErrNotFound for an unseen phone.
func (s *RedisStore) GetLatestVersion(ctx context.Context, phone string) (int64, error) {
	latest, err := s.redis.HGet(ctx, s.rowKey(phone, 0), fieldLatest).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return latest, nil
}

// InsertInitialVersion creates the pointer (latest=1) and attempt 1 atomically.
// It returns ErrConflict if the pointer already exists.
func (s *RedisStore) InsertInitialVersion(ctx context.Context, phone string) (*Record, error) {
	rec, err := NewRecord(phone, 1, s.now())
	if err != nil {
		return nil, err
	}

	pointer := s.rowKey(phone, 0)
	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, pointer).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, pointer, fieldLatest, rec.Version)
			s.queueRecord(ctx, pipe, rec)
			return nil
		})
		return err
	}, pointer)
	if err != nil {
		return nil, mapWriteErr(err)
	}

	return rec, nil
}

// InsertNextVersion bumps the pointer from current to current+1 and creates the
// new attempt, provided latest still equals current. Otherwise ErrConflict.
func (s *RedisStore) InsertNextVersion(ctx context.Context, phone string, current int64) (*Record, error) {
	rec, err := NewRecord(phone, current+1, s.now())
	if err != nil {
		return nil, err
	}

	pointer := s.rowKey(phone, 0)
	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		latest, err := tx.HGet(ctx, pointer, fieldLatest).Int64()
		if errors.Is(err, redis.Nil) {
			return ErrConflict
		}
		if err != nil {
			return err
		}
		if latest != current {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, pointer, fieldLatest, rec.Version)
			s.queueRecord(ctx, pipe, rec)
			return nil
		})
		return err
	}, pointer)
	if err != nil {
		return nil, mapWriteErr(err)
	}

	return rec, nil
}

func (s *RedisStore) queueRecord(ctx context.Context, pipe redis.Pipeliner, rec *Record) {
	pipe.HSet(ctx, s.rowKey(rec.Phone, rec.Version),
		fieldID, rec.ID.String(),
		fieldPhone, rec.Phone,
		fieldVersion, rec.Version,
		fieldCreated, rec.Created.UnixNano(),
		fieldSecret, rec.Secret,
		fieldAttempts, rec.Attempts,
	)
	pipe.HSet(ctx, s.idKey(rec.ID),
		fieldPhone, rec.Phone,
		fieldVersion, rec.Version,
	)
}

func mapWriteErr(err error) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// GetVerification loads attempt version of phone.
func (s *RedisStore) GetVerification(ctx context.Context, phone string, version int64) (*Record, error) {
	if version <= 0 {
		return nil, ErrNotFound
	}
	fields, err := s.redis.HGetAll(ctx, s.rowKey(phone, version)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return decodeRecord(fields)
}

// GetVerificationByID resolves id through the index and loads the attempt.
func (s *RedisStore) GetVerificationByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	index, err := s.redis.HGetAll(ctx, s.idKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(index) == 0 {
		return nil, ErrNotFound
	}

	version, err := strconv.ParseInt(index[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode id index: %w", err)
	}
	return s.GetVerification(ctx, index[fieldPhone], version)
}

// IncrementAttempts adds one to the attempt counter.
func (s *RedisStore) IncrementAttempts(ctx context.Context, phone string, version int64) error {
	if version <= 0 {
		return ErrNotFound
	}
	res, err := incrementAttemptsLua.Run(ctx, s.redis, []string{s.rowKey(phone, version)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res < 0 {
		return ErrNotFound
	}
	return nil
}

// SetVerified stamps the verified time and counts the attempt in one write.
// A second call returns ErrAlreadyVerified and leaves the first stamp intact.
func (s *RedisStore) SetVerified(ctx context.Context, phone string, version int64) error {
	if version <= 0 {
		return ErrNotFound
	}
	stamp := s.now().UTC().UnixNano()
	res, err := setVerifiedLua.Run(ctx, s.redis, []string{s.rowKey(phone, version)}, stamp).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch res {
	case -1:
		return ErrNotFound
	case 0:
		return ErrAlreadyVerified
	}
	return nil
}

// GetRecentVerifications returns up to limit attempts, newest first.
func (s *RedisStore) GetRecentVerifications(ctx context.Context, phone string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	latest, err := s.GetLatestVersion(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	oldest := latest - int64(limit) + 1
	if oldest < 1 {
		oldest = 1
	}

	cmds := make([]*redis.MapStringStringCmd, 0, latest-oldest+1)
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for v := latest; v >= oldest; v-- {
			cmds = append(cmds, pipe.HGetAll(ctx, s.rowKey(phone, v)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]Record, 0, len(cmds))
	for _, cmd := range cmds {
		rec, err := decodeRecord(cmd.Val())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func decodeRecord(fields map[string]string) (*Record, error) {
	if len(fields) == 0 || fields[fieldID] == "" {
		return nil, ErrNotFound
	}

	id, err := uuid.Parse(fields[fieldID])
	if err != nil {
		return nil, fmt.Errorf("decode verification id: %w", err)
	}
	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode verification version: %w", err)
	}
	created, err := strconv.ParseInt(fields[fieldCreated], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode verification created: %w", err)
	}
	attempts, err := strconv.Atoi(fields[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("decode verification attempts: %w", err)
	}

	rec := &Record{
		ID:       id,
		Phone:    fields[fieldPhone],
		Version:  version,
		Created:  time.Unix(0, created).UTC(),
		Secret:   []byte(fields[fieldSecret]),
		Attempts: attempts,
	}

	if raw, ok := fields[fieldVerified]; ok && raw != "" {
		verified, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode verification verified: %w", err)
		}
		t := time.Unix(0, verified).UTC()
		rec.Verified = &t
	}

	return rec, nil
}
