package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jakejscott/phoneverify"
)

// codeSender keeps the last code sent to each phone.
type codeSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *codeSender) Send(_ context.Context, phone, message string) (string, error) {
	code := message[strings.LastIndexByte(message, ' ')+1:]
	s.mu.Lock()
	s.codes[phone] = code
	s.mu.Unlock()
	return uuid.NewString(), nil
}

func (s *codeSender) code(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[phone]
}

func main() {
	var (
		phones      = flag.Int("phones", 2000, "number of distinct phones")
		starts      = flag.Int("starts", 8, "concurrent Start calls per phone")
		checks      = flag.Int("checks", 8, "concurrent correct-code Check calls per phone")
		concurrency = flag.Int("concurrency", 128, "phones processed in parallel")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "pvload", "key prefix")
	)
	flag.Parse()

	if *phones <= 0 || *starts <= 0 || *checks <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "phones, starts, checks and concurrency must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var client redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg := phoneverify.DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true

	sender := &codeSender{codes: map[string]string{}}
	engine, err := phoneverify.New().
		WithConfig(cfg).
		WithRedis(client, *prefix).
		WithSender(sender).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	run := &loadRun{engine: engine, sender: sender, starts: *starts, checks: *checks}

	ctx := context.Background()
	begin := time.Now()
	if err := run.forEachPhone(ctx, *phones, *concurrency); err != nil {
		fmt.Fprintf(os.Stderr, "invariant violated: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	fmt.Printf("phones=%d total=%s\n", *phones, time.Since(begin).Round(time.Millisecond))
	printStats("start", computeStats(run.startLatencies.samples(), run.startFailures.Load()))
	printStats("check", computeStats(run.checkLatencies.samples(), run.checkFailures.Load()))

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: new_versions=%d conflicts=%d verified=%d already_verified=%d\n",
		snap.Counters[phoneverify.MetricStartNewVersion],
		snap.Counters[phoneverify.MetricStartConflict],
		snap.Counters[phoneverify.MetricCheckSuccess],
		snap.Counters[phoneverify.MetricCheckAlreadyVerified],
	)
}

type latencies struct {
	mu sync.Mutex
	d  []time.Duration
}

func (l *latencies) add(d time.Duration) {
	l.mu.Lock()
	l.d = append(l.d, d)
	l.mu.Unlock()
}

func (l *latencies) samples() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Duration(nil), l.d...)
}

type loadRun struct {
	engine *phoneverify.Engine
	sender *codeSender
	starts int
	checks int

	startLatencies latencies
	checkLatencies latencies
	startFailures  atomic.Int64
	checkFailures  atomic.Int64
}

func (r *loadRun) forEachPhone(ctx context.Context, phones, concurrency int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < phones; i++ {
		phone := fmt.Sprintf("+6421%07d", i)
		g.Go(func() error { return r.phone(gctx, phone) })
	}
	return g.Wait()
}

// phone races r.starts Start calls, requires they agree on one id, then races
// r.checks correct codes and requires exactly one verified transition.
func (r *loadRun) phone(ctx context.Context, phone string) error {
	ids := make([]uuid.UUID, r.starts)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t0 := time.Now()
			id, err := r.engine.Start(ctx, phone)
			r.startLatencies.add(time.Since(t0))
			if err != nil {
				r.startFailures.Add(1)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	id := uuid.Nil
	for _, got := range ids {
		if got == uuid.Nil {
			continue
		}
		if id != uuid.Nil && got != id {
			return fmt.Errorf("%s: concurrent starts returned %s and %s", phone, id, got)
		}
		id = got
	}
	if id == uuid.Nil {
		return fmt.Errorf("%s: every start failed", phone)
	}

	code := r.sender.code(phone)
	var verified, already atomic.Int64
	for i := 0; i < r.checks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t0 := time.Now()
			err := r.engine.Check(ctx, id, code)
			r.checkLatencies.add(time.Since(t0))
			switch {
			case err == nil:
				verified.Add(1)
			case errors.Is(err, phoneverify.ErrAlreadyVerified):
				already.Add(1)
			default:
				r.checkFailures.Add(1)
			}
		}()
	}
	wg.Wait()

	if verified.Load() != 1 {
		return fmt.Errorf("%s: %d checks verified, want exactly 1", phone, verified.Load())
	}
	return nil
}

type phaseStats struct {
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

func computeStats(samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
