package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goWA "github.com/MrEthical07/goWA"
	"github.com/MrEthical07/goWA/client/memory"
	"github.com/MrEthical07/goWA/session"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 1000, "number of sessions to create")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (send + broadcast + status)")
		recipients  = flag.Int("recipients", 10, "recipients per broadcast")
		sendDelay   = flag.Duration("send-delay", 0, "simulated per-message client latency")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		auditStream = flag.String("audit-stream", "wagw:loadtest:audit", "redis stream receiving audit events; empty disables audit")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *recipients <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops, and recipients must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goWA.DefaultConfig()
	cfg.Dispatch.MaxBroadcastRecipients = *recipients
	cfg.Audit.Enabled = *auditStream != ""
	cfg.Audit.DropIfFull = true
	cfg.Metrics.EnableLatencyHistograms = true

	builder := goWA.New().
		WithConfig(cfg).
		WithRedis(client).
		WithClientFactory(memory.NewFactory(memory.Options{
			AutoLogin:    true,
			RequireReady: true,
			SendDelay:    *sendDelay,
		}))
	if *auditStream != "" {
		builder = builder.WithAuditSink(goWA.NewRedisStreamSink(client, *auditStream, 100000))
	}
	engine, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ids := make([]string, *sessions)
	for i := range ids {
		ids[i] = "lt-" + strconv.Itoa(i)
	}

	fmt.Printf("creating %d sessions...\n", *sessions)
	createStats := runPhase(len(ids), *concurrency, func(_ *rand.Rand, i int) error {
		_, err := engine.CreateSession(ctx, ids[i])
		return err
	})
	if err := waitReady(engine, len(ids), 30*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sendStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		_, err := engine.SendText(ctx, ids[r.Intn(len(ids))], phoneFor(i), "load test")
		return err
	})

	batch := make([]string, *recipients)
	for i := range batch {
		batch[i] = phoneFor(i)
	}
	broadcastStats := runPhase(*ops / *recipients, *concurrency, func(r *rand.Rand, _ int) error {
		results, err := engine.SendBroadcast(ctx, ids[r.Intn(len(ids))], batch, "load test")
		if err != nil {
			return err
		}
		for _, res := range results {
			if !res.Success {
				return res.Err
			}
		}
		return nil
	})

	statusStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.SessionStatus(ids[r.Intn(len(ids))])
		return err
	})

	fmt.Println("---- results ----")
	printStats("create", createStats)
	printStats("send", sendStats)
	printStats("broadcast", broadcastStats)
	printStats("status", statusStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: send_success=%d send_failure=%d send_timeout=%d audit_dropped=%d\n",
		snap.Counters[goWA.MetricSendSuccess],
		snap.Counters[goWA.MetricSendFailure],
		snap.Counters[goWA.MetricSendTimeout],
		engine.AuditDropped(),
	)
}

func waitReady(engine *goWA.Engine, want int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ready := 0
		for _, st := range engine.ListStatuses() {
			if st.State == session.StateReady {
				ready++
			}
		}
		if ready >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("only %d/%d sessions ready after %s", ready, want, timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func phoneFor(i int) string {
	return fmt.Sprintf("55119%08d", i%100000000)
}

// runPhase runs op ops times across concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-9s ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name+":",
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
