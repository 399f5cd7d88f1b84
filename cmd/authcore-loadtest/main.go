// authcore-loadtest measures session ledger throughput: a lookup phase
// (what every refresh does first) and a rotation phase.
//
//	go run ./cmd/authcore-loadtest -accounts 10000 -sessions 3 -ops 200000
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

	"github.com/MrEthical07/authcore/session"
)

// slot is one seeded session; mu serialises rotations of the same token.
type slot struct {
	accountID string
	digest    string
	mu        sync.Mutex
}

func main() {
	var (
		accounts    = flag.Int("accounts", 10000, "number of accounts to seed")
		perAccount  = flag.Int("sessions", 3, "sessions per account")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (lookup + rotate)")
		redisURL    = flag.String("redis-url", "", "redis URL; if empty, REDIS_URL env or miniredis is used")
		prefix      = flag.String("prefix", "acs-load", "ledger key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *perAccount <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, sessions, concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	client, cleanup, err := connect(*redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ledger := session.NewLedger(client, *prefix, nil)

	slots := make([]slot, 0, *accounts**perAccount)
	fmt.Printf("seeding %d sessions...\n", cap(slots))
	startSeed := time.Now()
	expires := time.Now().Add(24 * time.Hour)
	for a := 0; a < *accounts; a++ {
		accountID := "acc-" + strconv.Itoa(a)
		for s := 0; s < *perAccount; s++ {
			digest := digestFor(accountID, s)
			err := ledger.Add(ctx, &session.Session{
				TokenDigest: digest,
				AccountID:   accountID,
				CreatedAt:   time.Now(),
				ExpiresAt:   expires,
				IPAddress:   "10.0.0.1",
				UserAgent:   "authcore-loadtest",
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "add failed: %v\n", err)
				os.Exit(1)
			}
			slots = append(slots, slot{accountID: accountID, digest: digest})
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookup := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, i int) error {
		s := &slots[r.Intn(len(slots))]
		s.mu.Lock()
		digest := s.digest
		s.mu.Unlock()
		_, err := ledger.Lookup(ctx, s.accountID, digest)
		return err
	})
	rotate := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, i int) error {
		s := &slots[r.Intn(len(slots))]
		s.mu.Lock()
		defer s.mu.Unlock()
		next := digestFor(s.digest, i)
		err := ledger.Rotate(ctx, s.accountID, s.digest, &session.Session{
			TokenDigest: next,
			CreatedAt:   time.Now(),
			ExpiresAt:   expires,
		})
		if err == nil {
			s.digest = next
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("lookup", lookup)
	printStats("rotate", rotate)
}

func connect(url string) (redis.UniversalClient, func(), error) {
	if url == "" {
		url = os.Getenv("REDIS_URL")
	}
	if url == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	fmt.Printf("using redis at %s\n", opts.Addr)
	return client, func() { _ = client.Close() }, nil
}

// runPhase spreads ops calls of op over concurrency workers.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
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
	return computeStats(time.Since(start), latencies, failures)
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
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func digestFor(seed string, n int) string {
	sum := sha256.Sum256([]byte(seed + "/" + strconv.Itoa(n)))
	return hex.EncodeToString(sum[:])
}
