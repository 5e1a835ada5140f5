// Command traffic_simulator drives ad requests through the bridge with a
// configurable share of partner bids and reports the outcome mix.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/observability"
	"github.com/patrickwarner/openbidbridge/internal/targeting"
)

const statsInterval = 5 * time.Second

var (
	countSent      uint64
	countRateLimit uint64
	countErrors    uint64
)

type outcomeCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounts) add(outcome string) {
	o.mu.Lock()
	o.counts[outcome]++
	o.mu.Unlock()
}

func (o *outcomeCounts) snapshot() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]int, len(o.counts))
	for k, v := range o.counts {
		out[k] = v
	}
	return out
}

type simulator struct {
	server   string
	slots    []string
	bidRate  float64
	minPrice float64
	maxPrice float64
	client   *http.Client
	logger   *zap.Logger
	outcomes *outcomeCounts
}

// newBid returns nil when the partner sits the request out.
func (s *simulator) newBid(r *rand.Rand, n int) *models.Bid {
	if r.Float64() >= s.bidRate {
		return nil
	}
	price := s.minPrice + r.Float64()*(s.maxPrice-s.minPrice)
	return &models.Bid{
		ID:      fmt.Sprintf("sim-%d", n),
		Partner: "simulator",
		Price:   price,
		Targeting: targeting.New(
			targeting.Pair{Key: "pwtecp", Value: fmt.Sprintf("%.2f", price)},
			targeting.Pair{Key: "pwtbst", Value: "1"},
			targeting.Pair{Key: "pwtpid", Value: "simulator"},
		),
	}
}

func (s *simulator) send(ctx context.Context, slot string, bid *models.Bid) {
	atomic.AddUint64(&countSent, 1)

	var body io.Reader = http.NoBody
	if bid != nil {
		blob, err := json.Marshal(bid)
		if err != nil {
			atomic.AddUint64(&countErrors, 1)
			s.logger.Error("marshal error", zap.Error(err))
			return
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.server+"/slots/"+slot+"/ad", body)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		s.logger.Error("request build error", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		s.logger.Error("ad request error", zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		s.logger.Error("read body error", zap.Error(err))
		return
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		atomic.AddUint64(&countRateLimit, 1)
		return
	default:
		atomic.AddUint64(&countErrors, 1)
		s.logger.Error("unexpected status",
			zap.String("slot", slot),
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(blob))))
		return
	}

	var decision struct {
		RequestID string `json:"request_id"`
		Outcome   string `json:"outcome"`
	}
	if err := json.Unmarshal(blob, &decision); err != nil {
		atomic.AddUint64(&countErrors, 1)
		s.logger.Error("decode error", zap.Error(err))
		return
	}
	s.outcomes.add(decision.Outcome)
	s.logger.Debug("decision",
		zap.String("slot", slot),
		zap.String("request_id", decision.RequestID),
		zap.String("outcome", decision.Outcome),
		zap.Bool("bid", bid != nil))
}

func (s *simulator) printStats() {
	counts := s.outcomes.snapshot()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := []zap.Field{
		zap.Uint64("sent", atomic.LoadUint64(&countSent)),
		zap.Uint64("rate_limited", atomic.LoadUint64(&countRateLimit)),
		zap.Uint64("errors", atomic.LoadUint64(&countErrors)),
	}
	for _, k := range keys {
		fields = append(fields, zap.Int(k, counts[k]))
	}
	s.logger.Info("traffic stats", fields...)
}

func main() {
	var (
		server   string
		slotCSV  string
		totalReq int
		conc     int
		rate     float64
		bidRate  float64
		minPrice float64
		maxPrice float64
		debug    bool
		stats    bool
	)
	flag.StringVar(&server, "server", "http://localhost:8788", "bridge base URL")
	flag.StringVar(&slotCSV, "slots", "home", "comma-separated slot IDs")
	flag.IntVar(&totalReq, "requests", 200, "total requests to send")
	flag.IntVar(&conc, "concurrency", 4, "concurrent requests")
	flag.Float64Var(&rate, "rate", 0, "requests per second (0 for unlimited)")
	flag.Float64Var(&bidRate, "bid-rate", 0.7, "probability the partner bids on a request")
	flag.Float64Var(&minPrice, "min-price", 0.5, "lowest simulated bid price")
	flag.Float64Var(&maxPrice, "max-price", 5, "highest simulated bid price")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, err := observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var slots []string
	for _, s := range strings.Split(slotCSV, ",") {
		if s = strings.TrimSpace(s); s != "" {
			slots = append(slots, s)
		}
	}
	if len(slots) == 0 {
		logger.Fatal("no slots given")
	}

	sim := &simulator{
		server:   strings.TrimRight(server, "/"),
		slots:    slots,
		bidRate:  bidRate,
		minPrice: minPrice,
		maxPrice: maxPrice,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
		outcomes: &outcomeCounts{counts: make(map[string]int)},
	}

	done := make(chan struct{})
	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					sim.printStats()
				case <-done:
					return
				}
			}
		}()
	}

	var interval time.Duration
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	sem := make(chan struct{}, conc)
	var wg sync.WaitGroup
	start := time.Now()
	next := start

	for i := 0; i < totalReq; i++ {
		if interval > 0 {
			if now := time.Now(); now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(interval)
		}
		slot := slots[r.Intn(len(slots))]
		bid := sim.newBid(r, i)

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			sim.send(context.Background(), slot, bid)
		}()
	}
	wg.Wait()
	close(done)

	sim.printStats()
	logger.Info("traffic complete", zap.Duration("elapsed", time.Since(start)))
}
