package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/ptree"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/render"
)

type profile struct {
	Name          string
	Pipes         int
	Duration      time.Duration
	RPS           float64
	ListSize      int
	PayloadBytes  int
	MaxTokens     int
	MaxProcs      int
	MemLimitBytes int64
}

const gib = int64(1024 * 1024 * 1024)

var profiles = map[string]profile{
	"fast": {
		Name:         "fast",
		Pipes:        4,
		Duration:     5 * time.Second,
		RPS:          50,
		ListSize:     20,
		PayloadBytes: 24,
		MaxTokens:    512,
	},
	"standard": {
		Name:         "standard",
		Pipes:        16,
		Duration:     20 * time.Second,
		RPS:          100,
		ListSize:     100,
		PayloadBytes: 48,
		MaxTokens:    2048,
	},
	"stress": {
		Name:          "stress",
		Pipes:         64,
		Duration:      60 * time.Second,
		RPS:           200,
		ListSize:      500,
		PayloadBytes:  96,
		MaxTokens:     8192,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

type benchConfig struct {
	profile
	JSONOutput string
}

type benchCounters struct {
	pumps      atomic.Uint64
	pumpErrors atomic.Uint64
	delivered  atomic.Uint64
	passes     atomic.Uint64
	passErrors atomic.Uint64
	renders    atomic.Uint64
	elided     atomic.Uint64
}

// samples collects latencies from concurrent producers.
type samples struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *samples) add(d time.Duration) {
	s.mu.Lock()
	s.d = append(s.d, d)
	s.mu.Unlock()
}

func (s *samples) sorted() []time.Duration {
	s.mu.Lock()
	out := append([]time.Duration(nil), s.d...)
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// counter observes delivered values.
type counter struct {
	c *benchCounters
}

func (o counter) ObserveReconcile(reconcile.ReconcileStats) {}

func (o counter) ObservePump(stats reconcile.PumpStats) {
	o.c.delivered.Add(uint64(stats.Delivered))
}

func main() {
	log.SetFlags(0)

	cfg, err := parseConfig()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.MemLimitBytes > 0 {
		debug.SetMemoryLimit(cfg.MemLimitBytes)
	}

	var counters benchCounters
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := reconcile.New(loadTree(cfg.ListSize),
		reconcile.WithLogger(logger),
		reconcile.WithObserver(counter{c: &counters}),
	)
	renderer := render.NewRenderer(render.RendererConfig{
		MaxTokens: cfg.MaxTokens,
		Separator: "\n",
		Logger:    logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	if _, err := rec.Reconcile(ctx); err != nil {
		log.Fatalf("first pass: %v", err)
	}

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	var pumpLat, passLat samples
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Pipes; i++ {
		pipe := rec.CreatePipe(fmt.Sprintf("bench-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPipe(ctx, pipe, cfg, &counters, &pumpLat)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			t0 := time.Now()
			prompt, err := renderer.RenderPass(ctx, rec)
			if err != nil {
				if ctx.Err() == nil {
					counters.passErrors.Add(1)
				}
				continue
			}
			passLat.add(time.Since(t0))
			counters.passes.Add(1)
			counters.renders.Add(1)
			counters.elided.Add(uint64(len(prompt.Elided)))
		}
	}()

	wg.Wait()
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	report := buildReport(cfg, elapsed, pumpLat.sorted(), passLat.sorted(), &counters, before, after, beforeMetrics, afterMetrics)
	writeSummary(os.Stderr, report)
	if err := writeJSON(cfg.JSONOutput, report); err != nil {
		log.Fatalf("write json: %v", err)
	}
}

// runPipe pumps payloads at the configured rate until ctx is done.
func runPipe(ctx context.Context, pipe *reconcile.Pipe, cfg benchConfig, c *benchCounters, lat *samples) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.RPS))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		seq++
		payload := makePayload(pipe.Name(), seq, cfg.PayloadBytes)
		t0 := time.Now()
		if err := pipe.Pump(ctx, payload); err != nil {
			if ctx.Err() == nil {
				c.pumpErrors.Add(1)
			}
			continue
		}
		lat.add(time.Since(t0))
		c.pumps.Add(1)
	}
}

func makePayload(pipe string, seq uint64, size int) string {
	prefix := pipe + ":" + strconv.FormatUint(seq, 10) + ":"
	if len(prefix) >= size {
		return prefix
	}
	return prefix + strings.Repeat("x", size-len(prefix))
}

// loadTree builds listSize keyed subscribers. Each keeps its last eight
// payloads and weights them by position so elision has work to do.
func loadTree(listSize int) *ptree.Element {
	item := ptree.Define("Item", func(s *hooks.Store, props ptree.Props) *ptree.Element {
		idx, _ := props["index"].(int)
		lines, setLines := hooks.UseState[[]string](s)
		hooks.UseData(s, func(_ context.Context, v string) error {
			if fnv1a32(v)%uint32(listSize) != uint32(idx) {
				return nil
			}
			setLines.Update(func(prev []string) []string {
				next := append(append([]string(nil), prev...), v)
				if len(next) > 8 {
					next = next[len(next)-8:]
				}
				return next
			})
			return nil
		})
		return ptree.Chunk(ptree.Range(lines, func(l string, i int) *ptree.Element {
			return ptree.Text(l)
		}))
	})

	items := make([]*ptree.Element, listSize)
	for i := range items {
		items[i] = ptree.Create(item, ptree.Props{
			"key":    i,
			"index":  i,
			"weight": float64(i+1) / float64(listSize),
		})
	}
	return ptree.Fragment(ptree.Text("benchmark"), items)
}

func parseConfig() (benchConfig, error) {
	profileFlag := flag.String("profile", "standard", "profile: fast|standard|stress")
	pipesFlag := flag.Int("pipes", -1, "number of concurrent pipes")
	durationFlag := flag.String("duration", "", "benchmark duration, e.g. 30s")
	rpsFlag := flag.Float64("rps", -1, "target pumps/sec per pipe")
	listFlag := flag.Int("list", -1, "number of subscriber components")
	payloadFlag := flag.Int("payload-bytes", -1, "bytes per pumped value")
	tokensFlag := flag.Int("max-tokens", -1, "render token budget (0 for unlimited)")
	maxProcsFlag := flag.Int("max-procs", -1, "GOMAXPROCS cap (0 to leave unchanged)")
	memLimitFlag := flag.String("mem-limit", "", "GOMEMLIMIT in bytes, or with a KiB/MiB/GiB suffix")
	jsonFlag := flag.String("json", "-", "JSON output path ('-' for stdout)")
	flag.Parse()

	name := strings.ToLower(strings.TrimSpace(*profileFlag))
	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}
	cfg := benchConfig{profile: base, JSONOutput: strings.TrimSpace(*jsonFlag)}

	if *pipesFlag != -1 {
		cfg.Pipes = *pipesFlag
	}
	if *durationFlag != "" {
		d, err := time.ParseDuration(*durationFlag)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid -duration: %w", err)
		}
		cfg.Duration = d
	}
	if *rpsFlag != -1 {
		cfg.RPS = *rpsFlag
	}
	if *listFlag != -1 {
		cfg.ListSize = *listFlag
	}
	if *payloadFlag != -1 {
		cfg.PayloadBytes = *payloadFlag
	}
	if *tokensFlag != -1 {
		cfg.MaxTokens = *tokensFlag
	}
	if *maxProcsFlag != -1 {
		cfg.MaxProcs = *maxProcsFlag
	}
	if *memLimitFlag != "" {
		limit, err := parseBytes(*memLimitFlag)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid -mem-limit: %w", err)
		}
		cfg.MemLimitBytes = limit
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	switch {
	case cfg.Pipes <= 0:
		return benchConfig{}, errors.New("-pipes must be > 0")
	case cfg.Duration <= 0:
		return benchConfig{}, errors.New("-duration must be > 0")
	case cfg.RPS <= 0:
		return benchConfig{}, errors.New("-rps must be > 0")
	case cfg.ListSize <= 0:
		return benchConfig{}, errors.New("-list must be > 0")
	case cfg.PayloadBytes <= 0:
		return benchConfig{}, errors.New("-payload-bytes must be > 0")
	case cfg.MaxTokens < 0:
		return benchConfig{}, errors.New("-max-tokens must be >= 0")
	case cfg.MaxProcs < 0:
		return benchConfig{}, errors.New("-max-procs must be >= 0")
	}
	return cfg, nil
}

func parseBytes(input string) (int64, error) {
	s := strings.TrimSpace(input)
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"KiB", 1 << 10},
		{"MiB", 1 << 20},
		{"GiB", 1 << 30},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSuffix(s, u.suffix)
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}
	return int64(n * float64(mult)), nil
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds float64
	cpuGCSeconds    float64
	heapAllocsBytes uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:bytes"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:bytes":
			out.heapAllocsBytes = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type benchReport struct {
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	PumpMS     latencyInfo    `json:"pump_ms"`
	PassMS     latencyInfo    `json:"pass_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
	Errors     errorInfo      `json:"errors"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Commit    string `json:"commit,omitempty"`
}

type workloadInfo struct {
	Profile      string  `json:"profile"`
	Pipes        int     `json:"pipes"`
	DurationMS   int64   `json:"duration_ms"`
	RPSPerPipe   float64 `json:"rps_per_pipe"`
	ListSize     int     `json:"list_size"`
	PayloadBytes int     `json:"payload_bytes"`
	MaxTokens    int     `json:"max_tokens"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	Pumps         uint64  `json:"pumps"`
	PumpsPerSec   float64 `json:"pumps_per_sec"`
	Deliveries    uint64  `json:"deliveries"`
	Passes        uint64  `json:"passes"`
	PassesPerSec  float64 `json:"passes_per_sec"`
	ElidedPerPass float64 `json:"elided_per_pass"`
}

type gcInfo struct {
	AllocMB       float64 `json:"alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
	PauseTotalMS  float64 `json:"pause_total_ms"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
}

type errorInfo struct {
	PumpErrors uint64 `json:"pump_errors"`
	PassErrors uint64 `json:"pass_errors"`
}

func latency(sorted []time.Duration) latencyInfo {
	if len(sorted) == 0 {
		return latencyInfo{}
	}
	return latencyInfo{
		Min: ms(sorted[0]),
		P50: ms(percentile(sorted, 0.50)),
		P95: ms(percentile(sorted, 0.95)),
		P99: ms(percentile(sorted, 0.99)),
		Max: ms(sorted[len(sorted)-1]),
	}
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	pumpLat, passLat []time.Duration,
	c *benchCounters,
	before, after runtime.MemStats,
	beforeMetrics, afterMetrics runtimeMetricsSnapshot,
) benchReport {
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	passes := c.passes.Load()
	var elidedPerPass float64
	if passes > 0 {
		elidedPerPass = float64(c.elided.Load()) / float64(passes)
	}

	return benchReport{
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			Commit:    gitCommit(),
		},
		Workload: workloadInfo{
			Profile:      cfg.Name,
			Pipes:        cfg.Pipes,
			DurationMS:   cfg.Duration.Milliseconds(),
			RPSPerPipe:   cfg.RPS,
			ListSize:     cfg.ListSize,
			PayloadBytes: cfg.PayloadBytes,
			MaxTokens:    cfg.MaxTokens,
		},
		PumpMS: latency(pumpLat),
		PassMS: latency(passLat),
		Throughput: throughputInfo{
			Pumps:         c.pumps.Load(),
			PumpsPerSec:   float64(c.pumps.Load()) / secs,
			Deliveries:    c.delivered.Load(),
			Passes:        passes,
			PassesPerSec:  float64(passes) / secs,
			ElidedPerPass: elidedPerPass,
		},
		GC: gcInfo{
			AllocMB:       float64(afterMetrics.heapAllocsBytes-beforeMetrics.heapAllocsBytes) / (1024 * 1024),
			NumGC:         after.NumGC - before.NumGC,
			PauseTotalMS:  float64(after.PauseTotalNs-before.PauseTotalNs) / float64(time.Millisecond),
			GCCPUFraction: cpuFraction(afterMetrics, beforeMetrics),
		},
		Errors: errorInfo{
			PumpErrors: c.pumpErrors.Load(),
			PassErrors: c.passErrors.Load(),
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== vprompt reconcile benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Pipes: %d at %.1f pumps/s each\n", report.Workload.Pipes, report.Workload.RPSPerPipe)
	fmt.Fprintf(w, "Components: %d\n", report.Workload.ListSize)
	fmt.Fprintf(w, "Token budget: %d\n", report.Workload.MaxTokens)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Pumps: %d (%.1f/s), deliveries: %d\n", report.Throughput.Pumps, report.Throughput.PumpsPerSec, report.Throughput.Deliveries)
	fmt.Fprintf(w, "Passes: %d (%.1f/s), %.1f leaves elided per pass\n", report.Throughput.Passes, report.Throughput.PassesPerSec, report.Throughput.ElidedPerPass)
	fmt.Fprintf(w, "Errors: %d pump, %d pass\n", report.Errors.PumpErrors, report.Errors.PassErrors)
	fmt.Fprintln(w)

	for _, l := range []struct {
		name string
		info latencyInfo
	}{
		{"Pump", report.PumpMS},
		{"Reconcile+render", report.PassMS},
	} {
		if l.info.Max == 0 {
			fmt.Fprintf(w, "%s: no samples\n", l.name)
			continue
		}
		fmt.Fprintf(w, "%s latency: p50 %.2f ms, p95 %.2f ms, p99 %.2f ms, max %.2f ms\n",
			l.name, l.info.P50, l.info.P95, l.info.P99, l.info.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:    %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  num_gc:   %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause: %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_cpu:   %.2f%%\n", report.GC.GCCPUFraction*100)
}

func writeJSON(path string, report benchReport) error {
	out := io.Writer(os.Stdout)
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func gitCommit() string {
	if val := strings.TrimSpace(os.Getenv("GIT_COMMIT")); val != "" {
		return val
	}
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func fnv1a32(s string) uint32 {
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}
