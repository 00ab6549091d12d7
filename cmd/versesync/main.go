// Command versesync plays a recitation's timing against a simulated audio
// clock and reports verse transitions as they happen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/tilawah/versesync/internal/config"
	"github.com/tilawah/versesync/internal/eventmux"
	"github.com/tilawah/versesync/internal/fsutil"
	"github.com/tilawah/versesync/internal/highlight"
	"github.com/tilawah/versesync/internal/httputil"
	"github.com/tilawah/versesync/internal/journal"
	"github.com/tilawah/versesync/internal/monitoring"
	"github.com/tilawah/versesync/internal/overlay"
	"github.com/tilawah/versesync/internal/session"
	"github.com/tilawah/versesync/internal/timeutil"
	"github.com/tilawah/versesync/internal/timing"
	"github.com/tilawah/versesync/internal/timingsource"
	"github.com/tilawah/versesync/internal/tracker"
	"github.com/tilawah/versesync/internal/units"
	"github.com/tilawah/versesync/internal/version"
)

var (
	configPath     = flag.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	surah          = flag.Int("surah", 1, "Surah number")
	reciter        = flag.String("reciter", "alafasy", "Reciter id")
	timingFile     = flag.String("timing-file", "", "Read timing from this JSON file")
	timingDir      = flag.String("timing-dir", "", "Directory of <surah>_<reciter>.json timing files (overrides config)")
	timingEndpoint = flag.String("timing-endpoint", "", "Timing URL template with {surah} and {reciter} (overrides config)")
	gapPolicy      = flag.String("gap-policy", "", "Gap policy: suppress, hold or nearest (overrides config)")
	speed          = flag.Float64("speed", 1.0, "Playback speed factor")
	startAt        = flag.String("start", "0", "Start position (seconds, m:ss or duration)")
	journalPath    = flag.String("journal", "", "Record transitions to this sqlite file (overrides config)")
	listen         = flag.String("listen", "", "Serve /debug/ on this address (disabled when empty)")
	showVersion    = flag.Bool("version", false, "Print version and exit")
	verbose        = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *speed <= 0 {
		log.Fatal("-speed must be positive")
	}
	start, err := units.ParseClock(*startAt)
	if err != nil {
		log.Fatalf("Invalid -start: %v", err)
	}
	policy, err := tracker.ParseGapPolicy(cfg.GetGapPolicy())
	if err != nil {
		log.Fatalf("Invalid gap policy: %v", err)
	}
	src, err := sourceFor(cfg, *timingFile)
	if err != nil {
		log.Fatalf("No timing source: %v", err)
	}

	var (
		jdb    *journal.DB
		writer *journal.Writer
	)
	if path := cfg.GetJournalPath(); path != "" {
		jdb, err = journal.Open(path)
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer jdb.Close()
		writer = journal.NewWriter(jdb, cfg.GetJournalBuffer())
	}

	events := eventmux.New()
	defer events.Close()

	bands := highlight.BandsFromConfig(cfg)
	scfg := session.Config{
		Bands:     &bands,
		GapPolicy: policy,
		Surface:   overlay.NewMemorySurface(),
		OnEvent: func(ev session.Event) {
			logEvent(ev)
			if err := events.PublishJSON(wireEventFrom(ev)); err != nil {
				monitoring.Debugf("publish event: %v", err)
			}
		},
		OnVisibility: logVisibility,
	}
	if writer != nil {
		scfg.Recorder = writer
	}
	s := session.New(scfg)
	log.Printf("session %s, gap policy %s", s.ID(), policy)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, *listen, s, jdb, events)
		}()
	}

	key := timing.Key{Surah: *surah, Reciter: *reciter}
	gen, err := s.Load(ctx, src, key)
	if err != nil {
		// audio plays on without highlighting
		log.Printf("Highlighting unavailable: %v", err)
	} else {
		sum := s.Summary()
		log.Printf("loaded %d verses for %s, %s recited, mean verse %.2fs", sum.Verses, key, units.FormatClock(sum.End), sum.MeanVerse)
	}

	end := s.Snapshot().Total
	if end == 0 {
		end = start
	}
	p := &player{s: s, gen: gen, clock: timeutil.RealClock{}, start: start, end: end, speed: *speed}
	pos, err := p.run(ctx, cfg.GetTickInterval())
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("playback stopped: %v", err)
	}
	log.Printf("played %s", units.FormatProgress(pos, end))

	if err := s.Close(); err != nil {
		log.Printf("session close: %v", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Printf("journal close: %v", err)
		}
		stats := writer.Stats()
		log.Printf("journal: %d written, %d dropped, %d failed", stats.Written, stats.Dropped, stats.Failed)
		logDwell(jdb, s.ID())
	}

	stop()
	wg.Wait()
}

func loadConfig() (*config.Config, error) {
	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if *timingDir != "" {
		cfg.TimingDir = timingDir
	}
	if *timingEndpoint != "" {
		cfg.TimingEndpoint = timingEndpoint
	}
	if *gapPolicy != "" {
		cfg.GapPolicy = gapPolicy
	}
	if *journalPath != "" {
		cfg.JournalPath = journalPath
	}
	return cfg, cfg.Validate()
}

// sourceFor prefers an explicit file over the configured source.
func sourceFor(cfg *config.Config, file string) (timingsource.Source, error) {
	if file != "" {
		return &timingsource.PathSource{FS: fsutil.OSFileSystem{}, Path: file, MaxBytes: cfg.GetMaxPayloadBytes()}, nil
	}
	return timingsource.FromConfig(cfg)
}

func logEvent(ev session.Event) {
	switch ev.Kind {
	case tracker.EventEnter:
		log.Printf("[%s] verse %d, highlight %s", units.FormatClock(ev.Time), ev.Verse.Verse, ev.Display.Round(time.Millisecond))
	case tracker.EventExit:
		log.Printf("[%s] leaving verse %d", units.FormatClock(ev.Time), ev.Verse.Verse)
	}
}

func logVisibility(visible bool, in overlay.Instruction) {
	if visible {
		monitoring.Debugf("overlay %s verse %d on %s", in.Op, in.Verse, in.Page)
		return
	}
	monitoring.Debugf("overlay hidden")
}

func logDwell(jdb *journal.DB, sessionID string) {
	dwell, err := jdb.VerseDwell(sessionID)
	if err != nil {
		log.Printf("journal dwell: %v", err)
		return
	}
	for _, d := range dwell {
		log.Printf("verse %d: %d visit(s), mean %.2fs", d.Verse, d.Visits, d.Mean)
	}
}

// wireEvent is the JSON shape streamed on /debug/events.
type wireEvent struct {
	Generation uint64  `json:"generation"`
	Kind       string  `json:"kind"`
	Verse      int     `json:"verse"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Time       float64 `json:"time"`
	DisplayMs  int64   `json:"display_ms,omitempty"`
}

func wireEventFrom(ev session.Event) wireEvent {
	return wireEvent{
		Generation: ev.Generation,
		Kind:       string(ev.Kind),
		Verse:      ev.Verse.Verse,
		Start:      ev.Verse.Start,
		End:        ev.Verse.End,
		Time:       ev.Time,
		DisplayMs:  ev.Display.Milliseconds(),
	}
}

func serveDebug(ctx context.Context, addr string, s *session.Session, jdb *journal.DB, events *eventmux.Mux) {
	mux := http.NewServeMux()
	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	debug.KV("Session", s.ID())
	debug.Handle("session", "Current session snapshot (JSON)", httputil.GetOnly(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, s.Snapshot())
	}))
	debug.Handle("session/summary", "Loaded timing statistics (JSON)", httputil.GetOnly(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, s.Summary())
	}))
	events.AttachAdminRoutes(debug)
	if jdb != nil {
		if err := jdb.AttachAdminRoutes(debug); err != nil {
			log.Printf("journal admin routes: %v", err)
		}
	}

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server: %v", err)
			os.Exit(1)
		}
	}()
	log.Printf("debug pages on http://%s/debug/", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("debug server shutdown error: %v", err)
	}
}
