// Command senseedge runs the device model against a scripted vibration
// scenario, records classification and alarm events to SQLite, and
// serves the live device state over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/senseedge/internal/api"
	"github.com/banshee-data/senseedge/internal/config"
	"github.com/banshee-data/senseedge/internal/db"
	"github.com/banshee-data/senseedge/internal/params"
	"github.com/banshee-data/senseedge/internal/report"
	"github.com/banshee-data/senseedge/internal/rtl/core"
	"github.com/banshee-data/senseedge/internal/scenario"
	"github.com/banshee-data/senseedge/internal/sim"
)

var (
	listen        = flag.String("listen", "", "Listen address (overrides config)")
	configPath    = flag.String("config", config.DefaultConfigPath, "Tuning config JSON file")
	dbPath        = flag.String("db", "", "Database path (overrides config)")
	paramsPath    = flag.String("params", "", "Parameter JSON file (overrides config)")
	scenarioPath  = flag.String("scenario", "", "Scenario YAML file (overrides config)")
	migrationsDir = flag.String("migrations", "internal/db/migrations", "Database migrations directory")
	echoReports   = flag.Bool("echo", false, "Log each classification as a device status line")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	addr := cfg.GetListenAddr()
	if *listen != "" {
		addr = *listen
	}

	path := cfg.GetParamsPath()
	if *paramsPath != "" {
		path = *paramsPath
	}
	set, err := params.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("failed to load params: %v", err)
		}
		// no trained model yet; passthrough keeps the pipeline observable
		log.Printf("params file %q not found, using passthrough parameters", path)
		set = params.Passthrough()
	}

	path = cfg.GetScenarioPath()
	if *scenarioPath != "" {
		path = *scenarioPath
	}
	sc, err := scenario.Load(path)
	if err != nil {
		log.Fatalf("failed to load scenario: %v", err)
	}
	log.Printf("loaded scenario %q: %d segments, %d batches", sc.Name, len(sc.Segments), sc.TotalBatches())

	path = cfg.GetDatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}
	database, err := db.Open(path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	runID, err := database.NewRun(sc.Name)
	if err != nil {
		log.Fatalf("failed to create run: %v", err)
	}
	log.Printf("recording run %s", runID)

	runner := sim.New(sc.Stream())
	if err := runner.Boot(cfg, set.Flatten()); err != nil {
		log.Fatalf("failed to boot device: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run loop: advance the device clock and record completed events
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := runner.Run(ctx, cfg.GetTicksPerSlice(), cfg.GetSliceInterval(), func(events []core.Classification) {
			for _, e := range events {
				if *echoReports {
					log.Print(report.Encode(report.Report{
						ClassID:    e.ClassID,
						Confidence: e.Confidence,
						Alarm:      e.AlarmActive,
					}))
				}
				if err := database.RecordClassification(db.Classification{
					RunID:       runID,
					Tick:        e.Tick,
					ClassID:     e.ClassID,
					Confidence:  e.Confidence,
					AlarmActive: e.AlarmActive,
				}); err != nil {
					log.Printf("failed to record classification: %v", err)
				}
				if e.AlarmRaised {
					log.Printf("ALARM raised at tick %d: class=%s conf=%d",
						e.Tick, report.ClassName(e.ClassID), e.Confidence)
					if err := database.RecordAlarm(db.AlarmEvent{
						RunID:      runID,
						Tick:       e.Tick,
						ClassID:    e.ClassID,
						Confidence: e.Confidence,
					}); err != nil {
						log.Printf("failed to record alarm: %v", err)
					}
				}
			}
		})
		if err != nil && err != context.Canceled {
			log.Printf("run loop failed: %v", err)
		}
		log.Print("run loop terminated")
	}()

	// periodic status summary
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.GetSnapshotInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := runner.Snapshot()
				log.Printf("tick=%d class=%s conf=%d alarm=%v batches=%d dropped=%d",
					snap.Tick, report.ClassName(snap.ClassID), snap.Confidence,
					snap.Alarm, snap.Batches, snap.Dropped)
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		apiMux := api.NewServer(runner, database, runID).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		go func() {
			log.Printf("listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if err := database.FinishRun(runID); err != nil {
		log.Printf("failed to finish run: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
