// Command senseedge-monitor attaches to a real device's debug UART,
// pushes the alarm configuration, and records the status lines the
// device streams back. In dev mode it replays canned fixture lines
// instead of opening a serial port.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/senseedge/internal/config"
	"github.com/banshee-data/senseedge/internal/db"
	"github.com/banshee-data/senseedge/internal/monitoring"
	"github.com/banshee-data/senseedge/internal/report"
	"github.com/banshee-data/senseedge/internal/serialmux"
)

var (
	devMode       = flag.Bool("dev", false, "Replay fixture lines instead of opening a serial port")
	devicePath    = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baudRate      = flag.Int("baud", 115200, "Serial baud rate")
	fixturesPath  = flag.String("fixtures", "fixtures.txt", "Fixture lines for dev mode")
	configPath    = flag.String("config", config.DefaultConfigPath, "Tuning config JSON file")
	dbPath        = flag.String("db", "", "Database path (overrides config)")
	migrationsDir = flag.String("migrations", "internal/db/migrations", "Database migrations directory")
	stallTimeout  = flag.Duration("stall-timeout", 10*time.Second, "Warn when no report arrives within this window")
)

// defaultFixtures is used in dev mode when no fixtures file exists: a
// healthy stretch, a debounced fault onset, and the latched alarm.
func defaultFixtures() []byte {
	lines := []report.Report{
		{ClassID: 0, Confidence: 230},
		{ClassID: 0, Confidence: 225},
		{ClassID: 2, Confidence: 190},
		{ClassID: 2, Confidence: 205},
		{ClassID: 2, Confidence: 210, Alarm: true},
		{ClassID: 2, Confidence: 200, Alarm: true},
	}
	var b strings.Builder
	for _, r := range lines {
		b.WriteString(report.Encode(r))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *devMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// route the shared package loggers through zap as well
	monitoring.SetLogger(sugar.Infof)

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		sugar.Fatalf("failed to load config: %v", err)
	}

	var m serialmux.SerialMuxInterface
	source := *devicePath
	if *devMode {
		data, err := os.ReadFile(*fixturesPath)
		if err != nil {
			sugar.Infof("fixtures file %q not found, using built-in lines", *fixturesPath)
			data = defaultFixtures()
		}
		m = serialmux.NewMockSerialMux(data, 500*time.Millisecond)
		source = "mock:" + *fixturesPath
	} else {
		m, err = serialmux.NewRealSerialMux(*devicePath, serialmux.PortOptions{BaudRate: *baudRate})
		if err != nil {
			sugar.Fatalf("failed to open serial device %s: %v", *devicePath, err)
		}
	}
	defer m.Close()

	path := cfg.GetDatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}
	database, err := db.Open(path)
	if err != nil {
		sugar.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		sugar.Fatalf("failed to migrate database: %v", err)
	}

	runID, err := database.NewRun("serial:" + source)
	if err != nil {
		sugar.Fatalf("failed to create run: %v", err)
	}
	sugar.Infow("recording run", "run_id", runID, "source", source)

	if err := m.Initialize(serialmux.DeviceConfig{
		AlarmThreshold: cfg.GetAlarmThreshold(),
		DebounceCount:  cfg.GetDebounceCount(),
		ClkDiv:         cfg.GetClkDiv(),
	}); err != nil {
		sugar.Fatalf("failed to initialize device: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			sugar.Errorf("failed to monitor serial port: %v", err)
		}
		sugar.Info("monitor routine terminated")
	}()

	// subscribe to status lines and record parsed reports
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		// the device has no stall detection of its own; track report
		// arrival here on the host clock
		stall := time.NewTimer(*stallTimeout)
		defer stall.Stop()

		var seq uint64
		alarmActive := false
		for {
			select {
			case <-stall.C:
				sugar.Warnf("no report from device in %s", *stallTimeout)
				stall.Reset(*stallTimeout)
			case line := <-c:
				if !stall.Stop() {
					select {
					case <-stall.C:
					default:
					}
				}
				stall.Reset(*stallTimeout)
				r, err := report.Parse(line)
				if err != nil {
					// boot banners and debug chatter share the UART
					sugar.Debugw("skipping line", "line", line, "err", err)
					continue
				}
				seq++
				sugar.Infow("report",
					"seq", seq,
					"class", report.ClassName(r.ClassID),
					"confidence", r.Confidence,
					"alarm", r.Alarm,
				)
				if err := database.RecordClassification(db.Classification{
					RunID:       runID,
					Tick:        seq,
					ClassID:     r.ClassID,
					Confidence:  r.Confidence,
					AlarmActive: r.Alarm,
				}); err != nil {
					sugar.Errorf("failed to record classification: %v", err)
				}
				if r.Alarm && !alarmActive {
					sugar.Warnw("alarm raised",
						"class", report.ClassName(r.ClassID),
						"confidence", r.Confidence,
					)
					if err := database.RecordAlarm(db.AlarmEvent{
						RunID:      runID,
						Tick:       seq,
						ClassID:    r.ClassID,
						Confidence: r.Confidence,
					}); err != nil {
						sugar.Errorf("failed to record alarm: %v", err)
					}
				}
				alarmActive = r.Alarm
			case <-ctx.Done():
				sugar.Info("subscribe routine terminated")
				return
			}
		}
	}()

	wg.Wait()

	if err := database.FinishRun(runID); err != nil {
		sugar.Errorf("failed to finish run: %v", err)
	}
	sugar.Info("graceful shutdown complete")
}
