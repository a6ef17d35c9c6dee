// Command spectrum-report runs a scenario through the device model
// offline and writes the diagnostic dashboard to an HTML file. Useful
// for checking a scenario or parameter set without starting the daemon.
package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"

	"github.com/banshee-data/senseedge/internal/charts"
	"github.com/banshee-data/senseedge/internal/config"
	"github.com/banshee-data/senseedge/internal/db"
	"github.com/banshee-data/senseedge/internal/params"
	"github.com/banshee-data/senseedge/internal/report"
	"github.com/banshee-data/senseedge/internal/rtl/adc"
	"github.com/banshee-data/senseedge/internal/scenario"
	"github.com/banshee-data/senseedge/internal/sim"
)

var (
	configPath   = flag.String("config", config.DefaultConfigPath, "Tuning config JSON file")
	paramsPath   = flag.String("params", "", "Parameter JSON file (overrides config)")
	scenarioPath = flag.String("scenario", "", "Scenario YAML file (overrides config)")
	batches      = flag.Int("batches", 0, "Acquisition batches to run (default: scenario length)")
	outPath      = flag.String("out", "spectrum-report.html", "Output HTML file")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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

	n := *batches
	if n <= 0 {
		n = sc.TotalBatches()
	}

	runner := sim.New(sc.Stream())
	if err := runner.Boot(cfg, set.Flatten()); err != nil {
		log.Fatalf("failed to boot device: %v", err)
	}

	// two extra batches drain the pipeline tail after the last window
	ticks := (n + 2) * adc.BatchSize * int(cfg.GetClkDiv())
	events := runner.StepTicks(ticks)
	log.Printf("ran %d batches (%d ticks): %d classifications", n, ticks, len(events))

	history := make([]db.Classification, 0, len(events))
	for _, e := range events {
		history = append(history, db.Classification{
			RunID:       "offline",
			Tick:        e.Tick,
			ClassID:     e.ClassID,
			ClassName:   report.ClassName(e.ClassID),
			Confidence:  e.Confidence,
			AlarmActive: e.AlarmActive,
		})
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()

	if err := charts.RenderDashboard(f, runner.Snapshot(), history); err != nil {
		log.Fatalf("failed to render dashboard: %v", err)
	}

	snap := runner.Snapshot()
	log.Printf("final result: %s conf=%d alarm=%v (%d batches, %d dropped)",
		report.ClassName(snap.ClassID), snap.Confidence, snap.Alarm, snap.Batches, snap.Dropped)
	log.Printf("wrote %s", *outPath)
}
