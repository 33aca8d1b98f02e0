package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/driftwatch/driftwatch/internal/replay"
	"github.com/driftwatch/driftwatch/internal/store"
)

// #endregion

// #region main

// fixture-export turns a live database's snapshot history into a replay
// fixture, with the recorded verdicts baked in as expectations. Useful for
// freezing a production incident into a regression fixture.
func main() {
	dbPath := flag.String("db", "", "path to driftwatch.db")
	outPath := flag.String("out", "fixture.json", "output fixture path")
	description := flag.String("desc", "", "fixture description")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/driftwatch.db [--out fixture.json] [--desc text]")
		os.Exit(2)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	fixture, err := export(st, *description)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal fixture: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write fixture: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("exported %d snapshots and %d expectations to %s\n",
		len(fixture.Snapshots), len(fixture.Expected), *outPath)
}

// #endregion main

// #region export

func export(st *store.Store, description string) (replay.Fixture, error) {
	snapshots, err := st.ListSnapshots(0)
	if err != nil {
		return replay.Fixture{}, fmt.Errorf("list snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return replay.Fixture{}, fmt.Errorf("no snapshots in database")
	}

	fixture := replay.Fixture{Description: description}
	epoch := snapshots[0].Timestamp
	for _, s := range snapshots {
		fixture.Snapshots = append(fixture.Snapshots, replay.FixtureSnapshot{
			OffsetSeconds:      int(s.Timestamp.Sub(epoch).Seconds()),
			TotalObservations:  s.TotalObservations,
			LabeledCount:       s.LabeledCount,
			Accuracy:           s.Accuracy,
			AccuracyValid:      s.AccuracyValid,
			ModelVersion:       s.ModelVersion,
			AvgConfidence:      s.AvgConfidence,
			LowConfidenceCount: s.LowConfidenceCount,
		})
	}

	// Bake the replayed verdicts in as expectations: the fixture then
	// pins today's behavior against future tuning changes.
	results, _ := replay.Replay(snapshots, replay.DefaultConfig())
	for _, r := range results {
		fixture.Expected = append(fixture.Expected, replay.ExpectedVerdict{
			Index:         r.Index,
			ShouldRetrain: r.Decision.ShouldRetrain,
		})
	}

	return fixture, nil
}

// #endregion export
