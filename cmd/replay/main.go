package main

// #region imports
import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/driftwatch/driftwatch/internal/replay"
	"github.com/driftwatch/driftwatch/internal/store"
)

// #endregion

// #region main

func main() {
	dbPath := flag.String("db", "", "path to driftwatch.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/driftwatch.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode replays persisted snapshots and compares the reproduced
// retrain verdicts against what the service recorded.
func runDBMode(dbPath string) int {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	snapshots, err := st.ListSnapshots(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list snapshots: %v\n", err)
		return 2
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stderr, "no snapshots to replay")
		return 0
	}

	results, summary := replay.Replay(snapshots, replay.DefaultConfig())
	printResults(results)

	recorded, err := st.ListDecisions(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list decisions: %v\n", err)
		return 2
	}
	recordedRetrains := 0
	for _, d := range recorded {
		if d.ShouldRetrain {
			recordedRetrains++
		}
	}

	fmt.Printf("\nreplayed %d snapshots: %d retrain verdicts, %d alerts\n",
		summary.TotalSteps, summary.RetrainVerdicts, summary.TotalAlerts)
	fmt.Printf("service recorded %d decisions, %d retrain verdicts\n",
		len(recorded), recordedRetrains)

	if summary.RetrainVerdicts != recordedRetrains {
		fmt.Fprintln(os.Stderr, "MISMATCH: replayed retrain verdicts differ from recorded history")
		return 1
	}
	fmt.Println("OK: replay reproduces the recorded verdicts")
	return 0
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(fixturePath string) int {
	fixture, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	if fixture.Description != "" {
		fmt.Printf("fixture: %s\n", fixture.Description)
	}

	results, summary, mismatches := replay.RunFixture(fixture)
	printResults(results)

	fmt.Printf("\nreplayed %d snapshots: %d retrain verdicts, %d alerts\n",
		summary.TotalSteps, summary.RetrainVerdicts, summary.TotalAlerts)

	if len(mismatches) > 0 {
		for _, m := range mismatches {
			fmt.Fprintf(os.Stderr, "MISMATCH at index %d: expected retrain=%v got %v (%s)\n",
				m.Index, m.Expected, m.Got, m.Reason)
		}
		return 1
	}
	fmt.Printf("OK: all %d expectations met\n", len(fixture.Expected))
	return 0
}

// #endregion fixture-mode

// #region output

func printResults(results []replay.Result) {
	fmt.Printf("%5s %-25s %8s %6s %7s %s\n", "INDEX", "TIMESTAMP", "RETRAIN", "SCORE", "ALERTS", "REASON")
	for _, r := range results {
		fmt.Printf("%5d %-25s %8v %6.2f %7d %s\n",
			r.Index, r.Decision.Timestamp.Format(time.RFC3339),
			r.Decision.ShouldRetrain, r.Decision.Score, len(r.Alerts), r.Decision.Reason)
	}
}

// #endregion output
