package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/store"
)

// #endregion

// #region main

func main() {
	dbPath := flag.String("db", "", "path to driftwatch.db")
	table := flag.String("table", "snapshots", "history to show: snapshots|decisions|retrainings|audit")
	last := flag.Int("last", 20, "show N most recent entries")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/driftwatch.db [--table name] [--last N] [--json]")
		os.Exit(2)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := run(st, *table, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(st *store.Store, table string, last int, jsonOut bool) error {
	switch table {
	case "snapshots":
		return showSnapshots(st, last, jsonOut)
	case "decisions":
		return showDecisions(st, last, jsonOut)
	case "retrainings":
		return showRetrainings(st, last, jsonOut)
	case "audit":
		return showAudit(st, last, jsonOut)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

// #endregion main

// #region snapshots

func showSnapshots(st *store.Store, last int, jsonOut bool) error {
	snaps, err := st.ListSnapshots(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(snaps)
	}

	fmt.Printf("%-25s %7s %8s %9s %6s %9s %7s\n",
		"TIMESTAMP", "TOTAL", "LABELED", "ACCURACY", "MODEL", "AVG_CONF", "ANOMALY")
	for _, s := range snaps {
		acc := "n/a"
		if s.AccuracyValid {
			acc = fmt.Sprintf("%.4f", s.Accuracy)
		}
		fmt.Printf("%-25s %7d %8d %9s %6d %9.4f %7v\n",
			s.Timestamp.Format(time.RFC3339), s.TotalObservations, s.LabeledCount,
			acc, s.ModelVersion, s.AvgConfidence, s.AnomalyDetected)
	}
	return nil
}

// #endregion snapshots

// #region decisions

func showDecisions(st *store.Store, last int, jsonOut bool) error {
	decisions, err := st.ListDecisions(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(decisions)
	}

	fmt.Printf("%-25s %8s %6s %s\n", "TIMESTAMP", "RETRAIN", "SCORE", "REASON")
	for _, d := range decisions {
		fmt.Printf("%-25s %8v %6.2f %s\n",
			d.Timestamp.Format(time.RFC3339), d.ShouldRetrain, d.Score, d.Reason)
		for _, t := range d.Triggers {
			fmt.Printf("%27s - %s\n", "", t)
		}
	}
	return nil
}

// #endregion decisions

// #region retrainings

func showRetrainings(st *store.Store, last int, jsonOut bool) error {
	recs, err := st.ListRetrainings(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(recs)
	}

	fmt.Printf("%-25s %9s %8s %8s %9s %s\n",
		"TIMESTAMP", "VERSIONS", "OLD_ACC", "NEW_ACC", "EXAMPLES", "TRIGGER")
	for _, r := range recs {
		fmt.Printf("%-25s %4d->%-4d %8.4f %8.4f %9d %s\n",
			r.Timestamp.Format(time.RFC3339), r.OldVersion, r.NewVersion,
			r.OldAccuracy, r.NewAccuracy, r.ExampleCount, r.Trigger)
	}
	return nil
}

// #endregion retrainings

// #region audit

func showAudit(st *store.Store, last int, jsonOut bool) error {
	events, err := st.ListAudit(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(events)
	}

	fmt.Printf("%-25s %-22s %-7s %s\n", "TIMESTAMP", "EVENT", "ACTOR", "DETAILS")
	for _, e := range events {
		fmt.Printf("%-25s %-22s %-7s %s\n",
			e.Timestamp.Format(time.RFC3339), e.Type, e.Actor, e.Details)
		if len(e.Metadata) > 0 {
			var pairs []string
			for k, v := range e.Metadata {
				pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
			}
			fmt.Printf("%27s %s\n", "", strings.Join(pairs, " "))
		}
	}
	return nil
}

// #endregion audit

// #region helpers

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
