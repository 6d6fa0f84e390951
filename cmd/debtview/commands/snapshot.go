package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/debtview/internal/enrich"
	"github.com/wonny/debtview/internal/refresh"
	"github.com/wonny/debtview/internal/snapshot"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch the order book once and print yields",
	Long: `Runs a single refresh cycle and prints the enriched order book.

Rows are grouped by series (GS, SG, TB). Yields are in percent; "-" means
no quote on that side or no yield solution. Zero coupon instruments show
DNE as the next coupon date.

Example:
  go run ./cmd/debtview snapshot
  go run ./cmd/debtview snapshot --series GS --nonzero
  go run ./cmd/debtview snapshot --watchlist --json
  go run ./cmd/debtview snapshot --from-cache`,
	RunE: runSnapshot,
}

var (
	snapSeries    []string
	snapSymbols   []string
	snapNonZero   bool
	snapWatchlist bool
	snapJSON      bool
	snapFromCache bool
	snapTimeout   time.Duration
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringSliceVar(&snapSeries, "series", nil, "series to show (GS, SG, TB)")
	snapshotCmd.Flags().StringSliceVar(&snapSymbols, "symbol", nil, "symbols to show")
	snapshotCmd.Flags().BoolVar(&snapNonZero, "nonzero", false, "hide levels with no bid and no ask quantity")
	snapshotCmd.Flags().BoolVar(&snapWatchlist, "watchlist", false, "show only the configured watchlist")
	snapshotCmd.Flags().BoolVar(&snapJSON, "json", false, "print JSON instead of a table")
	snapshotCmd.Flags().BoolVar(&snapFromCache, "from-cache", false, "read the snapshot mirrored in Redis by a running server")
	snapshotCmd.Flags().DurationVar(&snapTimeout, "timeout", 60*time.Second, "overall timeout")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), snapTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var snap *snapshot.Snapshot
	if snapFromCache {
		if !a.redis.Enabled() {
			return fmt.Errorf("--from-cache needs REDIS_ENABLED=true")
		}
		snap, err = snapshot.LoadMirrored(ctx, a.cache)
		if err != nil {
			return err
		}
	} else {
		store := snapshot.NewStore(0)
		publisher := refresh.New(a.feedClient(), a.provider(), enrich.NewEngine(log), store, cfg.Refresh, log)
		if err := publisher.RunOnce(ctx); err != nil {
			return fmt.Errorf("refresh cycle (%s): %w", refresh.ErrorKind(err), err)
		}
		if snap, err = store.Latest(); err != nil {
			return err
		}
	}

	symbols := snapSymbols
	if snapWatchlist {
		if len(cfg.Watchlist) == 0 {
			printWarning(cmd.ErrOrStderr(), "watchlist is empty; showing every symbol")
		}
		symbols = append(symbols, cfg.Watchlist...)
	}
	filter := snapshot.Filter{
		Series:  toSet(snapSeries, true),
		Symbols: toSet(symbols, false),
		NonZero: snapNonZero,
	}
	view := snapshot.NewView(snap, filter.Apply(snap.Quotes))

	out := cmd.OutOrStdout()
	if snapJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	printHeader(out, "Debt Order Book", [][2]string{
		{"Snapshot", view.ID},
		{"Captured", view.CapturedAt.In(cfg.Location()).Format("2006-01-02 15:04:05 MST")},
		{"Settlement", view.SettlementDate},
		{"Rows", fmt.Sprintf("%d of %d", len(view.Quotes), len(snap.Quotes))},
	})
	printQuotes(out, view)

	fmt.Fprintln(out)
	if view.Stats.JoinGaps > 0 {
		printWarning(out, "no reference data for "+strconv.Itoa(view.Stats.JoinGaps)+" rows: "+strings.Join(view.Stats.GapSymbols, ", "))
	}
	if view.Stats.Nonconverged > 0 {
		printWarning(out, strconv.Itoa(view.Stats.Nonconverged)+" quoted sides have no yield solution")
	}
	printSuccess(out, fmt.Sprintf("%d instruments, %d rows", len(snap.Symbols()), len(snap.Quotes)))
	return nil
}

// toSet builds a lookup set, nil when values is empty.
func toSet(values []string, upper bool) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if upper {
			v = strings.ToUpper(v)
		}
		if v != "" {
			out[v] = true
		}
	}
	return out
}
