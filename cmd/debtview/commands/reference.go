package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/debtview/internal/reference"
)

// referenceCmd represents the reference command
var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Build and print the reference table",
	Long: `Loads the instrument master list, builds the coupon schedule table for
today's settlement date and prints it together with any rejected rows.

Example:
  go run ./cmd/debtview reference
  go run ./cmd/debtview reference --source file --path DEBT.csv
  go run ./cmd/debtview reference --symbol 718GS2033 --json`,
	RunE: runReference,
}

// referenceImportCmd loads a master CSV into PostgreSQL
var referenceImportCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Import a master list CSV into the database",
	Long: `Upserts every valid row of a master list CSV into the configured
REFERENCE_TABLE so the postgres source can serve it.

Example:
  go run ./cmd/debtview reference import DEBT.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReferenceImport,
}

var (
	refSource  string
	refPath    string
	refURL     string
	refSymbols []string
	refJSON    bool
)

func init() {
	rootCmd.AddCommand(referenceCmd)
	referenceCmd.AddCommand(referenceImportCmd)

	referenceCmd.Flags().StringVar(&refSource, "source", "", "master list source: file, url or postgres (overrides REFERENCE_SOURCE)")
	referenceCmd.Flags().StringVar(&refPath, "path", "", "CSV path for the file source")
	referenceCmd.Flags().StringVar(&refURL, "url", "", "CSV URL for the url source")
	referenceCmd.Flags().StringSliceVar(&refSymbols, "symbol", nil, "only print these symbols")
	referenceCmd.Flags().BoolVar(&refJSON, "json", false, "print JSON instead of a table")
}

func runReference(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if refSource != "" {
		cfg.Reference.Source = refSource
	}
	if refPath != "" {
		cfg.Reference.Path = refPath
	}
	if refURL != "" {
		cfg.Reference.URL = refURL
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	table, err := a.provider().Refresh(ctx, time.Now())
	if err != nil {
		return err
	}

	instruments := table.All()
	if want := toSet(refSymbols, false); want != nil {
		filtered := instruments[:0]
		for _, inst := range instruments {
			if want[inst.Symbol] {
				filtered = append(filtered, inst)
			}
		}
		instruments = filtered
	}

	out := cmd.OutOrStdout()
	if refJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"settlement_date": table.SettlementDate().Format("2006-01-02"),
			"instruments":     instruments,
			"rejected":        table.Rejected(),
		})
	}

	printHeader(out, "Reference Table", [][2]string{
		{"Source", a.source.Name()},
		{"Settlement", table.SettlementDate().Format("2006-01-02")},
		{"Instruments", strconv.Itoa(table.Len())},
		{"Rejected", strconv.Itoa(len(table.Rejected()))},
	})

	columns := []string{"Symbol", "Coupon%", "Last Cpn", "Next Cpn", "Redemption", "Days", "Accrued", "Years"}
	widths := []int{12, 8, 10, 10, 10, 5, 9, 7}
	printTableHeader(out, columns, widths)
	for _, inst := range instruments {
		next := "DNE"
		if inst.HasNextCoupon {
			next = inst.NextCouponDate.Format("2006-01-02")
		}
		printTableRow(out, []string{
			inst.Symbol,
			strconv.FormatFloat(inst.CouponRate, 'f', 2, 64),
			inst.LastCouponDate.Format("2006-01-02"),
			next,
			inst.RedemptionDate.Format("2006-01-02"),
			strconv.Itoa(inst.DaysSinceLastCoupon),
			strconv.FormatFloat(inst.AccruedInterest, 'f', 4, 64),
			strconv.FormatFloat(inst.YearsToMaturity, 'f', 3, 64),
		}, widths)
	}

	if rejected := table.Rejected(); len(rejected) > 0 {
		fmt.Fprintln(out)
		printWarning(out, strconv.Itoa(len(rejected))+" rows excluded")
		for _, r := range rejected {
			fmt.Fprintf(out, "   • %s\n", r.Error())
		}
	}
	return nil
}

func runReferenceImport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open master list: %w", err)
	}
	defer f.Close()

	master, err := reference.ParseCSV(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.database(ctx)
	if err != nil {
		return err
	}

	n, err := reference.ImportMaster(ctx, db.Pool, cfg.Reference.Table, master.Rows)
	if err != nil {
		return fmt.Errorf("import after %d rows: %w", n, err)
	}

	// a running server would otherwise keep serving the cached list until TTL
	if a.cached != nil {
		if err := a.cached.Invalidate(ctx); err != nil {
			log.WithError(err).Warn("Failed to invalidate cached master list")
		}
	}

	out := cmd.OutOrStdout()
	for _, r := range master.Rejected {
		printWarning(out, "skipped "+r.Error())
	}
	printSuccess(out, fmt.Sprintf("Imported %d rows into %s", n, cfg.Reference.Table))
	return nil
}
