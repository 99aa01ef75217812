/*
main.go - Command-line loan calculator

PURPOSE:
  Runs a scenario file (JSON or YAML, current or legacy field names)
  through the engine and prints a summary, optionally the month-by-month
  schedule and the interest-only versus full-from-start comparison.

USAGE:
  loancalc [flags] scenario.yaml

FLAGS:
  -policy    Override the scenario's accrual policy
  -schedule  Print every schedule row
  -compare   Print the policy comparison
  -json      Print the raw engine result as JSON instead of text
  -log-level Log level for coercion warnings (default warn, on stderr)

EXIT CODES:
  0  success
  1  invalid input or failed run
  2  bad flags

SEE ALSO:
  - scenario/parse.go: File formats
  - cmd/server/main.go: The same engine over HTTP
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tranche-engine/amortization"
	"github.com/warp/tranche-engine/observability"
	"github.com/warp/tranche-engine/scenario"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	path     string
	policy   string
	schedule bool
	compare  bool
	asJSON   bool
	logLevel string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("loancalc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.policy, "policy", "", "accrual policy override (recomputeOnDisbursement, interestOnlyDuringConstruction, fullFromStart)")
	fs.BoolVar(&opts.schedule, "schedule", false, "print every schedule row")
	fs.BoolVar(&opts.compare, "compare", false, "print the interest-only vs full-from-start comparison")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of text")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected one scenario file, got %d", fs.NArg())
	}
	opts.path = fs.Arg(0)

	if opts.policy != "" && !amortization.AccrualPolicy(opts.policy).IsValid() {
		return nil, fmt.Errorf("unknown policy %q", opts.policy)
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, err := observability.NewLogger(observability.LogConfig{Level: opts.logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer logger.Sync()

	if err := calculate(context.Background(), opts, amortization.NewEngine(logger, nil), stdout); err != nil {
		fmt.Fprintln(stderr, "loancalc:", err)
		return 1
	}
	return 0
}

func calculate(ctx context.Context, opts *options, engine *amortization.Engine, out io.Writer) error {
	s, err := scenario.ParseFile(opts.path)
	if err != nil {
		return err
	}
	if opts.policy != "" {
		s.Data.AccrualPolicy = amortization.AccrualPolicy(opts.policy)
	}

	in, err := s.Data.ToEngineInputs(engine)
	if err != nil {
		return err
	}
	result, err := engine.Run(ctx, in.Params, in.Tranches, in.Prepayments)
	if err != nil {
		return err
	}

	var cmp *amortization.ComparisonResult
	if opts.compare {
		if cmp, err = engine.Compare(ctx, in.Params, in.Tranches, in.Prepayments); err != nil {
			return err
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Result     *amortization.RunResult               `json:"result"`
			Comparison *amortization.ComparisonResult        `json:"comparison,omitempty"`
			Warnings   []amortization.MalformedRecordWarning `json:"warnings"`
		}{result, cmp, in.Warnings})
	}

	printSummary(out, s, in, result)
	if opts.schedule {
		printSchedule(out, s.Data.Start(), result)
	}
	if cmp != nil {
		printComparison(out, cmp)
	}
	return nil
}

// =============================================================================
// TEXT OUTPUT
// =============================================================================

func printSummary(out io.Writer, s *scenario.Scenario, in *scenario.Inputs, r *amortization.RunResult) {
	p := in.Params
	baseline := amortization.Baseline(p.StatedPrincipal, p.AnnualRatePercent, p.TenureYears)
	start := s.Data.Start()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if s.Name != "" {
		fmt.Fprintf(tw, "Scenario\t%s\n", s.Name)
	}
	fmt.Fprintf(tw, "Policy\t%s\n", r.Policy)
	fmt.Fprintf(tw, "Stated principal\t%s\n", money(p.StatedPrincipal))
	fmt.Fprintf(tw, "Disbursed\t%s\n", money(r.TotalDisbursed))
	fmt.Fprintf(tw, "Rate\t%s%%\n", decimal.NewFromFloat(p.AnnualRatePercent).String())
	fmt.Fprintf(tw, "Baseline EMI\t%s\n", money(baseline.Installment))
	fmt.Fprintf(tw, "Final installment\t%s\n", money(r.FinalMonthlyInstallment))
	fmt.Fprintf(tw, "Total interest\t%s\n", money(r.TotalInterest))
	fmt.Fprintf(tw, "Total payment\t%s\n", money(r.TotalPayment))
	fmt.Fprintf(tw, "Interest saved\t%s\n", money(amortization.InterestSaved(baseline, r)))
	fmt.Fprintf(tw, "Tenure\t%d months (%dy %dm), last payment %s\n",
		r.ActualTenureMonths, r.ActualTenureMonths/12, r.ActualTenureMonths%12, monthLabel(start, r.ActualTenureMonths))
	if r.Incomplete {
		fmt.Fprintf(tw, "Incomplete\tresidual %s left at month %d\n", money(r.Residual), r.ActualTenureMonths)
	}
	if len(in.Warnings) > 0 {
		fmt.Fprintf(tw, "Coerced records\t%d\n", len(in.Warnings))
	}
	tw.Flush()
}

func printSchedule(out io.Writer, start string, r *amortization.RunResult) {
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Month\tDate\tDisbursed\tPrepaid\tInstallment\tInterest\tPrincipal\tBalance\t")
	for _, row := range r.Schedule {
		marker := ""
		if row.IsConstructionPeriod {
			marker = "*"
		}
		fmt.Fprintf(tw, "%d%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Month, marker, monthLabel(start, row.Month),
			money(row.DisbursedThisMonth), money(row.PrepaidThisMonth),
			money(row.InstallmentPaid), money(row.InterestPortion),
			money(row.PrincipalPortion), money(row.OutstandingBalance),
		)
	}
	tw.Flush()
}

func printComparison(out io.Writer, c *amortization.ComparisonResult) {
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tInterest-only\tFull-from-start")
	fmt.Fprintf(tw, "Construction cash\t%s\t%s\n", money(c.ConstructionCashInterestOnly), money(c.ConstructionCashFullFromStart))
	fmt.Fprintf(tw, "Total interest\t%s\t%s\n", money(c.InterestOnly.TotalInterest), money(c.FullFromStart.TotalInterest))
	fmt.Fprintf(tw, "Tenure (months)\t%d\t%d\n", c.InterestOnly.ActualTenureMonths, c.FullFromStart.ActualTenureMonths)
	fmt.Fprintf(tw, "Extra construction cash\t\t%s\n", money(c.ConstructionCashDifference()))
	fmt.Fprintf(tw, "Interest saved\t\t%s\n", money(c.InterestDifference))
	if c.HasBreakEven {
		fmt.Fprintf(tw, "Break-even month\t\t%d\n", c.BreakEvenMonth)
	} else {
		fmt.Fprintf(tw, "Break-even month\t\tnever\n")
	}
	tw.Flush()
}

func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// monthLabel renders month offset m from a "2006-01" start as "2006-01".
// Unparseable starts fall back to the offset.
func monthLabel(start string, m int) string {
	t, err := time.Parse("2006-01", start)
	if err != nil {
		return fmt.Sprintf("+%d", m)
	}
	return t.AddDate(0, m, 0).Format("2006-01")
}
