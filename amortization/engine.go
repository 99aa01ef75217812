package amortization

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recorder receives engine metrics. observability.Metrics implements it.
type Recorder interface {
	ObserveRun(policy AccrualPolicy, elapsed time.Duration, incomplete bool)
	ObserveMalformedRecords(kind string, count int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(AccrualPolicy, time.Duration, bool) {}
func (nopRecorder) ObserveMalformedRecords(string, int)           {}

// Engine wraps the pure scheduler functions with logging and metrics. The
// zero value is usable and silent.
type Engine struct {
	Logger  *zap.Logger
	Metrics Recorder
}

// NewEngine returns an Engine; nil arguments fall back to no-op
// implementations.
func NewEngine(logger *zap.Logger, metrics Recorder) *Engine {
	return &Engine{Logger: logger, Metrics: metrics}
}

func (e *Engine) logger() *zap.Logger {
	if e == nil || e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) metrics() Recorder {
	if e == nil || e.Metrics == nil {
		return nopRecorder{}
	}
	return e.Metrics
}

// Normalize runs both normalizers and reports every coercion at warn level.
// The warnings are returned as well so callers can surface them.
func (e *Engine) Normalize(rawTranches, rawPrepayments []RawEvent) ([]Tranche, []Prepayment, []MalformedRecordWarning, error) {
	tranches, warnings, err := NormalizeTranches(rawTranches)
	prepayments, prepaymentWarnings := NormalizePrepayments(rawPrepayments)
	warnings = append(warnings, prepaymentWarnings...)

	e.reportWarnings(warnings)
	if err != nil {
		return nil, nil, warnings, err
	}
	return tranches, prepayments, warnings, nil
}

func (e *Engine) reportWarnings(warnings []MalformedRecordWarning) {
	if len(warnings) == 0 {
		return
	}
	log := e.logger()
	counts := make(map[string]int)
	for _, w := range warnings {
		log.Warn("malformed record coerced",
			zap.String("kind", w.Kind),
			zap.Int("index", w.Index),
			zap.String("field", w.Field),
			zap.String("raw", w.Raw),
			zap.String("reason", w.Reason),
		)
		counts[w.Kind]++
	}
	for kind, n := range counts {
		e.metrics().ObserveMalformedRecords(kind, n)
	}
}

// Run is the observed form of the package-level Run.
func (e *Engine) Run(ctx context.Context, params LoanParameters, tranches []Tranche, prepayments []Prepayment) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := Run(params, tranches, prepayments)
	if err != nil {
		e.logger().Debug("schedule rejected", zap.Error(err))
		return nil, err
	}
	e.observe(result, time.Since(start))
	return result, nil
}

func (e *Engine) observe(result *RunResult, elapsed time.Duration) {
	e.metrics().ObserveRun(result.Policy, elapsed, result.Incomplete)

	if result.Undisbursed > 0 {
		e.logger().Warn("tranches past the walk bound were not disbursed",
			zap.String("policy", string(result.Policy)),
			zap.Float64("undisbursed", result.Undisbursed),
		)
	}

	if result.Incomplete {
		e.logger().Warn("schedule did not converge",
			zap.String("policy", string(result.Policy)),
			zap.Int("reached_month", result.ActualTenureMonths),
			zap.Float64("residual", result.Residual),
		)
		return
	}
	e.logger().Debug("schedule computed",
		zap.String("policy", string(result.Policy)),
		zap.Int("tenure_months", result.ActualTenureMonths),
		zap.Float64("total_interest", result.TotalInterest),
		zap.Duration("elapsed", elapsed),
	)
}

// Compare runs both policies concurrently. Each run gets its own parameter
// copy; the tranche and prepayment slices are only read.
func (e *Engine) Compare(ctx context.Context, params LoanParameters, tranches []Tranche, prepayments []Prepayment) (*ComparisonResult, error) {
	var io, full *RunResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		io, err = e.Run(gctx, params.WithPolicy(PolicyInterestOnlyDuringConstruction), tranches, prepayments)
		return err
	})
	g.Go(func() error {
		var err error
		full, err = e.Run(gctx, params.WithPolicy(PolicyFullFromStart), tranches, prepayments)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return compareRuns(params.ConstructionMonths, io, full), nil
}
