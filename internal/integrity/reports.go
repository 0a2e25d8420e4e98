package integrity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

// trustThreshold is the confirmed fraction below which a reporter with a
// resolved history stops counting as trusted
const trustThreshold = 0.5

// ReportOutcome is the gate's verdict on a territory's pending reports
type ReportOutcome string

const (
	// OutcomeInsufficient means the reports do not yet justify any action
	OutcomeInsufficient ReportOutcome = "insufficient"
	// OutcomeConfirmedViolation means the reports may be treated as a
	// content violation automatically
	OutcomeConfirmedViolation ReportOutcome = "confirmed_violation"
	// OutcomeManualReview means the case is escalated to a human instead of
	// any automated action
	OutcomeManualReview ReportOutcome = "manual_review"
)

// ReportPolicy parameterizes the report trust gate
type ReportPolicy struct {
	// MinReporters is the distinct-reporter floor for any automated action
	MinReporters int
	// MinTrustedReporters is how many of them must have a trustworthy
	// resolution history
	MinTrustedReporters int
	// BrigadeWindow and BrigadeReportCount describe the clustering that
	// marks a coordinated brigade
	BrigadeWindow      time.Duration
	BrigadeReportCount int
	// EscalateReportCount always routes to manual review when reached
	EscalateReportCount int
}

// Evaluation is the gate's full verdict with the signals that produced it
type Evaluation struct {
	Outcome           ReportOutcome `json:"outcome"`
	ReportCount       int           `json:"reportCount"`
	DistinctReporters int           `json:"distinctReporters"`
	TrustedReporters  int           `json:"trustedReporters"`
	Brigade           bool          `json:"brigade"`
}

// ReportGate decides whether crowd-sourced abuse reports against a territory
// may drive automated action. On any ambiguity, the verdict routes to a
// human instead.
type ReportGate struct {
	store  store.Store
	policy ReportPolicy
}

// NewReportGate creates a new report trust gate
func NewReportGate(s store.Store, policy ReportPolicy) *ReportGate {
	return &ReportGate{store: s, policy: policy}
}

// EvaluateTerritory runs the gate over a territory's pending reports
func (g *ReportGate) EvaluateTerritory(ctx context.Context, territoryID string) (Evaluation, error) {
	reports, err := g.store.ListPendingReports(ctx, territoryID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to list pending reports: %w", err)
	}

	trusted := func(reporterID string) (bool, error) {
		stats, err := g.store.GetReporterStats(ctx, reporterID)
		if err != nil {
			return false, err
		}
		return isTrusted(stats), nil
	}

	eval, err := g.evaluate(reports, trusted)
	if err != nil {
		return Evaluation{}, err
	}

	logger.InfoCtx(ctx, "Report gate evaluated",
		zap.String("territory_id", territoryID),
		zap.String("outcome", string(eval.Outcome)),
		zap.Int("report_count", eval.ReportCount),
		zap.Int("distinct_reporters", eval.DistinctReporters),
		zap.Int("trusted_reporters", eval.TrustedReporters),
		zap.Bool("brigade", eval.Brigade))

	return eval, nil
}

func (g *ReportGate) evaluate(reports []schema.Report, trusted func(string) (bool, error)) (Evaluation, error) {
	eval := Evaluation{
		Outcome:     OutcomeInsufficient,
		ReportCount: len(reports),
	}
	if len(reports) == 0 {
		return eval, nil
	}

	reporters := map[string]struct{}{}
	for _, r := range reports {
		reporters[r.ReporterID] = struct{}{}
	}
	eval.DistinctReporters = len(reporters)
	eval.Brigade = g.isBrigade(reports)

	// A flood of reports is never auto-actioned, whatever its shape
	if len(reports) >= g.policy.EscalateReportCount {
		eval.Outcome = OutcomeManualReview
		return eval, nil
	}
	// A tight cluster looks coordinated; route to a human regardless of
	// reporter count
	if eval.Brigade {
		eval.Outcome = OutcomeManualReview
		return eval, nil
	}

	if eval.DistinctReporters < g.policy.MinReporters {
		return eval, nil
	}

	for reporterID := range reporters {
		ok, err := trusted(reporterID)
		if err != nil {
			return Evaluation{}, fmt.Errorf("failed to score reporter %s: %w", reporterID, err)
		}
		if ok {
			eval.TrustedReporters++
		}
	}
	if eval.TrustedReporters < g.policy.MinTrustedReporters {
		return eval, nil
	}

	eval.Outcome = OutcomeConfirmedViolation
	return eval, nil
}

// isBrigade reports whether all reports fall inside one brigade window with
// at least the configured count
func (g *ReportGate) isBrigade(reports []schema.Report) bool {
	if len(reports) < g.policy.BrigadeReportCount {
		return false
	}
	earliest, latest := reports[0].CreatedAt, reports[0].CreatedAt
	for _, r := range reports[1:] {
		if r.CreatedAt.Before(earliest) {
			earliest = r.CreatedAt
		}
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}
	return latest.Sub(earliest) <= g.policy.BrigadeWindow
}

// isTrusted treats reporters with no resolved history as neutral/trusted;
// the rest must have at least half their resolved reports confirmed
func isTrusted(stats store.ReporterStats) bool {
	resolved := stats.Resolved()
	if resolved == 0 {
		return true
	}
	return float64(stats.Confirmed)/float64(resolved) >= trustThreshold
}
