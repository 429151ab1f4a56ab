package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Otitodev/wa-assist/pkg/metrics"
)

// SweepResult reports one maintenance pass.
type SweepResult struct {
	Resumed int64 `json:"resumed"`
	Pruned  int64 `json:"pruned"`
}

// Sweeper bundles the periodic maintenance passes: auto-resuming sessions
// whose operator went idle, and pruning old idempotency markers. The two
// passes are independent; a failure in one does not stop the other.
type Sweeper struct {
	sessions    SessionRegistry
	ledger      Ledger
	bus         Notifier
	resumeAfter time.Duration
	retention   time.Duration
}

func NewSweeper(sessions SessionRegistry, ledger Ledger, bus Notifier, resumeAfter, retention time.Duration) *Sweeper {
	return &Sweeper{
		sessions:    sessions,
		ledger:      ledger,
		bus:         bus,
		resumeAfter: resumeAfter,
		retention:   retention,
	}
}

// Sweep runs both maintenance passes once with the configured idle
// threshold.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	return s.SweepWithThreshold(ctx, s.resumeAfter)
}

// SweepWithThreshold runs both maintenance passes with an explicit idle
// threshold. The returned result counts rows touched even when the other
// pass failed.
func (s *Sweeper) SweepWithThreshold(ctx context.Context, idleThreshold time.Duration) (SweepResult, error) {
	if idleThreshold <= 0 {
		idleThreshold = s.resumeAfter
	}
	var result SweepResult
	var firstErr error

	resumed, err := s.sessions.ResumeIdle(ctx, time.Now().Add(-idleThreshold))
	if err != nil {
		zap.L().Error("auto-resume pass failed",
			zap.String("namespace", "sweeper"), zap.Error(err))
		firstErr = err
	} else {
		result.Resumed = resumed
		if resumed > 0 {
			metrics.IncrCounter(metrics.CounterSessionResumed, resumed)
			if s.bus != nil {
				s.bus.Publish(TopicSessionResumed, "", "", "auto_resume")
			}
			zap.L().Info("auto-resumed idle sessions",
				zap.String("namespace", "sweeper"), zap.Int64("count", resumed))
		}
	}

	pruned, err := s.ledger.PruneOlderThan(ctx, time.Now().Add(-s.retention))
	if err != nil {
		zap.L().Error("ledger prune pass failed",
			zap.String("namespace", "sweeper"), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	} else {
		result.Pruned = pruned
		if pruned > 0 {
			zap.L().Info("pruned idempotency markers",
				zap.String("namespace", "sweeper"), zap.Int64("count", pruned))
		}
	}
	return result, firstErr
}
