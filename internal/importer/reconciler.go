package importer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// StrandedRunMessage is recorded on runs force-failed by the reconciler
const StrandedRunMessage = "import interrupted: processor restarted before the run completed"

// DefaultStaleAfter is how long a run may sit in RUNNING before the
// reconciler considers it stranded
const DefaultStaleAfter = 30 * time.Minute

// ReconcilerStore fails every RUNNING run started before the cutoff
type ReconcilerStore interface {
	FailStaleRunning(ctx context.Context, startedBefore time.Time, message string) (int64, error)
}

// Reconciler is the startup sweep that recovers runs stranded in RUNNING by
// a crashed process. Nothing else ever un-sticks a RUNNING row. Runs younger
// than the threshold are left alone; they may be live in another replica.
type Reconciler struct {
	store      ReconcilerStore
	staleAfter time.Duration
	log        *logrus.Entry
}

func NewReconciler(store ReconcilerStore, staleAfter time.Duration, logger *logrus.Logger) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Reconciler{
		store:      store,
		staleAfter: staleAfter,
		log:        logrus.NewEntry(logger).WithField("component", "import_reconciler"),
	}
}

// FailStranded flips stranded RUNNING runs to FAILED and returns how many
// were swept
func (r *Reconciler) FailStranded(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	swept, err := r.store.FailStaleRunning(ctx, cutoff, StrandedRunMessage)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		r.log.WithField("count", swept).Warn("failed stranded import runs")
	}
	return swept, nil
}
