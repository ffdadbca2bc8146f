package vault

import (
	"context"
	"time"
)

// RetentionPolicy bounds the run history kept by a tracker. Only
// terminal runs (done or failed) are pruned.
type RetentionPolicy struct {
	// MaxAge prunes runs created before now-MaxAge. Zero disables the
	// age bound.
	MaxAge time.Duration
	// MaxCount keeps at most this many terminal runs, newest first.
	// Zero disables the count bound.
	MaxCount int
}

// Prune removes run records outside the policy and returns how many
// were deleted. The tracker must also implement RecordDeleter.
func (p RetentionPolicy) Prune(ctx context.Context, tracker RunTracker, now time.Time) (int, error) {
	if tracker == nil {
		return 0, NewError(KindInternal, "tracker is required", nil)
	}
	deleter, ok := tracker.(RecordDeleter)
	if !ok {
		return 0, NewError(KindValidation, "tracker does not support deletes", nil)
	}
	if p.MaxAge <= 0 && p.MaxCount <= 0 {
		return 0, nil
	}

	records, err := tracker.List(ctx, RunFilter{})
	if err != nil {
		return 0, err
	}

	cutoff := time.Time{}
	if p.MaxAge > 0 {
		cutoff = now.Add(-p.MaxAge)
	}

	pruned := 0
	kept := 0
	for _, record := range records {
		if record.State != StateDone && record.State != StateFailed {
			continue
		}
		stale := !cutoff.IsZero() && record.CreatedAt.Before(cutoff)
		overflow := p.MaxCount > 0 && kept >= p.MaxCount
		if !stale && !overflow {
			kept++
			continue
		}
		if err := deleter.Delete(ctx, record.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
