package operations

import (
	"context"
	"time"
)

// Handle is the cooperative-control surface a Body receives. A body polls
// Cancelled/WaitIfPaused at convenient checkpoints (e.g. between batch items)
// and reports progress through Progress; the manager never forcibly
// interrupts a running goroutine.
type Handle struct {
	manager *Manager
	id      string
}

// Cancelled reports whether Cancel has been requested for this operation.
func (h *Handle) Cancelled() bool {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	return h.manager.cancelled[h.id]
}

// CancelIfRequested returns ErrCancelled when Cancel has been requested, nil
// otherwise. Bodies call this at loop checkpoints to exit cooperatively.
func (h *Handle) CancelIfRequested() error {
	if h.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// WaitIfPaused blocks while the operation is paused, returning early with
// ErrCancelled if cancellation arrives during the pause, or ctx.Err() if the
// context is done first.
func (h *Handle) WaitIfPaused(ctx context.Context) error {
	for {
		h.manager.mu.Lock()
		if !h.manager.paused[h.id] {
			h.manager.mu.Unlock()
			return h.CancelIfRequested()
		}
		ch := h.manager.pauseCond[h.id]
		h.manager.mu.Unlock()

		select {
		case <-ch:
			if err := h.CancelIfRequested(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Progress updates processed/total counts and an optional status message,
// then publishes a rate-limited progress event to the Broadcaster. Terminal
// transitions are published unconditionally by the manager itself, so
// Progress never needs to force a send through.
func (h *Handle) Progress(processed, total int, message string) {
	h.manager.mu.Lock()
	op, ok := h.manager.ops[h.id]
	if !ok {
		h.manager.mu.Unlock()
		return
	}
	op.ProcessedCount = processed
	if total > 0 {
		op.TotalItems = total
	}
	op.Message = message
	op.LastProgressAt = time.Now()
	if op.TotalItems > 0 {
		op.ProgressPercent = float64(processed) / float64(op.TotalItems) * 100
	}
	limiter := h.manager.limiters[h.id]
	snapshot := ProgressEvent{
		OperationID: h.id,
		Type:        op.Type,
		State:       op.State,
		Processed:   op.ProcessedCount,
		Total:       op.TotalItems,
		Percent:     op.ProgressPercent,
		Message:     op.Message,
	}
	h.manager.mu.Unlock()

	if limiter == nil || limiter.Allow() {
		h.manager.broadcast.PublishOperationEvent(snapshot)
	}
}

// ID returns the operation's id, letting a body log or correlate with it.
func (h *Handle) ID() string { return h.id }
