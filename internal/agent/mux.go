package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"provify/internal/logging"
)

var _ Executor = (*MuxExecutor)(nil)

// ErrUnknownDispatch is returned when a result arrives for a dispatch that is
// not waiting (never issued, already submitted, or abandoned after timeout).
var ErrUnknownDispatch = errors.New("unknown dispatch id")

// Submission is an agent's answer to a pulled task. A non-empty Error marks
// the run as failed; Partial keeps whatever trace the agent had.
type Submission struct {
	Outcome Outcome
	Error   string
	Partial string
}

type muxEntry struct {
	task Task
	resp chan Submission
}

// MuxExecutor bridges the orchestrator (which calls Execute from one
// goroutine per target) with external agents that pull work through
// NextTask and answer through SubmitResult. Each Execute call gets a unique
// dispatch ID and its own response channel, so results are routed to the
// right caller under any parallelism. Agents may pull for one target only.
type MuxExecutor struct {
	ctx context.Context
	log *slog.Logger

	mu       sync.Mutex
	nextID   int64
	queue    []*muxEntry
	inflight map[int64]*muxEntry
	closed   map[int64]struct{}
	wake     chan struct{}

	abortCh  chan struct{}
	abortErr error
}

// NewMuxExecutor creates an executor whose lifetime is bound to ctx.
func NewMuxExecutor(ctx context.Context) *MuxExecutor {
	return &MuxExecutor{
		ctx:      ctx,
		log:      logging.New("agent-mux"),
		inflight: make(map[int64]*muxEntry),
		closed:   make(map[int64]struct{}),
		wake:     make(chan struct{}),
		abortCh:  make(chan struct{}),
	}
}

// Execute queues the task and blocks until the matching SubmitResult, the
// caller's ctx is done, or the executor shuts down.
func (m *MuxExecutor) Execute(ctx context.Context, task Task) (Outcome, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	task.DispatchID = id
	e := &muxEntry{task: task, resp: make(chan Submission, 1)}
	m.queue = append(m.queue, e)
	m.inflight[id] = e
	queued := len(m.queue)
	m.broadcastLocked()
	m.mu.Unlock()

	m.log.Debug("mux task queued",
		slog.Int64("dispatch_id", id),
		slog.String("bug_id", task.BugID),
		slog.String("target_id", task.TargetID),
		slog.Int("queued", queued),
	)

	select {
	case sub := <-e.resp:
		if sub.Error != "" {
			return Outcome{Raw: sub.Partial}, &Error{Reason: sub.Error, Partial: sub.Partial}
		}
		return sub.Outcome, nil
	case <-ctx.Done():
		m.abandon(id)
		m.log.Warn("mux task abandoned",
			slog.Int64("dispatch_id", id),
			slog.String("target_id", task.TargetID),
			slog.String("reason", ctx.Err().Error()),
		)
		return Outcome{}, fmt.Errorf("mux task %d: %w", id, ctx.Err())
	case <-m.ctx.Done():
		m.abandon(id)
		return Outcome{}, fmt.Errorf("mux executor shutdown: %w", m.ctx.Err())
	case <-m.abortCh:
		m.abandon(id)
		return Outcome{}, fmt.Errorf("mux executor aborted: %w", m.getAbortErr())
	}
}

// NextTask blocks until a task is available for targetID (any target when
// empty), claims it, and returns it.
func (m *MuxExecutor) NextTask(ctx context.Context, targetID string) (Task, error) {
	for {
		m.mu.Lock()
		for i, e := range m.queue {
			if targetID == "" || e.task.TargetID == targetID {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				m.mu.Unlock()
				m.log.Debug("mux task claimed",
					slog.Int64("dispatch_id", e.task.DispatchID),
					slog.String("target_id", e.task.TargetID),
				)
				return e.task, nil
			}
		}
		wake := m.wake
		m.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-m.ctx.Done():
			return Task{}, fmt.Errorf("mux executor shutdown: %w", m.ctx.Err())
		case <-m.abortCh:
			return Task{}, fmt.Errorf("mux executor aborted: %w", m.getAbortErr())
		}
	}
}

// SubmitResult routes an agent's answer to the Execute call waiting on
// dispatchID.
func (m *MuxExecutor) SubmitResult(dispatchID int64, sub Submission) error {
	m.mu.Lock()
	e, ok := m.inflight[dispatchID]
	if !ok {
		_, wasClosed := m.closed[dispatchID]
		m.mu.Unlock()
		if wasClosed {
			m.log.Error("double submit detected", slog.Int64("dispatch_id", dispatchID))
			return fmt.Errorf("dispatch_id %d already submitted", dispatchID)
		}
		m.log.Warn("submit for unknown dispatch", slog.Int64("dispatch_id", dispatchID))
		return fmt.Errorf("%w %d", ErrUnknownDispatch, dispatchID)
	}
	delete(m.inflight, dispatchID)
	m.removeQueuedLocked(dispatchID)
	m.closed[dispatchID] = struct{}{}
	m.mu.Unlock()

	e.resp <- sub
	m.log.Debug("mux result routed",
		slog.Int64("dispatch_id", dispatchID),
		slog.Bool("reproduced", sub.Outcome.Reproduced),
		slog.Bool("errored", sub.Error != ""),
	)
	return nil
}

// Pending returns the number of tasks waiting for a result.
func (m *MuxExecutor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// Abort fails every waiting Execute and NextTask call with err.
func (m *MuxExecutor) Abort(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.abortCh:
		return
	default:
	}

	m.abortErr = err
	close(m.abortCh)
	m.log.Warn("mux executor abort", slog.String("error", err.Error()))
}

func (m *MuxExecutor) abandon(id int64) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.removeQueuedLocked(id)
	m.mu.Unlock()
}

func (m *MuxExecutor) removeQueuedLocked(id int64) {
	for i, e := range m.queue {
		if e.task.DispatchID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

func (m *MuxExecutor) broadcastLocked() {
	close(m.wake)
	m.wake = make(chan struct{})
}

func (m *MuxExecutor) getAbortErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abortErr != nil {
		return m.abortErr
	}
	return errors.New("aborted")
}
