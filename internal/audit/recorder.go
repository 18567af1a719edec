package audit

import (
	"context"

	"github.com/nerrad567/nora-local/internal/localexec"
)

const (
	// DefaultQueueSize is the buffer for pending entries. Entries beyond
	// this are dropped so a slow disk never holds up a command response.
	DefaultQueueSize = 256

	// SourceLocalExecution tags entries written for local commands.
	SourceLocalExecution = "local_execution"

	actionCommand    = "command"
	entityTypeDevice = "device"
)

// Logger is the logging surface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues audit entries and writes them serially from Run.
type Recorder struct {
	repo   Repository
	queue  chan *AuditLog
	logger Logger
}

// NewRecorder creates a recorder writing to repo. A queueSize of zero
// or less uses DefaultQueueSize.
func NewRecorder(repo Repository, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		queue:  make(chan *AuditLog, queueSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Observe records one executed command. It matches
// localexec.CommandObserver and never blocks.
func (r *Recorder) Observe(_ context.Context, e localexec.Execution) {
	details := map[string]any{
		"command":     e.Command,
		"found":       e.Found,
		"online":      e.Online,
		"duration_ms": e.Duration.Milliseconds(),
	}
	if e.RemoteAddr != "" {
		details["remote_addr"] = e.RemoteAddr
	}
	if e.Err != nil {
		details["error"] = e.Err.Error()
	}

	r.Enqueue(&AuditLog{
		Action:     actionCommand,
		EntityType: entityTypeDevice,
		EntityID:   e.DeviceID,
		Source:     SourceLocalExecution,
		Details:    details,
	})
}

// Enqueue adds an entry for asynchronous write. If the queue is full the
// entry is dropped and a warning is logged.
func (r *Recorder) Enqueue(entry *AuditLog) {
	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_id", entry.EntityID,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	// Writes outlive the request and the shutdown signal.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}
