package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/nora-local/internal/localexec"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu   sync.Mutex
	logs []AuditLog
	err  error
}

func (m *memRepo) Create(_ context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*ListResult, error) {
	return nil, errors.New("not implemented")
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

type countingLogger struct {
	mu     sync.Mutex
	warns  int
	errors int
}

func (l *countingLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *countingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func (l *countingLogger) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns, l.errors
}

func TestRecorderObserve(t *testing.T) {
	repo := &memRepo{}
	r := NewRecorder(repo, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	var observer localexec.CommandObserver = r.Observe
	observer(context.Background(), localexec.Execution{
		DeviceID:   "lock-1",
		Command:    "action.devices.commands.LockUnlock",
		RemoteAddr: "192.168.1.20:51234",
		Found:      true,
		Online:     true,
		Duration:   12 * time.Millisecond,
	})

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	got := repo.logs[0]
	assert.Equal(t, "command", got.Action)
	assert.Equal(t, "device", got.EntityType)
	assert.Equal(t, "lock-1", got.EntityID)
	assert.Equal(t, SourceLocalExecution, got.Source)
	assert.Equal(t, "action.devices.commands.LockUnlock", got.Details["command"])
	assert.Equal(t, true, got.Details["found"])
	assert.Equal(t, true, got.Details["online"])
	assert.Equal(t, int64(12), got.Details["duration_ms"])
	assert.Equal(t, "192.168.1.20:51234", got.Details["remote_addr"])
	assert.NotContains(t, got.Details, "error")
}

func TestRecorderObserveRecordsError(t *testing.T) {
	repo := &memRepo{}
	r := NewRecorder(repo, 1)

	r.Observe(context.Background(), localexec.Execution{
		DeviceID: "lock-1",
		Found:    true,
		Err:      errors.New("boom"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, "boom", repo.logs[0].Details["error"])
	assert.NotContains(t, repo.logs[0].Details, "remote_addr")
}

func TestRecorderDropsWhenFull(t *testing.T) {
	repo := &memRepo{}
	logger := &countingLogger{}
	r := NewRecorder(repo, 2)
	r.SetLogger(logger)

	for range 5 {
		r.Enqueue(&AuditLog{Action: "command"})
	}
	warns, _ := logger.counts()
	assert.Equal(t, 3, warns)

	// Run drains the backlog on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)
	assert.Equal(t, 2, repo.count())
}

func TestRecorderLogsWriteFailure(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	logger := &countingLogger{}
	r := NewRecorder(repo, 4)
	r.SetLogger(logger)
	r.SetLogger(nil)

	r.Enqueue(&AuditLog{Action: "command"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	_, errs := logger.counts()
	assert.Equal(t, 1, errs)
}
