package influxdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/nora-local/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

type fakePinger struct {
	healthy bool
	err     error
	closed  bool
}

func (f *fakePinger) Ping(context.Context) (bool, error) { return f.healthy, f.err }
func (f *fakePinger) Close()                             { f.closed = true }

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient() (*Client, *fakeWriter, *fakePinger) {
	w := &fakeWriter{}
	p := &fakePinger{healthy: true}
	c := newClient(p, w)
	c.now = func() time.Time { return fixedTime }
	return c, w, p
}

func fieldsOf(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagsOf(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Org:     "nora",
		Bucket:  "local",
	}

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteLockState(t *testing.T) {
	c, w, _ := newTestClient()

	c.WriteLockState("front-door", true, true, false)

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != MeasurementLockState {
		t.Errorf("Name() = %q", p.Name())
	}
	if got := tagsOf(p)["device_id"]; got != "front-door" {
		t.Errorf("device_id tag = %q", got)
	}
	fields := fieldsOf(p)
	if fields["locked"] != true || fields["jammed"] != false || fields["online"] != true {
		t.Errorf("fields = %v", fields)
	}
	if fields["locked_nr"] != int64(1) {
		t.Errorf("locked_nr = %v (%T), want 1", fields["locked_nr"], fields["locked_nr"])
	}
	if !p.Time().Equal(fixedTime) {
		t.Errorf("Time() = %v, want %v", p.Time(), fixedTime)
	}
}

func TestWriteSceneActivation(t *testing.T) {
	c, w, _ := newTestClient()

	c.WriteSceneActivation("movie-night", false)

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	if w.points[0].Name() != MeasurementSceneActivate {
		t.Errorf("Name() = %q", w.points[0].Name())
	}
	if got := fieldsOf(w.points[0])["activated"]; got != false {
		t.Errorf("activated = %v", got)
	}
}

func TestWriteLocalCommand(t *testing.T) {
	c, w, _ := newTestClient()

	c.WriteLocalCommand("front-door", "action.devices.commands.LockUnlock", true, 1500*time.Microsecond)

	tags := tagsOf(w.points[0])
	if tags["command"] != "action.devices.commands.LockUnlock" {
		t.Errorf("command tag = %q", tags["command"])
	}
	if got := fieldsOf(w.points[0])["latency_ms"]; got != 1.5 {
		t.Errorf("latency_ms = %v, want 1.5", got)
	}
}

func TestWritesDroppedAfterClose(t *testing.T) {
	c, w, p := newTestClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !p.closed || w.flushes != 1 {
		t.Errorf("Close() closed=%v flushes=%d", p.closed, w.flushes)
	}

	c.WriteSceneActivation("movie-night", true)
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Errorf("after Close: points=%d flushes=%d", len(w.points), w.flushes)
	}

	// Second close is a no-op.
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d after second Close", w.flushes)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on empty client error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c, _, p := newTestClient()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	p.healthy = false
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail when server is unhealthy")
	}

	p.err = errors.New("connection refused")
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail when ping fails")
	}

	c.Close() //nolint:errcheck // Test
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c, _, _ := newTestClient()

	var got error
	done := make(chan struct{})
	c.SetOnError(func(err error) {
		got = err
		close(done)
	})

	errs := make(chan error, 1)
	errs <- errors.New("bucket not found")
	close(errs)
	c.handleWriteErrors(errs)

	<-done
	if !errors.Is(got, ErrWriteFailed) {
		t.Errorf("callback error = %v, want ErrWriteFailed", got)
	}
}
