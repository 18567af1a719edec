package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/nora-local/internal/device"
	"github.com/nerrad567/nora-local/internal/infrastructure/mqtt"
	"github.com/nerrad567/nora-local/internal/localexec"
)

// DefaultRetryDelay is the wait before re-registering a device after the
// shared local execution listeners failed.
const DefaultRetryDelay = 10 * time.Second

// Bus is the MQTT surface used by adapters. *mqtt.Client satisfies it.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishJSON(topic string, v any, retained bool) error
}

// Registrar joins a device to local execution for as long as ctx lives.
// *localexec.Service satisfies it.
type Registrar interface {
	Register(ctx context.Context, d localexec.Device) error
}

// Telemetry records device activity. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteLockState(deviceID string, online, locked, jammed bool)
	WriteSceneActivation(deviceID string, activated bool)
}

// Logger is the logging surface used by adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the collaborators shared by all adapters.
type Options struct {
	Bus       Bus
	Topics    mqtt.Topics
	QoS       byte
	Registrar Registrar
	Telemetry Telemetry
	Logger    Logger

	// RetryDelay overrides DefaultRetryDelay.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// Adapter runs one device until its context is cancelled.
type Adapter interface {
	ID() string
	Run(ctx context.Context) error
}

// describedDevice is a device that publishes its description.
type describedDevice interface {
	localexec.Device
	Info() device.Info
	SetOnInfoChange(fn func(device.Info))
}

// runner holds what every adapter does regardless of device type.
type runner struct {
	dev    describedDevice
	opts   Options
	logger Logger
}

func newRunner(dev describedDevice, opts Options) runner {
	opts = opts.withDefaults()
	return runner{
		dev:    dev,
		opts:   opts,
		logger: opts.Logger,
	}
}

// ID returns the device id.
func (r *runner) ID() string {
	return r.dev.ID()
}

// run publishes the description, subscribes inputs, serves local
// execution and cleans up when ctx ends.
func (r *runner) run(ctx context.Context, inputs map[string]mqtt.MessageHandler) error {
	id := r.dev.ID()

	r.dev.SetOnInfoChange(r.publishConfig)
	defer r.dev.SetOnInfoChange(nil)
	r.publishConfig(r.dev.Info())

	if r.opts.Bus != nil {
		for topic, handler := range inputs {
			if err := r.opts.Bus.Subscribe(topic, r.opts.QoS, handler); err != nil {
				return fmt.Errorf("subscribing %s: %w", topic, err)
			}
			defer r.unsubscribe(topic)
		}
	}

	r.logger.Info("device adapter started", "device_id", id, "type", r.dev.Info().Type)
	defer r.logger.Info("device adapter stopped", "device_id", id)

	if r.opts.Registrar == nil {
		<-ctx.Done()
		return nil
	}
	r.serveLocal(ctx)
	return nil
}

// serveLocal keeps the device registered with local execution until ctx
// ends. Listener failures are logged and retried; the rest of the adapter
// keeps working meanwhile.
func (r *runner) serveLocal(ctx context.Context) {
	for {
		err := r.opts.Registrar.Register(ctx, r.dev)
		if err == nil || ctx.Err() != nil {
			return
		}
		if errors.Is(err, localexec.ErrInvalidDevice) {
			r.logger.Error("device rejected by local execution", "device_id", r.dev.ID(), "error", err)
			<-ctx.Done()
			return
		}

		r.logger.Error("local execution unavailable, retrying",
			"device_id", r.dev.ID(),
			"retry_in", r.opts.RetryDelay,
			"error", err,
		)

		t := time.NewTimer(r.opts.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (r *runner) publishConfig(info device.Info) {
	r.publish(r.opts.Topics.DeviceConfig(info.ID), info, true)
}

func (r *runner) publish(topic string, v any, retained bool) {
	if r.opts.Bus == nil {
		return
	}
	if err := r.opts.Bus.PublishJSON(topic, v, retained); err != nil {
		r.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}

func (r *runner) unsubscribe(topic string) {
	if err := r.opts.Bus.Unsubscribe(topic); err != nil {
		r.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
	}
}
