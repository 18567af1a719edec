package localexec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
)

// ExecutePath is the only route served by the command endpoint.
const ExecutePath = "/nora-local-execution"

// requestTypeExecute is the only supported request type.
const requestTypeExecute = "EXECUTE"

// maxRequestBodySize is the maximum accepted command body (1 MB).
const maxRequestBodySize = 1 << 20

// offlineBody is the answer for unknown devices and commands without a result.
var offlineBody = []byte(`{"online":false}`)

// executeRequest is the JSON body of a local command.
type executeRequest struct {
	Type     string          `json:"type"`
	DeviceID string          `json:"deviceId"`
	Command  string          `json:"command"`
	Params   json.RawMessage `json:"params"`
}

// Execution describes one dispatched EXECUTE request.
type Execution struct {
	DeviceID   string
	Command    string
	RemoteAddr string

	// Found is true when the device id was registered.
	Found bool

	// Online is true when the device produced a result.
	Online bool

	Duration time.Duration
	Err      error
}

// CommandObserver is notified after every EXECUTE request has been dispatched.
// It runs on the request goroutine and should not block.
type CommandObserver func(ctx context.Context, e Execution)

// commandHandler serves the local command endpoint.
type commandHandler struct {
	registry *Registry
	logger   Logger
	observer CommandObserver
	timeout  time.Duration
}

// newCommandHandler builds the router for the command endpoint.
//
// Unknown routes, other methods, query strings and undecodable bodies are all
// answered with 404 NOT FOUND. Recognised requests always get 200, including for devices
// that are unknown or returned nothing.
func newCommandHandler(registry *Registry, logger Logger, observer CommandObserver, timeout time.Duration) http.Handler {
	h := &commandHandler{
		registry: registry,
		logger:   logger,
		observer: observer,
		timeout:  timeout,
	}

	r := chi.NewRouter()
	r.Use(bodySizeLimitMiddleware)
	r.Post(ExecutePath, h.handleExecute)
	r.NotFound(writeNotFound)
	r.MethodNotAllowed(writeNotFound)
	return r
}

// handleExecute decodes a command request and dispatches it.
func (h *commandHandler) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.URL.RawQuery != "" {
		writeNotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Debug("reading command request",
			"remote", r.RemoteAddr,
			"error", err,
		)
		writeNotFound(w, r)
		return
	}

	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Debug("rejecting undecodable command request",
			"remote", r.RemoteAddr,
			"error", err,
		)
		writeNotFound(w, r)
		return
	}

	switch req.Type {
	case requestTypeExecute:
		h.writeResult(w, h.execute(r.Context(), req, r.RemoteAddr))
	default:
		writeNotFound(w, r)
	}
}

// execute looks the device up and runs the command, returning the value to
// send back. Unknown devices, nil results and failures all yield offlineBody.
func (h *commandHandler) execute(ctx context.Context, req executeRequest, remote string) any {
	start := time.Now()
	exec := Execution{
		DeviceID:   req.DeviceID,
		Command:    req.Command,
		RemoteAddr: remote,
	}

	var result any = json.RawMessage(offlineBody)

	if device, ok := h.registry.Find(req.DeviceID); ok {
		exec.Found = true

		callCtx := ctx
		if h.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}

		res, err := invoke(callCtx, device, req.Command, req.Params)
		switch {
		case err != nil:
			exec.Err = err
			h.logger.Warn("local command failed",
				"device_id", req.DeviceID,
				"command", req.Command,
				"error", err,
			)
		case !isNil(res):
			result = res
			exec.Online = true
		}
	}

	exec.Duration = time.Since(start)
	if h.observer != nil {
		h.observer(ctx, exec)
	}

	return result
}

// invoke calls the device, turning a panic into an error so one faulty
// device cannot take the request down with it.
func invoke(ctx context.Context, d Device, command string, params json.RawMessage) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("device %s panicked: %v", d.ID(), p)
		}
	}()
	return d.ExecuteCommand(ctx, command, params)
}

// isNil reports whether v is nil or a nil pointer, map, slice or similar
// wrapped in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// writeResult writes v as a single JSON body with status 200.
func (h *commandHandler) writeResult(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding command result", "error", err)
		body = offlineBody
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(body)
}

// writeNotFound writes the plain-text 404 used for everything unrecognised.
func writeNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	io.WriteString(w, "NOT FOUND")
}

// bodySizeLimitMiddleware caps request bodies at maxRequestBodySize.
func bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}
