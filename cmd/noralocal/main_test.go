package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/nerrad567/nora-local/internal/localexec"
)

func parseArgs(t *testing.T, args ...string) CLI {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongOptions()...)
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	if _, err := parser.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cli
}

func TestCLI_ConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cli := parseArgs(t, "--config", path)
	if cli.Config != path {
		t.Errorf("Config = %q, want %q", cli.Config, path)
	}
}

func TestCLI_ConfigEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	t.Setenv("NORA_LOCAL_CONFIG", path)

	cli := parseArgs(t)
	if cli.Config != path {
		t.Errorf("Config = %q, want %q", cli.Config, path)
	}
}

func TestCLI_DefaultConfig(t *testing.T) {
	t.Setenv("NORA_LOCAL_CONFIG", "")
	os.Unsetenv("NORA_LOCAL_CONFIG")

	cli := parseArgs(t)
	if !strings.HasSuffix(cli.Config, filepath.FromSlash(defaultConfigPath)) {
		t.Errorf("Config = %q, want suffix %q", cli.Config, defaultConfigPath)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

func TestRun_InvalidDevices(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "nora.db")+`"
mqtt:
  enabled: false
api:
  enabled: false
local_execution:
  enabled: false
devices:
  locks:
    - id: "front door"
      name: Front door
logging:
  output: discard
`)

	err := run(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "creating devices") {
		t.Errorf("run() error = %v, want creating devices error", err)
	}
}

// TestRun_LocalCommand starts the agent with one lock and drives it over
// the local execution endpoint and the admin API.
func TestRun_LocalCommand(t *testing.T) {
	ports := freePorts(t)
	commandPort, apiPort := ports[0], ports[1]
	dbPath := filepath.Join(t.TempDir(), "nora.db")

	path := writeConfig(t, fmt.Sprintf(`
database:
  path: %q
mqtt:
  enabled: false
api:
  enabled: true
  host: 127.0.0.1
  port: %d
local_execution:
  enabled: true
  host: 127.0.0.1
  discovery_port: %d
  reply_port: %d
  command_port: %d
  grace_period: 50ms
  audit: true
devices:
  locks:
    - id: front-door
      name: Front door
logging:
  output: discard
`, dbPath, apiPort, ports[2], ports[3], commandPort))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, path) }()

	commandURL := fmt.Sprintf("http://127.0.0.1:%d%s", commandPort, localexec.ExecutePath)
	body := `{"type":"EXECUTE","deviceId":"front-door","command":"action.devices.commands.LockUnlock","params":{"lock":true}}`

	var got string
	waitFor(t, func() bool {
		resp, err := http.Post(commandURL, "application/json", strings.NewReader(body))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		got = string(data)
		return resp.StatusCode == http.StatusOK
	})

	var state map[string]bool
	if err := json.Unmarshal([]byte(got), &state); err != nil {
		t.Fatalf("decoding %q: %v", got, err)
	}
	if !state["isLocked"] || !state["online"] {
		t.Errorf("state = %v, want locked and online", state)
	}

	auditURL := fmt.Sprintf("http://127.0.0.1:%d/api/v1/audit?entity_id=front-door", apiPort)
	waitFor(t, func() bool {
		resp, err := http.Get(auditURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var res struct {
			Total int `json:"total"`
		}
		return json.NewDecoder(resp.Body).Decode(&res) == nil && res.Total == 1
	})

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// freePorts returns four distinct ports: two free for TCP, then two free
// for UDP.
func freePorts(t *testing.T) [4]int {
	t.Helper()
	var ports [4]int
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for i := range ports {
		for {
			var port int
			if i < 2 {
				ln, err := net.Listen("tcp", "127.0.0.1:0")
				if err != nil {
					t.Fatalf("listen: %v", err)
				}
				closers = append(closers, ln)
				port = ln.Addr().(*net.TCPAddr).Port
			} else {
				pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
				if err != nil {
					t.Fatalf("listen: %v", err)
				}
				closers = append(closers, pc)
				port = pc.LocalAddr().(*net.UDPAddr).Port
			}
			if !slices.Contains(ports[:i], port) {
				ports[i] = port
				break
			}
		}
	}
	return ports
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met within 5s")
}
