// If you are AI: This file provides helper functions for building, configuring and running
// the bwstream binary as a subprocess in integration tests.

package itest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// testProfile is a small profile table with fast frame rates.
const testProfile = `8000,160,90,50,8000,0.3
16000,320,180,50,16000,0.6
64000,640,360,50,64000,0.9
`

// Ports holds the ports a test server listens on.
type Ports struct {
	Health int
	HTTP   int
	Ingest int
}

// BuildBinary compiles cmd/bwstream into a temporary directory.
func BuildBinary(t interface {
	TempDir() string
	Fatalf(format string, args ...any)
}) string {
	binPath := filepath.Join(t.TempDir(), "bwstream")
	out, err := exec.Command("go", "build", "-o", binPath, "../../cmd/bwstream").CombinedOutput()
	if err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	return binPath
}

// FreePorts returns three ports that were free a moment ago.
func FreePorts() (Ports, error) {
	var ports [3]int
	for i := range ports {
		ln, err := net.Listen("tcp", ":0")
		if err != nil {
			return Ports{}, fmt.Errorf("find free port: %w", err)
		}
		ports[i] = ln.Addr().(*net.TCPAddr).Port
		defer ln.Close()
	}
	return Ports{Health: ports[0], HTTP: ports[1], Ingest: ports[2]}, nil
}

// WriteConfig writes a config and profile table into dir and returns the config path.
// extra is appended verbatim to the YAML.
func WriteConfig(dir string, ports Ports, extra string) (string, error) {
	profilePath := filepath.Join(dir, "profile.csv")
	if err := os.WriteFile(profilePath, []byte(testProfile), 0o644); err != nil {
		return "", fmt.Errorf("write profile: %w", err)
	}

	content := fmt.Sprintf(`server:
  health_port: %d
  http_port: %d
  ingest_port: %d
profile:
  path: %s
log:
  level: debug
  format: console
%s`, ports.Health, ports.HTTP, ports.Ingest, profilePath, extra)

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return configPath, nil
}

// StartServer starts the binary with configPath.
func StartServer(ctx context.Context, binPath, configPath string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, binPath, "-config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}
	return cmd, nil
}

// WaitForReady waits for the readiness endpoint to report 200.
// Returns an error if the endpoint is not ready within the timeout.
func WaitForReady(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := "http://localhost:" + strconv.Itoa(port) + "/readyz"

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("readiness endpoint not available after %v", timeout)
}
