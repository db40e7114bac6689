package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/axiomhive/axiomd/internal/config"
)

const testAxiomsYAML = `
axioms:
  - id: A1
    priority: 10
    verdict: reject
    when:
      threshold:
        field: amount
        op: gt
        value: 10000
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	axiomsPath := filepath.Join(dir, "axioms.yaml")
	if err := os.WriteFile(axiomsPath, []byte(testAxiomsYAML), 0o600); err != nil {
		t.Fatalf("write axioms: %v", err)
	}

	cfg := `
listen_addr: "127.0.0.1:0"
axioms_path: "` + axiomsPath + `"
signing_key:
  key_id: test-key
  private_key_path: "` + filepath.Join(dir, "signing.key") + `"
classifier:
  endpoint: "http://127.0.0.1:9000/score"
  default_verdict: escalate
  labels:
    legit: accept
    fraud: reject
`
	cfgPath := filepath.Join(dir, "axiomd.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestRunStartsFromConfigFile(t *testing.T) {
	cfgPath := writeTestConfig(t)

	listened := false
	listen := func(server *http.Server) error {
		listened = true
		if server.Handler == nil {
			t.Fatalf("expected handler to be set")
		}
		return http.ErrServerClosed
	}

	getenv := func(key string) string {
		if key == "AXIOMD_CONFIG_PATH" {
			return cfgPath
		}
		return ""
	}

	if err := run(nil, getenv, listen); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !listened {
		t.Fatalf("server never started")
	}
}

func TestRunGeneratesSigningKey(t *testing.T) {
	cfgPath := writeTestConfig(t)

	listen := func(_ *http.Server) error { return http.ErrServerClosed }
	getenv := func(key string) string {
		if key == "AXIOMD_CONFIG_PATH" {
			return cfgPath
		}
		return ""
	}
	if err := run(nil, getenv, listen); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keyPath := filepath.Join(filepath.Dir(cfgPath), "signing.key")
	if _, err := os.Stat(keyPath); err != nil {
		t.Fatalf("signing key not generated: %v", err)
	}

	// Second run must load the existing key instead of regenerating.
	before, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	if err := run(nil, getenv, listen); err != nil {
		t.Fatalf("second run: %v", err)
	}
	after, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("signing key regenerated on restart")
	}
}

func TestRunMissingConfig(t *testing.T) {
	listen := func(_ *http.Server) error { return http.ErrServerClosed }
	getenv := func(string) string { return "" }

	if err := run([]string{"-config", "does-not-exist.yaml"}, getenv, listen); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunListenError(t *testing.T) {
	cfgPath := writeTestConfig(t)

	listenErr := errors.New("listen failed")
	listen := func(_ *http.Server) error { return listenErr }
	getenv := func(key string) string {
		if key == "AXIOMD_CONFIG_PATH" {
			return cfgPath
		}
		return ""
	}

	if err := run(nil, getenv, listen); !errors.Is(err, listenErr) {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestOpenStoreUnsupportedDriver(t *testing.T) {
	if _, _, err := openStore(config.DBConfig{Driver: "oracle", DSN: "dsn"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "a", "b"); got != "a" {
		t.Fatalf("expected a, got %s", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}

func TestListenAndServeInvalidAddr(t *testing.T) {
	err := listenAndServe(&http.Server{Addr: "127.0.0.1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestMainNoError(t *testing.T) {
	oldRun := runFn
	oldFatal := fatalf
	defer func() {
		runFn = oldRun
		fatalf = oldFatal
	}()

	runFn = func([]string, envFn, listenFn) error { return nil }

	called := false
	fatalf = func(string, ...any) { called = true }

	main()
	if called {
		t.Fatalf("unexpected fatal call")
	}
}

func TestMainError(t *testing.T) {
	oldRun := runFn
	oldFatal := fatalf
	defer func() {
		runFn = oldRun
		fatalf = oldFatal
	}()

	runFn = func([]string, envFn, listenFn) error { return errors.New("boom") }

	called := false
	fatalf = func(string, ...any) { called = true }

	main()
	if !called {
		t.Fatalf("expected fatal call")
	}
}
