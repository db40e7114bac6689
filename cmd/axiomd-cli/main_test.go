package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/axiomhive/axiomd/internal/attest"
	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/pkg/types"
)

const lintAxioms = `
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

func TestRunUsage(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "axiomd CLI") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	if code := run([]string{"axiomd", "frobnicate"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
}

func TestAdjudicateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Input map[string]any `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input["amount"] == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"attestation_id":"sha256:a1","decision":{"verdict":"accept","source":"probabilistic","confidence":0.92}}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.json")
	if err := os.WriteFile(inputPath, []byte(`{"amount":500,"country":"US"}`), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "adjudicate", "--addr", server.URL, "--token", "test-token", inputPath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "verdict=accept") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestAdjudicateMissingInputFile(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "adjudicate", "does-not-exist.json"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
}

func TestVerifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"attestation_id":"sha256:a1","valid":true}`))
	}))
	defer server.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "verify", "--addr", server.URL, "--token", "test-token", "sha256:a1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "valid=true") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestVerifyInvalidReportsNonZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"attestation_id":"sha256:a1","valid":false,"error":"signature invalid"}`))
	}))
	defer server.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "verify", "--addr", server.URL, "sha256:a1"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if !strings.Contains(stdout.String(), "valid=false") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestVerifyLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	seed := bytes.Repeat([]byte{5}, 32)
	priv, pub, err := crypto.KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	pubPath := filepath.Join(dir, "axiomd.pub")
	if err := crypto.WriteEd25519PublicKey(pubPath, pub); err != nil {
		t.Fatalf("write pubkey: %v", err)
	}

	att, err := attest.Make(
		types.Decision{Verdict: types.VerdictReject, Source: types.SourceSymbolic, Confidence: 1.0},
		[]types.ReasoningStep{{Kind: types.StepAxiomMatch, AxiomID: "A1", Verdict: types.VerdictReject}},
		"sha256:input",
		"sha256:axioms",
		"2026-03-14T09:00:00Z",
		attest.NewLocalSigner("k1", priv),
	)
	if err != nil {
		t.Fatalf("make attestation: %v", err)
	}

	attPath := filepath.Join(dir, "attestation.json")
	encoded, err := json.Marshal(att)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(attPath, encoded, 0o600); err != nil {
		t.Fatalf("write attestation: %v", err)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "verify", "--file", attPath, "--pubkey", pubPath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "valid=true") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}

	// Tamper and re-verify.
	att.Decision.Verdict = types.VerdictAccept
	encoded, _ = json.Marshal(att)
	if err := os.WriteFile(attPath, encoded, 0o600); err != nil {
		t.Fatalf("write tampered attestation: %v", err)
	}

	stdout.Reset()
	stderr.Reset()
	code = run([]string{"axiomd", "verify", "--file", attPath, "--pubkey", pubPath}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected code 1 for tampered attestation, got %d", code)
	}
	if !strings.Contains(stdout.String(), "valid=false") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestVerifyLocalRequiresPubkey(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "verify", "--file", "attestation.json"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
}

func TestAxiomsLint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "axioms.yaml")
	if err := os.WriteFile(path, []byte(lintAxioms), 0o600); err != nil {
		t.Fatalf("write axioms: %v", err)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "axioms", "lint", path}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "axiom_set_hash=sha256:") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestAxiomsLintRejectsBadSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "axioms.yaml")
	bad := `
axioms:
  - id: A1
    priority: 1
    verdict: maybe
    when:
      threshold:
        field: amount
        op: gt
        value: 1
`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("write axioms: %v", err)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	if code := run([]string{"axiomd", "axioms", "lint", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
}

func TestKeygenWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "axiomd.key")
	pubPath := filepath.Join(dir, "axiomd.pub")

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := run([]string{"axiomd", "keygen", "--out", keyPath, "--pub", pubPath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}

	priv, pub, err := crypto.LoadEd25519PrivateKey(keyPath)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	loaded, err := crypto.LoadEd25519PublicKey(pubPath)
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	if !bytes.Equal(loaded, pub) || len(priv) == 0 {
		t.Fatalf("keygen output mismatch")
	}
}

func TestMainExit(t *testing.T) {
	oldExit := exitFn
	defer func() { exitFn = oldExit }()

	var code int
	exitFn = func(c int) { code = c }

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"axiomd"}

	main()
	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
