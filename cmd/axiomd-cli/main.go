package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/axiomhive/axiomd/internal/attest"
	"github.com/axiomhive/axiomd/internal/axiom"
	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/pkg/types"
)

const defaultAddr = "http://localhost:8080"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "adjudicate":
		return handleAdjudicate(args[2:], stdout, stderr)
	case "verify":
		return handleVerify(args[2:], stdout, stderr)
	case "axioms":
		return handleAxioms(args[2:], stdout, stderr)
	case "keygen":
		return handleKeygen(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleAdjudicate(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("adjudicate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("AXIOMD_ADDR", defaultAddr), "axiomd API address")
	jsonOut := fs.Bool("json", false, "print raw JSON response")
	token := fs.String("token", envOrDefault("AXIOMD_TOKEN", os.Getenv("AXIOMD_DEV_TOKEN")), "bearer token")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "adjudicate requires <input.json>")
		fs.Usage()
		return 2
	}

	// #nosec G304 -- path is operator-provided input file.
	inputJSON, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	payload, err := json.Marshal(map[string]json.RawMessage{"input": inputJSON})
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	respBody, status, err := httpPost(http.DefaultClient, *addr+"/v1/adjudicate", *token, payload)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if status != http.StatusOK {
		fmt.Fprintf(stderr, "adjudicate failed: %s\n", strings.TrimSpace(string(respBody)))
		return 1
	}

	if *jsonOut {
		_, _ = stdout.Write(respBody)
		return 0
	}

	var att types.Attestation
	if err := json.Unmarshal(respBody, &att); err != nil {
		fmt.Fprintln(stderr, "invalid response:", err)
		return 1
	}
	fmt.Fprintf(stdout, "verdict=%s source=%s confidence=%.4f attestation_id=%s\n",
		att.Decision.Verdict, att.Decision.Source, att.Decision.Confidence, att.AttestationID)
	return 0
}

func handleVerify(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("AXIOMD_ADDR", defaultAddr), "axiomd API address")
	jsonOut := fs.Bool("json", false, "print raw JSON response")
	token := fs.String("token", envOrDefault("AXIOMD_TOKEN", os.Getenv("AXIOMD_DEV_TOKEN")), "bearer token")
	file := fs.String("file", "", "verify a local attestation JSON file instead of a stored one")
	pubkey := fs.String("pubkey", "", "public key file for local verification")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	if *file != "" {
		return verifyLocal(*file, *pubkey, stdout, stderr)
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "verify requires <attestation_id> or --file")
		fs.Usage()
		return 2
	}
	attestationID := fs.Arg(0)

	respBody, status, err := httpGet(http.DefaultClient, *addr+"/v1/verify/"+attestationID, *token)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if status != http.StatusOK {
		fmt.Fprintf(stderr, "verify failed: %s\n", strings.TrimSpace(string(respBody)))
		return 1
	}

	if *jsonOut {
		_, _ = stdout.Write(respBody)
		return 0
	}

	var payload struct {
		AttestationID string `json:"attestation_id"`
		Valid         bool   `json:"valid"`
		Error         string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		fmt.Fprintln(stderr, "invalid response:", err)
		return 1
	}

	if payload.Valid {
		fmt.Fprintf(stdout, "valid=true attestation_id=%s\n", payload.AttestationID)
		return 0
	}
	fmt.Fprintf(stdout, "valid=false attestation_id=%s error=%s\n", payload.AttestationID, payload.Error)
	return 1
}

// verifyLocal checks an attestation file against a public key without
// contacting the gateway. This is the offline third-party path.
func verifyLocal(file string, pubkeyPath string, stdout io.Writer, stderr io.Writer) int {
	if pubkeyPath == "" {
		fmt.Fprintln(stderr, "--file requires --pubkey")
		return 2
	}

	// #nosec G304 -- paths are operator-provided.
	raw, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	var att types.Attestation
	if err := json.Unmarshal(raw, &att); err != nil {
		fmt.Fprintln(stderr, "invalid attestation file:", err)
		return 1
	}

	pub, err := crypto.LoadEd25519PublicKey(pubkeyPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	err = attest.Verify(att, func(string) (ed25519.PublicKey, bool) {
		return pub, true
	})
	if err != nil {
		fmt.Fprintf(stdout, "valid=false attestation_id=%s error=%s\n", att.AttestationID, err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "valid=true attestation_id=%s\n", att.AttestationID)
	return 0
}

func handleAxioms(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "lint":
		fs := flag.NewFlagSet("axioms lint", flag.ContinueOnError)
		fs.SetOutput(stderr)
		if err := fs.Parse(args[1:]); err != nil {
			fs.Usage()
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "axioms lint requires <axioms_path>")
			fs.Usage()
			return 2
		}
		set, err := axiom.Load(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "ok axioms=%d axiom_set_hash=%s\n", len(set.Axioms), set.Hash)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

func handleKeygen(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "axiomd.key", "private key output path")
	pubOut := fs.String("pub", "axiomd.pub", "public key output path")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	seed, err := crypto.GenerateSeed()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	_, pub, err := crypto.KeyPairFromSeed(seed)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	if err := crypto.WriteEd25519Seed(*out, seed); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := crypto.WriteEd25519PublicKey(*pubOut, pub); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s and %s\n", *out, *pubOut)
	return 0
}

func httpGet(client *http.Client, url string, token string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func httpPost(client *http.Client, url string, token string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func usage(w io.Writer) {
	fmt.Fprint(w, `axiomd CLI

Usage:
  axiomd adjudicate <input.json> [--addr URL] [--json] [--token TOKEN]
  axiomd verify <attestation_id> [--addr URL] [--json] [--token TOKEN]
  axiomd verify --file attestation.json --pubkey axiomd.pub
  axiomd axioms lint <axioms_path>
  axiomd keygen [--out axiomd.key] [--pub axiomd.pub]
`)
}
