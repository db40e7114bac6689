package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/axiomhive/axiomd/internal/attest"
	"github.com/axiomhive/axiomd/internal/auth"
	"github.com/axiomhive/axiomd/internal/axiom"
	"github.com/axiomhive/axiomd/internal/classifier"
	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/internal/engine"
	"github.com/axiomhive/axiomd/internal/fusion"
	"github.com/axiomhive/axiomd/internal/ledger"
	"github.com/axiomhive/axiomd/pkg/types"
)

const routerAxioms = `
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

type fixedScorer struct{}

func (fixedScorer) Score(_ context.Context, _ types.NormalizedInput) (classifier.Score, error) {
	return classifier.Score{Label: "legit", Confidence: 0.92}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	set, err := axiom.Parse([]byte(routerAxioms))
	if err != nil {
		t.Fatalf("parse axioms: %v", err)
	}

	seed := bytes.Repeat([]byte{3}, 32)
	priv, pub, err := crypto.KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	store := ledger.NewInMemoryStore()
	if err := store.PutKey(ledger.KeyRecord{KeyID: "test-key", PublicKey: pub, CreatedAt: "2026-03-14T09:00:00Z"}); err != nil {
		t.Fatalf("register key: %v", err)
	}

	eng, err := engine.New(engine.Options{
		Axioms: set,
		Orchestrator: &fusion.Orchestrator{
			Scorer: fixedScorer{},
			Config: fusion.Config{
				Labels:  map[string]types.Verdict{"legit": types.VerdictAccept, "fraud": types.VerdictReject},
				Default: types.VerdictEscalate,
				Timeout: time.Second,
			},
		},
		Signer: attest.NewLocalSigner("test-key", priv),
		Store:  store,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	return NewRouter(&Handler{Auth: auth.NewAuthenticatorFromEnv(), Engine: eng})
}

func TestAdjudicateRequiresAuth(t *testing.T) {
	os.Setenv("AXIOMD_DEV_TOKEN", "test-token")
	defer os.Unsetenv("AXIOMD_DEV_TOKEN")

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/adjudicate", bytes.NewBufferString(`{"input":{"amount":500}}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestAdjudicateWithDevToken(t *testing.T) {
	os.Setenv("AXIOMD_DEV_TOKEN", "test-token")
	defer os.Unsetenv("AXIOMD_DEV_TOKEN")

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/adjudicate", bytes.NewBufferString(`{"input":{"amount":500,"country":"US"}}`))
	req.Header.Set("Authorization", "Bearer test-token")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var att types.Attestation
	if err := json.Unmarshal(res.Body.Bytes(), &att); err != nil {
		t.Fatalf("decode attestation: %v", err)
	}
	if att.Decision.Verdict != types.VerdictAccept || att.AttestationID == "" {
		t.Fatalf("unexpected attestation %+v", att)
	}
}

func TestAdjudicateRejectsFractionalNumbers(t *testing.T) {
	os.Setenv("AXIOMD_DEV_TOKEN", "test-token")
	defer os.Unsetenv("AXIOMD_DEV_TOKEN")

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/adjudicate", bytes.NewBufferString(`{"input":{"amount":500.25}}`))
	req.Header.Set("Authorization", "Bearer test-token")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAdjudicateInvalidJSON(t *testing.T) {
	os.Setenv("AXIOMD_DEV_TOKEN", "test-token")
	defer os.Unsetenv("AXIOMD_DEV_TOKEN")

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/adjudicate", bytes.NewBufferString(`{`))
	req.Header.Set("Authorization", "Bearer test-token")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	os.Setenv("AXIOMD_DEV_TOKEN", "test-token")
	defer os.Unsetenv("AXIOMD_DEV_TOKEN")

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/adjudicate", bytes.NewBufferString(`{"input":{"amount":20000}}`))
	req.Header.Set("Authorization", "Bearer test-token")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("adjudicate: %d %s", res.Code, res.Body.String())
	}

	var att types.Attestation
	if err := json.Unmarshal(res.Body.Bytes(), &att); err != nil {
		t.Fatalf("decode attestation: %v", err)
	}
	if att.Decision.Verdict != types.VerdictReject {
		t.Fatalf("expected symbolic reject, got %+v", att.Decision)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/verify/"+att.AttestationID, nil)
	req.Header.Set("Authorization", "Bearer test-token")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", res.Code, res.Body.String())
	}

	var verdict struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("expected valid attestation: %s", verdict.Error)
	}
}

func TestVerifyBodyDetectsTampering(t *testing.T) {
	os.Setenv("AXIOMD_DEV_TOKEN", "test-token")
	defer os.Unsetenv("AXIOMD_DEV_TOKEN")

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/adjudicate", bytes.NewBufferString(`{"input":{"amount":20000}}`))
	req.Header.Set("Authorization", "Bearer test-token")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("adjudicate: %d", res.Code)
	}

	var att types.Attestation
	if err := json.Unmarshal(res.Body.Bytes(), &att); err != nil {
		t.Fatalf("decode attestation: %v", err)
	}
	att.Decision.Verdict = types.VerdictAccept

	payload, err := json.Marshal(att)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewBuffer(payload))
	req.Header.Set("Authorization", "Bearer test-token")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("verify body: %d", res.Code)
	}

	var verdict struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if verdict.Valid {
		t.Fatalf("tampered attestation must not verify")
	}
}

func TestVerifyUnknownAttestation(t *testing.T) {
	os.Setenv("AXIOMD_DEV_TOKEN", "test-token")
	defer os.Unsetenv("AXIOMD_DEV_TOKEN")

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/verify/sha256:absent", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
