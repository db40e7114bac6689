package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/axiomhive/axiomd/internal/attest"
	"github.com/axiomhive/axiomd/internal/auth"
	"github.com/axiomhive/axiomd/internal/engine"
	"github.com/axiomhive/axiomd/pkg/types"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Auth   auth.Authenticator
	Engine *engine.Engine
}

type adjudicateRequest struct {
	Input map[string]json.RawMessage `json:"input"`
}

func (h *Handler) Adjudicate(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Engine == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "engine not configured"})
		return
	}

	var req adjudicateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Input) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing input"})
		return
	}

	in, err := decodeInput(req.Input)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	att, err := h.Engine.EvaluateAndAttest(r.Context(), in)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, att)
}

// decodeInput builds a normalized input from raw JSON field values. Only
// string, boolean, and integer scalars are accepted; fractional numbers
// have no canonical byte form and are rejected outright.
func decodeInput(raw map[string]json.RawMessage) (types.NormalizedInput, error) {
	in := make(types.NormalizedInput, len(raw))
	for name, value := range raw {
		dec := json.NewDecoder(strings.NewReader(string(value)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, errors.New("field " + name + ": invalid value")
		}
		switch typed := v.(type) {
		case string:
			in[name] = types.StringField(typed)
		case bool:
			in[name] = types.BoolField(typed)
		case json.Number:
			n, err := typed.Int64()
			if err != nil {
				return nil, errors.New("field " + name + ": only integer numbers are accepted")
			}
			in[name] = types.IntField(n)
		default:
			return nil, errors.New("field " + name + ": only string, integer, and boolean scalars are accepted")
		}
	}
	return in, nil
}

func (h *Handler) Attestations(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Engine == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "engine not configured"})
		return
	}

	attestationID := strings.TrimPrefix(r.URL.Path, "/v1/attestations/")
	if attestationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing attestation_id"})
		return
	}

	att, found, err := h.Engine.GetAttestation(attestationID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "attestation not found"})
		return
	}

	writeJSON(w, http.StatusOK, att)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Engine == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "engine not configured"})
		return
	}

	attestationID := strings.TrimPrefix(r.URL.Path, "/v1/verify/")
	if attestationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing attestation_id"})
		return
	}

	att, found, err := h.Engine.GetAttestation(attestationID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "attestation not found"})
		return
	}

	h.writeVerifyResult(w, att)
}

// VerifyBody verifies an attestation supplied by the caller rather than
// one loaded from the ledger. Third parties use this to check records
// they received out of band.
func (h *Handler) VerifyBody(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Engine == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "engine not configured"})
		return
	}

	var att types.Attestation
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&att); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	h.writeVerifyResult(w, att)
}

func (h *Handler) writeVerifyResult(w http.ResponseWriter, att types.Attestation) {
	if err := h.Engine.Verify(att); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"attestation_id": att.AttestationID,
			"valid":          false,
			"error":          err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attestation_id": att.AttestationID,
		"valid":          true,
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "schema": attest.Schema})
}

func (h *Handler) ensureAuth(w http.ResponseWriter, r *http.Request) bool {
	_, err := h.Auth.Authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
