package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/axiomhive/axiomd/pkg/types"
)

// HTTPScorer calls a remote scoring endpoint:
// POST endpoint with {"input": {...}} returning {"label": ..., "confidence": ...}.
type HTTPScorer struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

type scoreRequest struct {
	Input map[string]any `json:"input"`
}

func (s *HTTPScorer) Score(ctx context.Context, in types.NormalizedInput) (Score, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(scoreRequest{Input: in.CanonicalView()})
	if err != nil {
		return Score{}, &ScoreError{Reason: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Score{}, &ScoreError{Reason: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Score{}, ctx.Err()
		}
		return Score{}, &ScoreError{Reason: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Score{}, &ScoreError{Reason: err.Error(), Transient: true}
	}

	if resp.StatusCode >= 500 {
		return Score{}, &ScoreError{Reason: fmt.Sprintf("scorer returned %d", resp.StatusCode), Transient: true}
	}
	if resp.StatusCode != http.StatusOK {
		return Score{}, &ScoreError{Reason: fmt.Sprintf("scorer returned %d", resp.StatusCode)}
	}

	var score Score
	if err := json.Unmarshal(payload, &score); err != nil {
		return Score{}, &ScoreError{Reason: fmt.Sprintf("decode response: %v", err)}
	}
	if score.Label == "" {
		return Score{}, &ScoreError{Reason: "scorer returned empty label"}
	}
	if score.Confidence < 0 || score.Confidence > 1 {
		return Score{}, &ScoreError{Reason: fmt.Sprintf("confidence %v outside [0,1]", score.Confidence)}
	}
	return score, nil
}
