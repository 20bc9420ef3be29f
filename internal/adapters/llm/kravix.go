package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// KravixClient calls a hosted chat endpoint that takes the whole transcript and
// returns {"aiResponse": "..."}.
type KravixClient struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

func NewKravixClient(endpoint, apiKey, model string, httpClient *http.Client) *KravixClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &KravixClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		http:     httpClient,
	}
}

type kravixRequest struct {
	Message    []domain.Turn `json:"message"`
	AIModel    string        `json:"aiModel"`
	OutputType string        `json:"outputType"`
}

type kravixResponse struct {
	AIResponse *string `json:"aiResponse"`
}

func (k *KravixClient) Complete(ctx context.Context, turns []domain.Turn) (string, error) {
	body, err := json.Marshal(kravixRequest{
		Message:    turns,
		AIModel:    k.model,
		OutputType: "text",
	})
	if err != nil {
		return "", fmt.Errorf("kravix encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kravix build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+k.apiKey)

	resp, err := k.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("kravix request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("kravix read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("kravix status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var out kravixResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("kravix decode response: %w", err)
	}
	if out.AIResponse == nil {
		return "", fmt.Errorf("kravix response has no aiResponse")
	}
	return *out.AIResponse, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
