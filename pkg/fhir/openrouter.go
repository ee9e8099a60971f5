package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
)

const transformSystemPrompt = "You are a medical records engine. Convert the " +
	"provided raw medical record into a single valid FHIR R4 Bundle JSON " +
	"document. Respond with the JSON document only, no commentary."

// Transformer derives a structured FHIR document from a raw medical record.
type Transformer interface {
	Transform(ctx context.Context, raw []byte) ([]byte, error)
}

// KeySource supplies the API credential at call time. The key is provisioned
// into the enclave after attestation, so it cannot be captured at
// construction.
type KeySource func() (string, error)

// OpenRouterClient is a Transformer backed by an OpenRouter-compatible chat
// completions endpoint.
type OpenRouterClient struct {
	http     *http.Client
	endpoint string
	model    string
	key      KeySource
}

// NewOpenRouterClient builds the transformer client.
func NewOpenRouterClient(endpoint, model string, timeout time.Duration, key KeySource) *OpenRouterClient {
	return &OpenRouterClient{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		model:    model,
		key:      key,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Transform sends the raw record through the model and returns the canonical
// form of the document it produced.
func (c *OpenRouterClient) Transform(ctx context.Context, raw []byte) ([]byte, error) {
	apiKey, err := c.key()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: transformSystemPrompt},
			{Role: "user", Content: string(raw)},
		},
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindConstruction, "marshal chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.KindConstruction, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "call model endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf(errors.KindTransport,
			"model endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(errors.KindProtocol, "decode chat response", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New(errors.KindProtocol, "chat response has no choices")
	}

	doc := stripCodeFences(out.Choices[0].Message.Content)
	canonical, err := Canonicalize([]byte(doc))
	if err != nil {
		return nil, errors.Wrap(errors.KindProtocol, "model output is not valid JSON",
			fmt.Errorf("%d bytes of output", len(doc)))
	}
	return canonical, nil
}

// stripCodeFences removes a surrounding markdown code fence, which models add
// despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
