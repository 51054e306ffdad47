package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// a2aMessage is the JSON-RPC message/send param shape.
type a2aMessage struct {
	Role      string      `json:"role"`
	Parts     []a2aPart   `json:"parts"`
	MessageID string      `json:"messageId"`
	Metadata  a2aMetadata `json:"metadata"`
}

type a2aPart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type a2aMetadata struct {
	Depth int `json:"depth"`
}

type a2aRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	ID      string        `json:"id"`
	Params  a2aSendParams `json:"params"`
}

type a2aSendParams struct {
	Message a2aMessage `json:"message"`
}

type a2aResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      string       `json:"id"`
	Result  *a2aResult   `json:"result"`
	Error   *a2aRPCError `json:"error"`
}

type a2aRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// a2aResult models the sum type result: Task | Message. Both shapes are
// optional fields on one struct rather than a tagged union, since the wire
// format distinguishes them structurally (a Task carries status/artifacts).
type a2aResult struct {
	Artifacts []a2aArtifact `json:"artifacts"`
	Parts     []a2aPart     `json:"parts"`
	Status    *a2aStatus    `json:"status"`
}

type a2aArtifact struct {
	Parts []a2aPart `json:"parts"`
}

type a2aStatus struct {
	State   string      `json:"state"`
	Message *a2aMessage `json:"message"`
}

// newA2ARequest builds a message/send JSON-RPC envelope carrying text at the
// given routing depth.
func newA2ARequest(text string, depth int) a2aRequest {
	return a2aRequest{
		JSONRPC: "2.0",
		Method:  "message/send",
		ID:      uuid.NewString(),
		Params: a2aSendParams{
			Message: a2aMessage{
				Role:      "user",
				Parts:     []a2aPart{{Kind: "text", Text: text}},
				MessageID: uuid.NewString(),
				Metadata:  a2aMetadata{Depth: depth},
			},
		},
	}
}

// sendA2A posts an A2A message/send request to url and returns the
// extracted reply text, per the §6 wire format.
func sendA2A(ctx context.Context, client *http.Client, url, text string, depth int) (string, error) {
	reqBody, err := json.Marshal(newA2ARequest(text, depth))
	if err != nil {
		return "", fmt.Errorf("encode a2a request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var envelope a2aResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode a2a response: %w", err)
	}
	if envelope.Error != nil {
		return "", fmt.Errorf("a2a error: %s", envelope.Error.Message)
	}
	if envelope.Result == nil {
		return "", fmt.Errorf("no response from agent")
	}

	text, ok := extractText(envelope.Result)
	if !ok {
		return "", fmt.Errorf("no response from agent")
	}
	return text, nil
}

// extractText concatenates, in order, the text of artifacts' parts, then
// top-level parts, then status.message parts. Returns ok=false if the
// concatenation is empty (invariant 8: text-extraction round-trip).
func extractText(result *a2aResult) (string, bool) {
	var pieces []string

	for _, artifact := range result.Artifacts {
		for _, part := range artifact.Parts {
			if part.Text != "" {
				pieces = append(pieces, part.Text)
			}
		}
	}
	for _, part := range result.Parts {
		if part.Text != "" {
			pieces = append(pieces, part.Text)
		}
	}
	if result.Status != nil && result.Status.Message != nil {
		for _, part := range result.Status.Message.Parts {
			if part.Text != "" {
				pieces = append(pieces, part.Text)
			}
		}
	}

	joined := strings.Join(pieces, "\n")
	if joined == "" {
		return "", false
	}
	return joined, true
}
