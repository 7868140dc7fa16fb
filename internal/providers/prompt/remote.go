package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const remoteDefaultTimeout = 15 * time.Second

// remote is the HTTP plumbing shared by the chat-style enhancers.
type remote struct {
	fallbackChain
	client *http.Client
}

func newRemote(client *http.Client, next Enhancer, onFallback FallbackFunc) remote {
	if client == nil {
		client = &http.Client{Timeout: remoteDefaultTimeout}
	}
	return remote{fallbackChain: fallbackChain{next: next, onFallback: onFallback}, client: client}
}

// post sends body as JSON and decodes a 2xx reply into out. A failure comes
// back with the fallback reason tag for it.
func (r remote) post(ctx context.Context, endpoint string, header http.Header, body, out any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "encode_request", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "build_request", err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "http_request", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Sprintf("http_%d", resp.StatusCode),
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "decode_response", err
	}
	return "", nil
}

// userTurn is the user message every chat-style provider receives.
func userTurn(goal string) string {
	return "User goal: " + normalizeGoal(goal)
}
