package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

// remoteCase drives both chat-style enhancers through the same failures.
type remoteCase struct {
	name       string
	reply      func(*http.Request) (*http.Response, error)
	wantReason string
}

var remoteFailures = []remoteCase{
	{
		name:       "transport",
		reply:      func(*http.Request) (*http.Response, error) { return nil, errors.New("boom") },
		wantReason: "http_request",
	},
	{
		name: "rate_limited",
		reply: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusTooManyRequests, `{}`), nil
		},
		wantReason: "http_429",
	},
	{
		name:       "bad_json",
		reply:      func(*http.Request) (*http.Response, error) { return jsonResponse(http.StatusOK, `{`), nil },
		wantReason: "decode_response",
	},
}

func newEnhancerFor(t *testing.T, provider string, rt roundTripFunc, next Enhancer, onFallback FallbackFunc) Enhancer {
	t.Helper()
	client := &http.Client{Transport: rt}
	var (
		e   Enhancer
		err error
	)
	switch provider {
	case "gemini":
		e, err = NewGeminiEnhancer(GeminiOptions{APIKey: "k", HTTPClient: client, Fallback: next, OnFallback: onFallback})
	case "openai":
		e, err = NewOpenAIEnhancer(OpenAIOptions{APIKey: "k", HTTPClient: client, Fallback: next, OnFallback: onFallback})
	}
	if err != nil {
		t.Fatalf("new %s enhancer: %v", provider, err)
	}
	return e
}

func TestRemoteEnhancersFallBack(t *testing.T) {
	for _, provider := range []string{"gemini", "openai"} {
		for _, tc := range remoteFailures {
			t.Run(provider+"/"+tc.name, func(t *testing.T) {
				next := &fakeEnhancer{text: "from next"}
				var reason string
				e := newEnhancerFor(t, provider, tc.reply, next, func(r string, err error) {
					reason = r
					if err == nil {
						t.Error("fallback error is nil")
					}
				})
				if got := e.Enhance(context.Background(), "surfing"); got != "from next" {
					t.Fatalf("Enhance = %q, want chained result", got)
				}
				if reason != tc.wantReason {
					t.Fatalf("reason = %q, want %q", reason, tc.wantReason)
				}
				if next.calls != 1 {
					t.Fatalf("next called %d times, want 1", next.calls)
				}
			})
		}
	}
}

func TestRemoteEnhancersSkipEmptyGoal(t *testing.T) {
	for _, provider := range []string{"gemini", "openai"} {
		called := false
		var reason string
		e := newEnhancerFor(t, provider, func(*http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("unexpected call")
		}, nil, func(r string, _ error) { reason = r })

		got := e.Enhance(context.Background(), "   ")
		if called {
			t.Fatalf("%s: provider called for an empty goal", provider)
		}
		if reason != "empty_goal" {
			t.Fatalf("%s: reason = %q, want empty_goal", provider, reason)
		}
		if got != NewStaticEnhancer().Enhance(context.Background(), "") {
			t.Fatalf("%s: Enhance = %q, want static template", provider, got)
		}
	}
}

func TestGeminiEnhancerRequest(t *testing.T) {
	e, err := NewGeminiEnhancer(GeminiOptions{
		APIKey:  "dummy",
		BaseURL: "https://gemini.test/v1beta/",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("x-goog-api-key") != "dummy" {
				t.Errorf("x-goog-api-key = %q", r.Header.Get("x-goog-api-key"))
			}
			if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
				t.Errorf("path = %q", r.URL.Path)
			}
			var body geminiRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode: %v", err)
			}
			if body.SystemInstruction == nil || body.SystemInstruction.Parts[0].Text != systemPrompt {
				t.Errorf("system instruction not sent")
			}
			if body.Contents[0].Parts[0].Text != "User goal: me surfing" {
				t.Errorf("user turn = %q", body.Contents[0].Parts[0].Text)
			}
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":" "},{"text":"  Surfer carving a wave at dusk. "}]}}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiEnhancer returned error: %v", err)
	}
	if got := e.Enhance(context.Background(), "surfing"); got != "Surfer carving a wave at dusk." {
		t.Fatalf("Enhance = %q", got)
	}
}

func TestGeminiEnhancerEmptyCandidates(t *testing.T) {
	var reason string
	e := newEnhancerFor(t, "gemini", func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
	}, nil, func(r string, _ error) { reason = r })
	e.Enhance(context.Background(), "x")
	if reason != "empty_response" {
		t.Fatalf("reason = %q, want empty_response", reason)
	}
}

func TestNewRemoteEnhancersRequireKey(t *testing.T) {
	if _, err := NewGeminiEnhancer(GeminiOptions{APIKey: " "}); err == nil {
		t.Fatal("gemini: expected error without api key")
	}
	if _, err := NewOpenAIEnhancer(OpenAIOptions{}); err == nil {
		t.Fatal("openai: expected error without api key")
	}
}
