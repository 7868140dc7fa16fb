package prompt

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

const (
	geminiDefaultModel   = "gemini-1.5-flash"
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Fallback   Enhancer
	OnFallback FallbackFunc
}

// GeminiEnhancer calls the generateContent endpoint of the Gemini API.
type GeminiEnhancer struct {
	remote
	endpoint string
	header   http.Header
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		CandidateCount  int     `json:"candidateCount"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// text returns the first non-blank part of any candidate.
func (r geminiResponse) text() string {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}

func NewGeminiEnhancer(opts GeminiOptions) (*GeminiEnhancer, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("gemini api key is required")
	}
	base := coalesce(strings.TrimRight(opts.BaseURL, "/"), geminiDefaultBaseURL)
	model := coalesce(opts.Model, geminiDefaultModel)
	header := http.Header{}
	header.Set("x-goog-api-key", key)
	return &GeminiEnhancer{
		remote:   newRemote(opts.HTTPClient, opts.Fallback, opts.OnFallback),
		endpoint: base + "/models/" + url.PathEscape(model) + ":generateContent",
		header:   header,
	}, nil
}

func (g *GeminiEnhancer) Enhance(ctx context.Context, goal string) string {
	if strings.TrimSpace(goal) == "" {
		return g.fallback(ctx, goal, "empty_goal", nil)
	}
	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userTurn(goal)}}}},
	}
	req.GenerationConfig.Temperature = 0.7
	req.GenerationConfig.CandidateCount = 1
	req.GenerationConfig.MaxOutputTokens = 400

	var resp geminiResponse
	if reason, err := g.post(ctx, g.endpoint, g.header, req, &resp); err != nil {
		return g.fallback(ctx, goal, reason, err)
	}
	if text := cleanModelOutput(resp.text()); text != "" {
		return text
	}
	return g.fallback(ctx, goal, "empty_response", errors.New("gemini returned no text"))
}

var _ Enhancer = (*GeminiEnhancer)(nil)
