package prompt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	openAIDefaultModel   = "gpt-4o-mini"
	openAIDefaultBaseURL = "https://api.openai.com/v1"
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Enhancer
	OnFallback   FallbackFunc
	// OnWarning reports a configured model that was rewritten, with reason
	// "model_alias" or "model_defaulted".
	OnWarning func(reason, detail string)
}

// OpenAIEnhancer calls the chat completions endpoint.
type OpenAIEnhancer struct {
	remote
	model    string
	endpoint string
	header   http.Header
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// openAIModels maps accepted spellings to the model sent upstream. Entries
// that are not the canonical name are aliases.
var openAIModels = map[string]string{
	"gpt-4o-mini":            "gpt-4o-mini",
	"gpt-4o":                 "gpt-4o",
	"gpt-4.1":                "gpt-4.1",
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt4o":                  "gpt-4o",
	"gpt4.1":                 "gpt-4.1",
}

var modelSeparators = strings.NewReplacer("_", "-", " ", "-")

// normalizeOpenAIModel resolves name to a supported model and says how:
// "" when it was already canonical, "alias" or "defaulted" otherwise.
func normalizeOpenAIModel(name string) (string, string) {
	key := modelSeparators.Replace(lower(strings.TrimSpace(name)))
	if key == "" {
		return openAIDefaultModel, ""
	}
	model, ok := openAIModels[key]
	switch {
	case !ok:
		return openAIDefaultModel, "defaulted"
	case model != key:
		return model, "alias"
	default:
		return model, ""
	}
}

func NewOpenAIEnhancer(opts OpenAIOptions) (*OpenAIEnhancer, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("openai api key is required")
	}
	model, how := normalizeOpenAIModel(opts.Model)
	if how != "" && opts.OnWarning != nil {
		opts.OnWarning("model_"+how, fmt.Sprintf("requested=%s resolved=%s", coalesce(opts.Model, openAIDefaultModel), model))
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+key)
	if org := strings.TrimSpace(opts.Organization); org != "" {
		header.Set("OpenAI-Organization", org)
	}
	return &OpenAIEnhancer{
		remote:   newRemote(opts.HTTPClient, opts.Fallback, opts.OnFallback),
		model:    model,
		endpoint: coalesce(strings.TrimRight(opts.BaseURL, "/"), openAIDefaultBaseURL) + "/chat/completions",
		header:   header,
	}, nil
}

func (o *OpenAIEnhancer) Enhance(ctx context.Context, goal string) string {
	if strings.TrimSpace(goal) == "" {
		return o.fallback(ctx, goal, "empty_goal", nil)
	}
	req := chatRequest{
		Model:       o.model,
		Temperature: 0.7,
		MaxTokens:   400,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userTurn(goal)},
		},
	}
	var resp chatResponse
	if reason, err := o.post(ctx, o.endpoint, o.header, req, &resp); err != nil {
		return o.fallback(ctx, goal, reason, err)
	}
	if len(resp.Choices) == 0 {
		return o.fallback(ctx, goal, "empty_choices", errors.New("openai returned no choices"))
	}
	if text := cleanModelOutput(resp.Choices[0].Message.Content); text != "" {
		return text
	}
	return o.fallback(ctx, goal, "empty_response", errors.New("openai returned an empty message"))
}

var _ Enhancer = (*OpenAIEnhancer)(nil)
