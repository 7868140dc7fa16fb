package prompt

import (
	"context"
	"errors"
	"strings"
	"time"

	"manifest/internal/providers/replicate"
)

const (
	replicateDefaultTextModel = "deepseek-ai/deepseek-r1"
	replicateEnhanceTimeout   = 60 * time.Second
	replicateMaxTokens        = 1024
)

type ReplicateOptions struct {
	Client     *replicate.Client
	Model      string
	Timeout    time.Duration
	Fallback   Enhancer
	OnFallback FallbackFunc
}

// ReplicateEnhancer asks a Replicate-hosted text model to expand the goal.
type ReplicateEnhancer struct {
	fallbackChain
	client  *replicate.Client
	model   string
	timeout time.Duration
}

func NewReplicateEnhancer(opts ReplicateOptions) (*ReplicateEnhancer, error) {
	if opts.Client == nil {
		return nil, errors.New("replicate client is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = replicateEnhanceTimeout
	}
	return &ReplicateEnhancer{
		fallbackChain: fallbackChain{next: opts.Fallback, onFallback: opts.OnFallback},
		client:        opts.Client,
		model:         coalesce(opts.Model, replicateDefaultTextModel),
		timeout:       timeout,
	}, nil
}

func (r *ReplicateEnhancer) Enhance(ctx context.Context, goal string) string {
	if strings.TrimSpace(goal) == "" {
		return r.fallback(ctx, goal, "empty_goal", nil)
	}
	if !r.client.HasCredentials() {
		return r.fallback(ctx, goal, "missing_api_key", replicate.ErrMissingAPIToken)
	}
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pred, err := r.client.Run(runCtx, r.model, map[string]any{
		"prompt":      buildInstruction(goal),
		"max_tokens":  replicateMaxTokens,
		"temperature": 0.7,
	})
	if err != nil {
		return r.fallback(ctx, goal, "prediction", err)
	}
	text, err := replicate.JoinedOutput(pred.Output)
	if err != nil {
		return r.fallback(ctx, goal, "empty_output", err)
	}
	cleaned := cleanModelOutput(text)
	if cleaned == "" {
		return r.fallback(ctx, goal, "empty_output", errors.New("output contained only reasoning"))
	}
	return cleaned
}

var _ Enhancer = (*ReplicateEnhancer)(nil)
