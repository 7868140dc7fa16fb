package prompt

import (
	"context"
	"fmt"
)

// Enhancer turns a short user goal into a detailed video prompt. Enhance
// never fails: implementations fall back to a deterministic template.
type Enhancer interface {
	Enhance(ctx context.Context, goal string) string
}

// FallbackFunc is notified whenever a remote enhancer gives up on its
// provider. reason is a short machine-readable tag such as "http_request".
type FallbackFunc func(reason string, err error)

type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

func (s *StaticEnhancer) Enhance(_ context.Context, goal string) string {
	subject := subjectPhrase(normalizeGoal(goal))
	if subject == "" {
		subject = "achieving their goal"
	}
	return fmt.Sprintf("Create a cinematic, inspiring video showing a person %s. "+
		"The video should be uplifting, motivational, and visually stunning. "+
		"High-quality cinematography, natural lighting, realistic movement.", subject)
}

// fallbackChain is embedded by remote enhancers.
type fallbackChain struct {
	next       Enhancer
	onFallback FallbackFunc
}

func (f fallbackChain) fallback(ctx context.Context, goal, reason string, err error) string {
	if f.onFallback != nil {
		f.onFallback(reason, err)
	}
	if f.next != nil {
		return f.next.Enhance(ctx, goal)
	}
	return NewStaticEnhancer().Enhance(ctx, goal)
}

var _ Enhancer = (*StaticEnhancer)(nil)
