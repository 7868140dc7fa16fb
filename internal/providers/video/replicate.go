package video

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"manifest/internal/domain"
	"manifest/internal/infra"
	"manifest/internal/providers/replicate"
)

const (
	replicateDefaultModel   = "bytedance/seedance-1-lite"
	replicateDefaultTimeout = 10 * time.Minute
)

// ReplicateOptions configures the Replicate-backed generator.
type ReplicateOptions struct {
	Client      *replicate.Client
	Model       string
	Durations   []int
	CallTimeout time.Duration
	Logger      *infra.Logger
}

// ReplicateGenerator creates segments through Replicate predictions. Each
// Generate call is bounded by the configured call timeout; exceeding it is
// reported as a provider error.
type ReplicateGenerator struct {
	client      *replicate.Client
	model       string
	durations   []int
	callTimeout time.Duration
	logger      *infra.Logger
}

// NewReplicateGenerator constructs a generator with defaults for anything
// left unset.
func NewReplicateGenerator(opts ReplicateOptions) (*ReplicateGenerator, error) {
	if opts.Client == nil {
		return nil, errors.New("video: replicate client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = replicateDefaultModel
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = replicateDefaultTimeout
	}
	durations := opts.Durations
	if len(durations) == 0 {
		durations = defaultDurations(model)
	}
	return &ReplicateGenerator{
		client:      opts.Client,
		model:       model,
		durations:   durations,
		callTimeout: timeout,
		logger:      infra.OrNop(opts.Logger),
	}, nil
}

// Model returns the configured model identifier.
func (g *ReplicateGenerator) Model() string {
	return g.model
}

// Configured implements Generator.
func (g *ReplicateGenerator) Configured() bool {
	return g.client.HasCredentials()
}

// SupportedDurations implements Generator.
func (g *ReplicateGenerator) SupportedDurations() []int {
	return append([]int(nil), g.durations...)
}

// Generate implements Generator.
func (g *ReplicateGenerator) Generate(ctx context.Context, req GenerateRequest) (*Segment, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, providerErr(errors.New("video: prompt is required"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	input := map[string]any{"prompt": prompt}
	if len(req.SeedImage) > 0 {
		input["image"] = dataURI(req.SeedImage, req.SeedImageMIME)
	}
	if req.DurationSeconds > 0 {
		input["duration"] = ClampDuration(req.DurationSeconds, g.durations)
	}
	if req.FPS > 0 {
		input["fps"] = req.FPS
	}
	if req.Resolution != "" {
		input["resolution"] = req.Resolution
	}

	pred, err := g.client.Run(ctx, g.model, input)
	if err != nil {
		return nil, providerErr(err)
	}
	segmentURL, err := replicate.LastOutput(pred.Output)
	if err != nil {
		return nil, providerErr(fmt.Errorf("prediction %s: %w", pred.ID, err))
	}
	g.logger.Debug().
		Str("request_id", req.RequestID).
		Str("prediction_id", pred.ID).
		Str("url", segmentURL).
		Msg("video: segment ready")
	return &Segment{URL: segmentURL, PredictionID: pred.ID}, nil
}

func defaultDurations(model string) []int {
	if strings.Contains(strings.ToLower(model), "seedance") {
		return []int{5, 10}
	}
	return []int{5}
}

func dataURI(data []byte, mime string) string {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func providerErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrProvider, err)
}

var _ Generator = (*ReplicateGenerator)(nil)
