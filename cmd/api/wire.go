package main

import (
	"context"
	"fmt"

	"manifest/internal/infra"
	"manifest/internal/jobstore"
	"manifest/internal/media"
	"manifest/internal/orchestrator"
	"manifest/internal/payment"
	"manifest/internal/providers/prompt"
	"manifest/internal/providers/replicate"
	"manifest/internal/providers/video"
	"manifest/internal/storage"
)

func buildService(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*orchestrator.Service, error) {
	rc := replicate.NewClient(replicate.Options{
		APIToken: cfg.ReplicateAPIToken,
		BaseURL:  cfg.ReplicateBaseURL,
		Logger:   logger,
	})
	if !rc.HasCredentials() {
		logger.Warn().Msg("REPLICATE_API_TOKEN is not set; submissions will be rejected")
	}

	generator, err := video.NewReplicateGenerator(video.ReplicateOptions{
		Client:      rc,
		Model:       cfg.ReplicateVideoModel,
		Durations:   cfg.SegmentDurations,
		CallTimeout: cfg.ProviderTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("video provider: %w", err)
	}

	enhancer, err := buildEnhancer(cfg, rc, logger)
	if err != nil {
		return nil, fmt.Errorf("prompt provider: %w", err)
	}

	workspace, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	opts := orchestrator.Options{
		Store:     jobstore.New(),
		Generator: generator,
		Enhancer:  enhancer,
		Media: media.NewPipeline(media.Options{
			FFmpegPath:      cfg.FFmpegPath,
			FFprobePath:     cfg.FFprobePath,
			DownloadTimeout: cfg.DownloadTimeout,
			Logger:          logger,
		}),
		Workspace: workspace,
		Preview: orchestrator.ModeParams{
			SegmentSeconds: cfg.PreviewSegmentSeconds,
			FPS:            cfg.PreviewFPS,
			Width:          cfg.PreviewWidth,
			PreviewSeconds: cfg.PreviewLengthSeconds,
		},
		Full: orchestrator.ModeParams{
			SegmentSeconds:   cfg.FullSegmentSeconds,
			FPS:              cfg.FullFPS,
			Width:            cfg.FullWidth,
			CrossfadeSeconds: cfg.CrossfadeSeconds,
		},
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		MaxQueuedJobs:     cfg.MaxQueuedJobs,
		Logger:            logger,
	}

	if cfg.ObjectStorageEnabled() {
		pub, err := storage.NewObjectPublisher(storage.ObjectStoreOptions{
			Endpoint:      cfg.ObjectStorageEndpoint,
			AccessKey:     cfg.ObjectStorageAccessKey,
			SecretKey:     cfg.ObjectStorageSecretKey,
			Bucket:        cfg.ObjectStorageBucket,
			Region:        cfg.ObjectStorageRegion,
			UseSSL:        cfg.ObjectStorageUseSSL,
			PublicBaseURL: cfg.ObjectStoragePublicURL,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		if err := pub.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		opts.Publisher = pub
		logger.Info().Str("bucket", cfg.ObjectStorageBucket).Msg("publishing artifacts to object storage")
	}

	if cfg.PaymentEnforced {
		verifier, err := payment.NewStripeVerifier(payment.StripeOptions{
			SecretKey: cfg.StripeSecretKey,
			BaseURL:   cfg.StripeBaseURL,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("payment: %w", err)
		}
		opts.Payments = payment.NewLedger(verifier)
	}

	return orchestrator.New(opts)
}

func buildEnhancer(cfg *infra.Config, rc *replicate.Client, logger *infra.Logger) (prompt.Enhancer, error) {
	onFallback := func(provider string) prompt.FallbackFunc {
		return func(reason string, err error) {
			logger.Warn().Err(err).Str("provider", provider).Str("reason", reason).Msg("prompt enhancement fell back")
		}
	}
	static := prompt.NewStaticEnhancer()

	provider := cfg.PromptProvider
	if (provider == "gemini" && cfg.GeminiAPIKey == "") || (provider == "openai" && cfg.OpenAIAPIKey == "") {
		logger.Warn().Str("provider", provider).Msg("prompt provider has no api key; using the static template")
		provider = "static"
	}

	switch provider {
	case "static":
		return static, nil
	case "gemini":
		return prompt.NewGeminiEnhancer(prompt.GeminiOptions{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			Fallback:   static,
			OnFallback: onFallback("gemini"),
		})
	case "openai":
		return prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			Fallback:     static,
			OnFallback:   onFallback("openai"),
			OnWarning: func(reason, detail string) {
				logger.Warn().Str("reason", reason).Str("detail", detail).Msg("openai model adjusted")
			},
		})
	default:
		return prompt.NewReplicateEnhancer(prompt.ReplicateOptions{
			Client:     rc,
			Model:      cfg.ReplicateTextModel,
			Fallback:   static,
			OnFallback: onFallback("replicate"),
		})
	}
}
