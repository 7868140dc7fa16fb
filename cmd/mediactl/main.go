// Command mediactl runs the media pipeline operations against local files.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"manifest/internal/infra"
	"manifest/internal/media"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	pipeline := media.NewPipeline(media.Options{
		FFmpegPath:      cfg.FFmpegPath,
		FFprobePath:     cfg.FFprobePath,
		DownloadTimeout: cfg.DownloadTimeout,
		Logger:          &logger,
	})

	if err := newRootCmd(pipeline, cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
