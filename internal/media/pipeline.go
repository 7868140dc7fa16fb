// Package media implements the file-to-file video operations used to build
// a job's final clip: download, probe, continuity frame extraction,
// normalization, crossfade merge with a concat fallback, and preview trims.
//
// Every operation blocks until the underlying tool exits and must only be
// called from a job's background worker.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"manifest/internal/domain"
	"manifest/internal/infra"
)

const (
	lastFrameBackoff   = "-0.1"
	encoderPreset      = "veryfast"
	encoderCRF         = "18"
	previewEncoderCRF  = "23"
	pixelFormat        = "yuv420p"
	defaultDownloadTTL = 180 * time.Second
)

// Options configures a Pipeline.
type Options struct {
	FFmpegPath      string
	FFprobePath     string
	Runner          Runner
	HTTPClient      *http.Client
	DownloadTimeout time.Duration
	Logger          *infra.Logger
}

// Pipeline bundles the media operations. It holds no per-call state and is
// safe for concurrent use by many jobs.
type Pipeline struct {
	ffmpeg  string
	ffprobe string
	runner  Runner
	client  *http.Client
	logger  *infra.Logger
}

// MergeResult describes how two clips were joined.
type MergeResult struct {
	Strategy       domain.MergeStrategy
	Offset         float64
	FallbackReason string
}

// NewPipeline constructs a Pipeline with defaults for anything left unset.
func NewPipeline(opts Options) *Pipeline {
	ffmpeg := strings.TrimSpace(opts.FFmpegPath)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := strings.TrimSpace(opts.FFprobePath)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.DownloadTimeout
		if timeout <= 0 {
			timeout = defaultDownloadTTL
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Pipeline{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		runner:  runner,
		client:  client,
		logger:  infra.OrNop(opts.Logger),
	}
}

// ProbeDuration returns the container duration of path in seconds.
func (p *Pipeline) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.runner.Run(ctx, p.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, mediaErr("probe duration", err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, mediaErr("decode ffprobe output", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, mediaErr("parse duration", err)
	}
	return d, nil
}

// ExtractLastFrame writes the final decodable frame of videoPath to
// imagePath. Seeking to the exact end of stream is unreliable, so the seek
// backs off slightly before decoding a single frame.
func (p *Pipeline) ExtractLastFrame(ctx context.Context, videoPath, imagePath string) error {
	if err := ensureParent(imagePath); err != nil {
		return err
	}
	_, err := p.runner.Run(ctx, p.ffmpeg,
		"-y",
		"-sseof", lastFrameBackoff,
		"-i", videoPath,
		"-frames:v", "1",
		imagePath,
	)
	if err != nil {
		return mediaErr("extract last frame", err)
	}
	return nil
}

// Normalize re-encodes input to a constant frame rate, optional width
// (height follows the aspect ratio, rounded to even), yuv420p and square
// pixels so that independently generated clips can be composited.
func (p *Pipeline) Normalize(ctx context.Context, input, output string, fps, width int) error {
	if err := ensureParent(output); err != nil {
		return err
	}
	args := []string{
		"-y",
		"-i", input,
		"-vf", normalizeFilter(fps, width),
		"-r", strconv.Itoa(fps),
	}
	args = append(args, encoderArgs(encoderCRF)...)
	args = append(args, "-an", output)
	if _, err := p.runner.Run(ctx, p.ffmpeg, args...); err != nil {
		return mediaErr("normalize "+filepath.Base(input), err)
	}
	return nil
}

// MergeWithCrossfade joins clip1 and clip2 into outPath, blending the last
// xfadeSeconds of clip1 into the head of clip2. If the crossfade filter
// fails, the normalized clips are hard-concatenated instead and the result
// reports the fallback; only a failure of the fallback is returned as an
// error.
func (p *Pipeline) MergeWithCrossfade(ctx context.Context, clip1, clip2, outPath string, xfadeSeconds float64, fps, width int) (MergeResult, error) {
	if err := ensureParent(outPath); err != nil {
		return MergeResult{}, err
	}
	dir := filepath.Dir(outPath)
	norm1 := filepath.Join(dir, "_norm1.mp4")
	norm2 := filepath.Join(dir, "_norm2.mp4")
	if err := p.Normalize(ctx, clip1, norm1, fps, width); err != nil {
		return MergeResult{}, err
	}
	if err := p.Normalize(ctx, clip2, norm2, fps, width); err != nil {
		return MergeResult{}, err
	}

	d1, err := p.ProbeDuration(ctx, norm1)
	if err != nil {
		return MergeResult{}, err
	}
	offset := d1 - xfadeSeconds
	if offset < 0 {
		offset = 0
	}

	args := []string{
		"-y",
		"-i", norm1,
		"-i", norm2,
		"-filter_complex", crossfadeFilter(fps, xfadeSeconds, offset),
		"-map", "[v]",
	}
	args = append(args, encoderArgs(encoderCRF)...)
	args = append(args, "-r", strconv.Itoa(fps), "-an", "-movflags", "+faststart", outPath)
	_, xfadeErr := p.runner.Run(ctx, p.ffmpeg, args...)
	if xfadeErr == nil {
		return MergeResult{Strategy: domain.MergeStrategyCrossfade, Offset: offset}, nil
	}

	p.logger.Warn().
		Err(xfadeErr).
		Str("output", outPath).
		Msg("media: crossfade failed; falling back to concat")

	tmp := outPath + ".tmp.mp4"
	args = []string{
		"-y",
		"-i", norm1,
		"-i", norm2,
		"-filter_complex", "[0:v][1:v]concat=n=2:v=1:a=0[v]",
		"-map", "[v]",
	}
	args = append(args, encoderArgs(encoderCRF)...)
	args = append(args, "-r", strconv.Itoa(fps), "-an", "-movflags", "+faststart", tmp)
	if _, err := p.runner.Run(ctx, p.ffmpeg, args...); err != nil {
		return MergeResult{}, mediaErr("concat fallback", errors.Join(err, xfadeErr))
	}
	if err := os.Rename(tmp, outPath); err != nil {
		return MergeResult{}, mediaErr("replace merged output", err)
	}
	return MergeResult{
		Strategy:       domain.MergeStrategyConcat,
		Offset:         offset,
		FallbackReason: xfadeErr.Error(),
	}, nil
}

// Trim cuts input down to at most durationSeconds at the given frame rate
// and width, producing a light preview clip.
func (p *Pipeline) Trim(ctx context.Context, input, output string, durationSeconds float64, fps, width int) error {
	if durationSeconds <= 0 {
		return mediaErr("trim", fmt.Errorf("duration must be positive, got %v", durationSeconds))
	}
	if err := ensureParent(output); err != nil {
		return err
	}
	args := []string{
		"-y",
		"-i", input,
		"-t", formatSeconds(durationSeconds),
		"-vf", normalizeFilter(fps, width),
		"-r", strconv.Itoa(fps),
	}
	args = append(args, encoderArgs(previewEncoderCRF)...)
	args = append(args, "-an", "-movflags", "+faststart", output)
	if _, err := p.runner.Run(ctx, p.ffmpeg, args...); err != nil {
		return mediaErr("trim", err)
	}
	return nil
}

func normalizeFilter(fps, width int) string {
	chain := make([]string, 0, 4)
	if width > 0 {
		chain = append(chain, fmt.Sprintf("scale=%d:-2", width))
	}
	chain = append(chain,
		fmt.Sprintf("fps=fps=%d", fps),
		"format="+pixelFormat,
		"setsar=1",
	)
	return strings.Join(chain, ",")
}

func crossfadeFilter(fps int, xfadeSeconds, offset float64) string {
	prep := fmt.Sprintf("fps=fps=%d,format=%s,setsar=1,settb=AVTB,setpts=PTS-STARTPTS", fps, pixelFormat)
	return fmt.Sprintf(
		"[0:v]%s[v0];[1:v]%s[v1];[v0][v1]xfade=transition=fade:duration=%s:offset=%s,format=%s[v]",
		prep, prep, formatSeconds(xfadeSeconds), formatSeconds(offset), pixelFormat,
	)
}

func encoderArgs(crf string) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", encoderPreset,
		"-crf", crf,
		"-pix_fmt", pixelFormat,
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mediaErr("ensure directory", err)
	}
	return nil
}

func mediaErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrMediaTool, op, err)
}
