package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"manifest/internal/domain"
	"manifest/internal/infra"
	"manifest/internal/media"
)

type recordingPipeline struct {
	calls []string
	merge media.MergeResult
}

func (r *recordingPipeline) Download(_ context.Context, url, dest string) error {
	r.calls = append(r.calls, "download "+url+" "+dest)
	return nil
}

func (r *recordingPipeline) ProbeDuration(_ context.Context, path string) (float64, error) {
	r.calls = append(r.calls, "probe "+path)
	return 5.041, nil
}

func (r *recordingPipeline) ExtractLastFrame(_ context.Context, video, image string) error {
	r.calls = append(r.calls, "last-frame "+video+" "+image)
	return nil
}

func (r *recordingPipeline) Normalize(_ context.Context, in, out string, fps, width int) error {
	r.calls = append(r.calls, "normalize")
	return nil
}

func (r *recordingPipeline) MergeWithCrossfade(_ context.Context, a, b, out string, xfade float64, fps, width int) (media.MergeResult, error) {
	r.calls = append(r.calls, "merge")
	return r.merge, nil
}

func (r *recordingPipeline) Trim(_ context.Context, in, out string, seconds float64, fps, width int) error {
	r.calls = append(r.calls, "trim")
	return nil
}

func run(t *testing.T, p Pipeline, args ...string) (string, error) {
	t.Helper()
	cfg := &infra.Config{FullFPS: 24, FullWidth: 720, CrossfadeSeconds: 1, PreviewLengthSeconds: 4}
	cmd := newRootCmd(p, cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProbePrintsDuration(t *testing.T) {
	p := &recordingPipeline{}
	out, err := run(t, p, "probe", "clip.mp4")
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if strings.TrimSpace(out) != "5.041" {
		t.Fatalf("output = %q", out)
	}
}

func TestMergeReportsFallback(t *testing.T) {
	p := &recordingPipeline{merge: media.MergeResult{Strategy: domain.MergeStrategyConcat, FallbackReason: "xfade failed"}}
	out, err := run(t, p, "merge", "a.mp4", "b.mp4", "out.mp4")
	if err != nil {
		t.Fatalf("merge returned error: %v", err)
	}
	if strings.TrimSpace(out) != "strategy=concat reason=xfade failed" {
		t.Fatalf("output = %q", out)
	}
}

func TestTrimRejectsNonPositiveLength(t *testing.T) {
	p := &recordingPipeline{}
	if _, err := run(t, p, "trim", "in.mp4", "out.mp4", "--seconds", "0"); err == nil {
		t.Fatal("expected error for zero-length trim")
	}
	if len(p.calls) != 0 {
		t.Fatalf("pipeline should not run, calls = %v", p.calls)
	}
}

func TestArgsAreChecked(t *testing.T) {
	if _, err := run(t, &recordingPipeline{}, "last-frame", "only-one.mp4"); err == nil {
		t.Fatal("expected argument count error")
	}
}
