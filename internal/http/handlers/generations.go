package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"manifest/internal/domain"
	"manifest/internal/middleware"
	"manifest/internal/orchestrator"
)

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	ID                        string  `json:"id"`
	Status                    string  `json:"status"`
	Stage                     string  `json:"stage"`
	Prompt                    string  `json:"prompt"`
	EnhancedPrompt            string  `json:"enhanced_prompt,omitempty"`
	Mode                      string  `json:"mode"`
	EstimatedRemainingSeconds int     `json:"estimated_remaining_seconds"`
	EstimatedCompletionTime   *string `json:"estimated_completion_time"`
	SegmentCount              int     `json:"segment_count"`
	VideoURL                  *string `json:"video_url"`
	ImageURL                  string  `json:"image_url"`
	MergeStrategy             string  `json:"merge_strategy,omitempty"`
	MergeFallbackReason       string  `json:"merge_fallback_reason,omitempty"`
	Error                     *string `json:"error"`
	CreatedAt                 string  `json:"created_at"`
	UpdatedAt                 string  `json:"updated_at"`
}

// CreateGeneration accepts a multipart upload with the seed image in "file".
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "expected a multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.fail(w, r, &orchestrator.ValidationError{Fields: map[string]string{"file": "file is required"}})
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}

	mode := strings.ToLower(strings.TrimSpace(r.FormValue("mode")))
	if mode == "" {
		mode = string(domain.ModePreview)
	}

	res, err := a.Generations.Submit(r.Context(), orchestrator.SubmitRequest{
		Image:       image,
		ContentType: header.Header.Get("Content-Type"),
		Prompt:      r.FormValue("prompt"),
		Mode:        domain.Mode(mode),
		SessionID:   r.FormValue("session_id"),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.FromRequest(r).Info().Str("job_id", res.JobID).Str("mode", mode).Msg("generation queued")
	a.json(w, http.StatusAccepted, submitResponse{ID: res.JobID, Status: string(res.Status)})
}

func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := a.Generations.GetStatus(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toStatusResponse(view))
}

func (a *App) GenerationVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, contentType, err := a.Generations.GetArtifact(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.serveFile(w, r, f, contentType, id+".mp4")
}

func (a *App) GenerationImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, contentType, err := a.Generations.GetSourceImage(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.serveFile(w, r, f, contentType, "")
}

func (a *App) serveFile(w http.ResponseWriter, r *http.Request, f *os.File, contentType, name string) {
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	if name != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func toStatusResponse(v orchestrator.StatusView) statusResponse {
	resp := statusResponse{
		ID:                        v.ID,
		Status:                    string(v.Status),
		Stage:                     v.Stage,
		Prompt:                    v.Prompt,
		EnhancedPrompt:            v.EnhancedPrompt,
		Mode:                      string(v.Mode),
		EstimatedRemainingSeconds: v.EstimatedRemainingSeconds,
		SegmentCount:              v.SegmentCount,
		ImageURL:                  "/api/generations/" + v.ID + "/image",
		MergeStrategy:             string(v.MergeStrategy),
		MergeFallbackReason:       v.MergeFallbackReason,
		CreatedAt:                 v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:                 v.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !v.EstimatedCompletionTime.IsZero() {
		eta := v.EstimatedCompletionTime.UTC().Format(time.RFC3339)
		resp.EstimatedCompletionTime = &eta
	}
	switch {
	case v.ArtifactURL != "":
		u := v.ArtifactURL
		resp.VideoURL = &u
	case v.HasArtifact:
		u := "/api/generations/" + v.ID + "/video"
		resp.VideoURL = &u
	}
	if v.Error != "" {
		e := v.Error
		resp.Error = &e
	}
	return resp
}
