package domain

// Submission is the validated contract of a generation request.
type Submission struct {
	Prompt      string `json:"prompt" validate:"required,min=2,max=1000"`
	Mode        Mode   `json:"mode" validate:"required,oneof=preview full"`
	ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png"`
	ImageBytes  int    `json:"image_bytes" validate:"gt=0"`
	SessionID   string `json:"session_id" validate:"omitempty,max=255"`
}

// ImageExtension maps an accepted upload content type to a file extension.
func ImageExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
