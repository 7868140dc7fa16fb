package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

const downloadChunkSize = 1 << 20

// Download streams url into destPath in bounded chunks. The body lands in a
// sibling temp file first, so destPath only ever holds a complete download.
func (p *Pipeline) Download(ctx context.Context, url, destPath string) error {
	if err := ensureParent(destPath); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mediaErr("build download request", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return mediaErr("download", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mediaErr("download", fmt.Errorf("status %d from %s", resp.StatusCode, req.URL.Redacted()))
	}

	tmp := destPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return mediaErr("create download file", err)
	}
	buf := make([]byte, downloadChunkSize)
	n, copyErr := io.CopyBuffer(writerOnly{f}, resp.Body, buf)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr == nil {
			copyErr = closeErr
		}
		return mediaErr("write download", copyErr)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)
		return mediaErr("finalize download", err)
	}
	p.logger.Debug().
		Str("path", destPath).
		Int64("bytes", n).
		Msg("media: downloaded")
	return nil
}

// writerOnly hides ReadFrom so io.CopyBuffer honors the chunk buffer.
type writerOnly struct {
	io.Writer
}
