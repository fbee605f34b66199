package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// mediaExtensions maps mime type to the on-disk extension used in the
// per-tenant media path layout (§6.4).
var mediaExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/3gpp":      "3gp",
	"audio/mpeg":      "mp3",
	"audio/ogg":       "ogg",
	"audio/wav":       "wav",
	"application/pdf": "pdf",
}

func extensionFor(mime string) string {
	if ext, ok := mediaExtensions[mime]; ok {
		return ext
	}
	return "bin"
}

type mediaURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// MediaFetcher stores per-tenant media under its root directory; the full
// path is <root>/workspaces/<workspaceId>/media/<mediaId>.<ext>.
type MediaFetcher struct {
	client *Client
	root   string
}

func NewMediaFetcher(client *Client, root string) *MediaFetcher {
	return &MediaFetcher{client: client, root: root}
}

// Fetch resolves mediaID's download URL, downloads it, and writes it under
// the tenant's media directory atomically (write to a temp name, then
// rename), returning the stored path. Deduplicates by returning early if
// the destination file already exists.
func (f *MediaFetcher) Fetch(ctx context.Context, workspaceID, mediaID string) (storedPath string, mimeType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.client.url(mediaID), nil)
	if err != nil {
		return "", "", fmt.Errorf("provider: build media lookup request: %w", err)
	}
	var meta mediaURLResponse
	if err := f.client.do(ctx, req, &meta); err != nil {
		return "", "", err
	}

	dir := filepath.Join(f.root, "workspaces", workspaceID, "media")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("provider: create media dir: %w", err)
	}

	ext := extensionFor(meta.MimeType)
	finalPath := filepath.Join(dir, mediaID+"."+ext)
	if _, err := os.Stat(finalPath); err == nil {
		return finalPath, meta.MimeType, nil
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return "", "", fmt.Errorf("provider: build media download request: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+f.client.cfg.SystemUserToken)

	resp, err := f.client.httpClient.Do(dlReq)
	if err != nil {
		return "", "", fmt.Errorf("provider: download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("provider: download media: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, mediaID+".*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("provider: create temp media file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("provider: write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("provider: close media file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("provider: rename media file: %w", err)
	}

	return finalPath, meta.MimeType, nil
}
