// Package download refreshes a local copy of a remote tracker export using
// conditional requests, keeping a JSON sidecar so unchanged exports are not
// fetched again.
package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const MetadataSuffix = ".status.json"

// Status indicates whether the local copy changed.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusNotModified Status = "not_modified"
	StatusSameContent Status = "same_content"
)

// Metadata is the sidecar describing the last successful fetch.
type Metadata struct {
	URL          string    `json:"url,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
	CheckedAt    time.Time `json:"checked_at,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
}

type Request struct {
	URL         string
	Destination string
	Timeout     time.Duration
	Force       bool
	Headers     map[string]string // e.g. Authorization for private exports
	// Validate rejects a body before it replaces Destination. Optional.
	Validate func(body []byte) error
	Client   *http.Client
	Logger   zerolog.Logger
}

type Result struct {
	Status Status
	Meta   Metadata
	Bytes  int64
}

// MetadataPath returns the sidecar path for a destination.
func MetadataPath(dest string) string {
	if strings.TrimSpace(dest) == "" {
		return ""
	}
	return dest + MetadataSuffix
}

// Purpose: Refresh a local export from its URL.
// Key aspects: Uses ETag/Last-Modified, validates before replacing, writes atomically.
// Upstream: cmd/loralocate when dataset.url is set.
// Downstream: HTTP client, ReadMetadata, WriteMetadata.
func Download(ctx context.Context, req Request) (Result, error) {
	var result Result
	url := strings.TrimSpace(req.URL)
	dest := strings.TrimSpace(req.Destination)
	if url == "" {
		return result, errors.New("download: URL is empty")
	}
	if dest == "" {
		return result, errors.New("download: destination is empty")
	}
	metaPath := MetadataPath(dest)

	_, statErr := os.Stat(dest)
	destExists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return result, fmt.Errorf("download: stat destination: %w", statErr)
	}
	prev := ReadMetadata(metaPath)
	force := req.Force || !destExists

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result, fmt.Errorf("download: build request: %w", err)
	}
	if !force && prev != nil {
		if prev.ETag != "" {
			httpReq.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			httpReq.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := req.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("download: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	now := time.Now().UTC()
	if resp.StatusCode == http.StatusNotModified {
		result.Status = StatusNotModified
		result.Meta = merge(prev, url, resp, now, "")
		writeMetadata(req.Logger, metaPath, result.Meta)
		return result, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("download: fetch failed: status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("download: read body: %w", err)
	}
	if len(body) == 0 {
		return result, errors.New("download: empty response body")
	}
	if req.Validate != nil {
		if err := req.Validate(body); err != nil {
			return result, fmt.Errorf("download: invalid content: %w", err)
		}
	}
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	result.Bytes = int64(len(body))

	if !force && prev != nil && prev.SHA256 == hash {
		result.Status = StatusSameContent
		result.Meta = merge(prev, url, resp, now, hash)
		writeMetadata(req.Logger, metaPath, result.Meta)
		return result, nil
	}

	if err := replaceFile(dest, body); err != nil {
		return result, err
	}
	result.Status = StatusUpdated
	result.Meta = merge(prev, url, resp, now, hash)
	result.Meta.DownloadedAt = now
	result.Meta.SizeBytes = result.Bytes
	writeMetadata(req.Logger, metaPath, result.Meta)
	return result, nil
}

func replaceFile(dest string, body []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("download: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "download-*.tmp")
	if err != nil {
		return fmt.Errorf("download: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := io.Copy(tmp, bytes.NewReader(body)); err != nil {
		tmp.Close()
		return fmt.Errorf("download: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("download: finalize temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("download: replace file: %w", err)
	}
	return nil
}

// ReadMetadata returns the sidecar at path, or nil when absent or unreadable.
func ReadMetadata(path string) *Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

// WriteMetadata persists the sidecar as indented JSON.
func WriteMetadata(path string, meta Metadata) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("download: metadata path is empty")
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeMetadata(logger zerolog.Logger, path string, meta Metadata) {
	if err := WriteMetadata(path, meta); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("unable to write download metadata")
	}
}

func merge(prev *Metadata, url string, resp *http.Response, now time.Time, hash string) Metadata {
	var meta Metadata
	if prev != nil {
		meta = *prev
	}
	meta.URL = url
	meta.CheckedAt = now
	if etag := strings.TrimSpace(resp.Header.Get("ETag")); etag != "" {
		meta.ETag = etag
	}
	if last := strings.TrimSpace(resp.Header.Get("Last-Modified")); last != "" {
		meta.LastModified = last
	}
	if hash != "" {
		meta.SHA256 = hash
	}
	return meta
}
