package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// maxDownloadBytes caps the size of a downloaded artifact.
const maxDownloadBytes = 64 << 20

var ErrorURLNotFound = errors.New("URL not found")

// Download fetches url with client and writes the body to target. The body
// lands in a temporary sibling first and is renamed into place on success.
func Download(ctx context.Context, client *http.Client, url, target string) (n int64, retErr error) {
	if client == nil {
		return 0, errors.New("HTTP client required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating HTTP Get request: %w", err)
	}

	resp, err := client.Do(req) //nolint:gosec // URL is supplied by the operator
	if err != nil {
		return 0, fmt.Errorf("error downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	PrintHTTPResponse(resp)

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrorURLNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("error downloading file (status: %d - %s): %s", resp.StatusCode, resp.Status, url)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err = io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return 0, fmt.Errorf("error saving downloaded content to file: %w", err)
	}
	if n > maxDownloadBytes {
		return 0, fmt.Errorf("download exceeds %d bytes: %s", maxDownloadBytes, url)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("moving download into place: %w", err)
	}

	return n, nil
}
