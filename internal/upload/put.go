package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPPutter uploads directly to object storage through a signed URL.
type HTTPPutter struct {
	httpClient *http.Client
}

func NewHTTPPutter() *HTTPPutter {
	return &HTTPPutter{httpClient: &http.Client{Timeout: 15 * time.Minute}}
}

func (p *HTTPPutter) Put(ctx context.Context, url, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("put object returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
