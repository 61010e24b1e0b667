package anyworld

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DownloadFile streams the artifact at rawURL into a file at path.
func (c *Client) DownloadFile(ctx context.Context, rawURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("creating download request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("downloading %s", rawURL),
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
