package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Fetch downloads a signed URL. An expired or rejected URL yields an
// AccessDeniedError and a transport failure a NetworkError.
func Fetch(ctx context.Context, client *http.Client, signedURL string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.Parse(signedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signed url: %w", err)
	}
	key := u.Path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "get", Key: key, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, &AccessDeniedError{Key: key, Reason: "signed url rejected"}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get %s: unexpected status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read", Key: key, Err: err}
	}
	return body, nil
}
