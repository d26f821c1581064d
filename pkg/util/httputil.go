package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// NewHTTPRequest performs an http call and returns the response status
// code along with the whole body as a string.
func NewHTTPRequest(
	ctx context.Context,
	method, url, bodyString string,
	header map[string]string,
) (int, string, error) {
	var body io.Reader
	if len(bodyString) > 0 {
		body = strings.NewReader(bodyString)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, "", err
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return 0, "", err
	}

	return rs.StatusCode, string(bodyBytes), nil
}

// NewHTTPError wraps a non-2xx response into an error carrying the
// response body.
func NewHTTPError(status int, body string) error {
	return fmt.Errorf("http status %d: %s", status, body)
}
