package anyworld

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// do performs one HTTP exchange and returns the raw JSON body.
//
// Response handling follows the live API contract: the body must be JSON;
// statuses 200 and 403 both return the body (the polling endpoint answers
// 403 with a JSON payload while a model is still processing); any other
// status maps to a *TransportError carrying the server's code/message.
func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values, body io.Reader, contentType string) (json.RawMessage, error) {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("creating request: %w", err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("api request", "method", method, "url", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response content type %q", ct),
		}
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusForbidden {
		return json.RawMessage(respBytes), nil
	}

	terr := &TransportError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBytes, &apiErr); err == nil && apiErr.Code != "" {
		terr.Code = apiErr.Code
		terr.Message = apiErr.Message
	} else {
		terr.Err = fmt.Errorf("unexpected response: %s", respBytes)
	}
	return nil, terr
}

// get performs a GET and decodes the body into out.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values, out any) error {
	raw, err := c.do(ctx, http.MethodGet, rawURL, params, nil, "")
	if err != nil {
		return err
	}
	return decodeBody(raw, out)
}

// postForm performs a urlencoded POST and decodes the body into out.
func (c *Client) postForm(ctx context.Context, rawURL string, params, form url.Values, out any) error {
	body := strings.NewReader(form.Encode())
	raw, err := c.do(ctx, http.MethodPost, rawURL, params, body, "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	return decodeBody(raw, out)
}

// postMultipart performs a multipart POST and decodes the body into out.
func (c *Client) postMultipart(ctx context.Context, rawURL string, params url.Values, fields map[string]string, files []uploadFile, out any) error {
	body, contentType, err := buildMultipart(files, fields)
	if err != nil {
		return err
	}
	raw, err := c.do(ctx, http.MethodPost, rawURL, params, bytes.NewReader(body), contentType)
	if err != nil {
		return err
	}
	return decodeBody(raw, out)
}

// decodeBody unmarshals raw into out, unwrapping the API habit of returning
// a one-element array around a single object.
func decodeBody(raw json.RawMessage, out any) error {
	raw = unwrapList(raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// unwrapList returns the single element of a one-element JSON array, or raw
// unchanged for anything else.
func unwrapList(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return raw
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil || len(items) != 1 {
		return raw
	}
	return items[0]
}

// baseParams returns the query params every endpoint needs.
func (c *Client) baseParams() url.Values {
	params := url.Values{}
	if c.staging {
		params.Set("staging", "true")
	}
	return params
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
