package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"apimapper/internal/auth"
	"apimapper/internal/config"
	"apimapper/internal/httpclient"
	"apimapper/internal/logging"
	"apimapper/internal/mapping"
	"apimapper/internal/util"
)

// sleepFunc defines the signature for a function that pauses execution.
// Used to allow mocking time.Sleep during tests.
type sleepFunc func(time.Duration)

// DefaultSleep is the default sleep function (time.Sleep).
// It's exported to be potentially modified by tests.
var DefaultSleep sleepFunc = time.Sleep

// Sender executes composed requests.
type Sender interface {
	Send(ctx context.Context, d mapping.Descriptor) (*mapping.Response, error)
}

// HTTPSender sends requests over HTTP with auth headers and retries.
type HTTPSender struct {
	Client *http.Client
	Auth   config.AuthConfig
	Retry  config.RetryConfig
}

// NewHTTPSender builds a sender and its client from the tool configuration.
func NewHTTPSender(cfg *config.Config) (*HTTPSender, error) {
	client, err := httpclient.NewClient(cfg.Auth, cfg.Transport.Timeout(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	return &HTTPSender{Client: client, Auth: cfg.Auth, Retry: cfg.Retry}, nil
}

// Send implements Sender. Non-2xx statuses are returned as responses with
// Error set; only transport failures return an error.
func (s *HTTPSender) Send(ctx context.Context, d mapping.Descriptor) (*mapping.Response, error) {
	req, err := NewRequest(ctx, d)
	if err != nil {
		return nil, err
	}
	if err := auth.ApplyAuthHeaders(req, s.Auth.Type, s.Auth.Credentials); err != nil {
		return nil, fmt.Errorf("applying auth: %w", err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, body, err := ExecuteRequest(ctx, client, req, s.Retry)
	if err != nil {
		if resp == nil {
			return nil, err
		}
		logging.Logf(logging.Warning, "%s %s: %v", req.Method, req.URL.Redacted(), err)
	}
	logging.Logf(logging.Info, "%s %s -> %d (%s)", req.Method, req.URL.Redacted(), resp.StatusCode, time.Since(start).Round(time.Millisecond))
	httpclient.LogCookieJar(client.Jar, req.URL.String())

	return NewResponse(resp, body), nil
}

// NewRequest turns a descriptor into an *http.Request. The body is attached
// whenever it is non-empty; its content type follows the body type unless a
// header already sets one.
func NewRequest(ctx context.Context, d mapping.Descriptor) (*http.Request, error) {
	fullURL, err := d.FullURL()
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if d.Body != "" {
		bodyReader = strings.NewReader(d.Body)
	}
	req, err := http.NewRequestWithContext(ctx, d.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, value := range d.Headers {
		req.Header.Set(name, value)
	}
	if d.Body != "" && req.Header.Get("Content-Type") == "" {
		switch strings.ToLower(d.BodyType) {
		case config.BodyForm:
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		case config.BodyText:
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		default:
			req.Header.Set("Content-Type", "application/json")
		}
	}
	return req, nil
}

// NewResponse converts an HTTP response and its body. JSON bodies are
// decoded into Data; anything else is kept as a string.
func NewResponse(resp *http.Response, body []byte) *mapping.Response {
	out := &mapping.Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    make(map[string]string, len(resp.Header)),
		Body:       body,
	}
	for name, values := range resp.Header {
		if len(values) > 0 {
			out.Headers[name] = values[0]
		}
	}
	if len(body) > 0 {
		var data interface{}
		if err := json.Unmarshal(body, &data); err == nil {
			out.Data = data
		} else {
			out.Data = string(body)
		}
	}
	if resp.StatusCode >= 400 {
		out.Error = true
		out.Message = fmt.Sprintf("request failed with status %d %s: %s", resp.StatusCode, out.StatusText, util.Snippet(body))
	}
	return out
}

// Do sends d and never fails: transport errors come back as a response with
// Error set and the message filled in.
func Do(ctx context.Context, s Sender, d mapping.Descriptor) *mapping.Response {
	resp, err := s.Send(ctx, d)
	if err != nil {
		logging.Logf(logging.Error, "Request %s %s failed: %v", d.Method, d.URL, err)
		return &mapping.Response{
			Error:      true,
			StatusText: "request failed",
			Message:    err.Error(),
			Data:       map[string]interface{}{"error": true, "message": err.Error()},
		}
	}
	return resp
}

// ExecuteRequest sends an HTTP request, handling retries.
// It uses an injectable sleep function (DefaultSleep) for testing.
// When retries run out on a retryable status, the last response and its
// body are returned along with the error.
func ExecuteRequest(ctx context.Context, client *http.Client, req *http.Request, retryCfg config.RetryConfig) (*http.Response, []byte, error) {
	attempts := 0
	maxAttempts := retryCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoffDuration := time.Duration(retryCfg.Backoff) * time.Second

	var (
		lastErr  error
		lastResp *http.Response
		lastBody []byte
	)

	for attempts < maxAttempts {
		attempts++
		if maxAttempts > 1 {
			logging.Logf(logging.Debug, "Request attempt %d/%d for %s %s", attempts, maxAttempts, req.Method, req.URL.Redacted())
		}

		// Bodies must be re-readable when retries are possible.
		if req.Body != nil && req.GetBody == nil && maxAttempts > 1 {
			logging.Logf(logging.Debug, "Reading request body for potential retry as GetBody is not set.")
			originalBodyBytes, readErr := io.ReadAll(req.Body)
			req.Body.Close()
			if readErr != nil {
				return nil, nil, fmt.Errorf("failed to read request body for potential retry: %w", readErr)
			}
			req.Body = io.NopCloser(bytes.NewReader(originalBodyBytes))
			req.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(originalBodyBytes)), nil
			}
			req.ContentLength = int64(len(originalBodyBytes))
		} else if req.GetBody != nil && attempts > 1 {
			newBody, err := req.GetBody()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to reset request body using GetBody for retry attempt: %w", err)
			}
			req.Body = newBody
		}

		resp, err := client.Do(req)

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			lastResp, lastBody = nil, nil
			logging.Logf(logging.Info, "Attempt %d failed: %v", attempts, err)
			if ctx.Err() != nil {
				break
			}
			if attempts < maxAttempts {
				logging.Logf(logging.Info, "Retrying in %v...", backoffDuration)
				DefaultSleep(backoffDuration)
				continue
			}
			break
		}

		bodyBytes, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			// Body read errors are not retried.
			return nil, nil, fmt.Errorf("failed to read response body (status %d): %w", resp.StatusCode, readErr)
		}
		resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		statusCode := resp.StatusCode
		isRetryable := false
		if statusCode >= 500 && statusCode < 600 {
			isRetryable = true
			for _, excludeCode := range retryCfg.ExcludeErrors {
				if statusCode == excludeCode {
					isRetryable = false
					break
				}
			}
		}

		if !isRetryable {
			logging.Logf(logging.Debug, "Attempt %d finished with status %d.", attempts, statusCode)
			return resp, bodyBytes, nil
		}

		lastErr = fmt.Errorf("received retryable status code %d", statusCode)
		lastResp, lastBody = resp, bodyBytes
		logging.Logf(logging.Info, "Attempt %d failed: %v", attempts, lastErr)

		if attempts < maxAttempts {
			if ctx.Err() != nil {
				break
			}
			logging.Logf(logging.Info, "Retrying in %v...", backoffDuration)
			DefaultSleep(backoffDuration)
		}
	}

	return lastResp, lastBody, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}
