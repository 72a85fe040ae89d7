package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const (
	maxBodyBytes  = 4 << 20
	maxErrorBytes = 4 << 10
)

// BackoffConfig controls the optional retry loop. MaxRetries of zero means a
// single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff issues exactly one request.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      0,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errBodyTooLarge  = fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
)

// Transport performs GET requests behind a circuit breaker, with optional
// exponential backoff on 429, 5xx and transport failures.
type Transport struct {
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	backoff BackoffConfig
}

// NewTransport builds a Transport whose breaker is identified by name.
func NewTransport(name string, client *http.Client, backoff BackoffConfig) *Transport {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Client errors such as an unknown city say nothing about upstream
		// health, and neither does a caller abandoning its request.
		IsSuccessful: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return true
			}
			var ue *UpstreamError
			if errors.As(err, &ue) && ue.StatusCode >= 400 && ue.StatusCode < 500 && ue.StatusCode != http.StatusTooManyRequests {
				return true
			}
			return err == nil
		},
	})
	return &Transport{client: client, circuit: cb, backoff: backoff}
}

// Get fetches rawURL and returns the body of a 200 response. Any other
// outcome is an *UpstreamError tagged with op.
func (t *Transport) Get(ctx context.Context, op, rawURL string) ([]byte, error) {
	if t.client == nil {
		return nil, &UpstreamError{Op: op, Cause: errNoHTTPClient}
	}
	if t.backoff.MaxRetries < 0 || (t.backoff.MaxRetries > 0 && t.backoff.InitialInterval <= 0) {
		return nil, &UpstreamError{Op: op, Cause: errInvalidConfig}
	}

	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return nil, &UpstreamError{Op: op, Cause: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &UpstreamError{Op: op, Cause: redact(err)}
		}
		req.Header.Set("Accept", "application/json")

		result, err := t.circuit.Execute(func() (interface{}, error) {
			resp, doErr := t.client.Do(req)
			if doErr != nil {
				return nil, &UpstreamError{Op: op, Cause: redact(doErr)}
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
				return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(payload)}
			}

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
			if readErr != nil {
				return nil, &UpstreamError{Op: op, Cause: fmt.Errorf("read body: %w", readErr)}
			}
			if len(body) > maxBodyBytes {
				return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Cause: errBodyTooLarge}
			}
			return body, nil
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, &UpstreamError{Op: op, Cause: fmt.Errorf("unexpected result type %T from circuit breaker", result)}
			}
			return body, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &UpstreamError{Op: op, Cause: err}
		}

		if attempt >= t.backoff.MaxRetries || !retryable(ctx, err) {
			return nil, err
		}

		delay := t.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if t.backoff.MaxInterval > 0 && delay > t.backoff.MaxInterval {
			delay = t.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &UpstreamError{Op: op, Cause: ctx.Err()}
		case <-timer.C:
		}
		attempt++
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	if ue.StatusCode == 0 {
		return true
	}
	return ue.StatusCode == http.StatusTooManyRequests || ue.StatusCode >= 500
}

var secretParams = []string{"appid", "key"}

// redact masks API keys in the URL carried by net/http errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	return err
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	for _, k := range secretParams {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
