package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

const defaultHTTPTimeout = 3 * time.Second

// httpClient fetches JSON documents, retrying transport errors and 5xx
// answers with exponential backoff.
type httpClient struct {
	client  *http.Client
	retries uint
	token   string
}

func newHTTPClient(cfg Config) *httpClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 1
	}
	return &httpClient{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
	}
}

func (c *httpClient) getJSON(ctx context.Context, url string, v any) error {
	body, err := retry.DoWithData(
		func() ([]byte, error) { return c.get(ctx, url) },
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Uint("attempt", n+1).Err(err).Str("url", url).Msg("retrying request")
		}),
	)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Unrecoverable(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.Unrecoverable(fmt.Errorf("%w: http %d", ErrRateLimited, resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Unrecoverable(fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}
