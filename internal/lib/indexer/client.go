// Package indexer queries the reward index service (a GraphQL squid indexing staking events).
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ssgreg/repeat"
	"golang.org/x/oauth2"

	"github.com/invarch/daostake/internal/lib/misc"
)

var ErrRateLimited = errors.New("rate limited by indexer")

// HTTPError is a non 2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("indexer returned http %d: %s", e.StatusCode, e.Body)
}

// GraphQLError is an error entry of a GraphQL response.
type GraphQLError struct {
	Message string `json:"message"`
}

type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	if len(e) == 0 {
		return "graphql error"
	}
	return fmt.Sprintf("graphql error: %s", e[0].Message)
}

type Client struct {
	log        *slog.Logger
	url        string
	httpClient *http.Client
}

// NewClient returns a client for the index service at url. A non-empty token is sent as a bearer token.
func NewClient(log *slog.Logger, url string, token string) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Client{log: log, url: url, httpClient: httpClient}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// query runs a GraphQL query and decodes its data into result. Results are never served from a cache.
func (c *Client) query(ctx context.Context, maxTries int, query string, vars map[string]any, result any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	return retryIndexerCalls(ctx, c.log, maxTries, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				httpErr.RetryAfter = time.Duration(secs) * time.Second
			}
			return httpErr
		}
		var gqlResp struct {
			Data   json.RawMessage `json:"data"`
			Errors GraphQLErrors   `json:"errors"`
		}
		if err := json.Unmarshal(respBody, &gqlResp); err != nil {
			return fmt.Errorf("invalid indexer response: %w", err)
		}
		if len(gqlResp.Errors) > 0 {
			return gqlResp.Errors
		}
		return json.Unmarshal(gqlResp.Data, result)
	})
}

// retryIndexerCalls retries transport failures, rate limiting and server errors. Client errors and
// GraphQL errors are returned immediately.
func retryIndexerCalls(ctx context.Context, log *slog.Logger, maxTries int, meth func() error) error {
	return repeat.Repeat(
		repeat.Fn(func() error {
			err := meth()
			if err == nil || ctx.Err() != nil {
				return err
			}
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				switch {
				case httpErr.StatusCode == http.StatusTooManyRequests:
					if httpErr.RetryAfter > 0 {
						time.Sleep(httpErr.RetryAfter)
					}
					return repeat.HintTemporary(fmt.Errorf("%w: %w", ErrRateLimited, err))
				case httpErr.StatusCode >= 500:
					return repeat.HintTemporary(err)
				}
				return err
			}
			var gqlErrs GraphQLErrors
			if errors.As(err, &gqlErrs) {
				return err
			}
			return repeat.HintTemporary(err)
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(maxTries),
		repeat.FnOnError(func(err error) error {
			misc.Debugf(log, "indexer call failed: %v", err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 250 * time.Millisecond,
				MaxDelay:  3 * time.Second,
			}).Set(),
		),
	)
}
