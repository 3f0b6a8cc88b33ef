package ymusic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"
	"golang.org/x/oauth2"

	"github.com/xeptore/ymdl/cache"
	"github.com/xeptore/ymdl/constant"
	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/httputil"
	"github.com/xeptore/ymdl/must"
)

const (
	BaseURL = "https://api.music.yandex.net"

	tokenType          = "OAuth"
	maxThrottleRetries = 4
)

// Client talks to the Yandex Music API on behalf of one token holder.
type Client struct {
	baseURL      string
	authorized   http.RoundTripper
	anonymous    http.RoundTripper
	throttle     func() backoff.BackOff
	accounts     *cache.Cache[Account]
	tracks       *cache.Cache[RawTrack]
	downloadInfo *cache.Cache[[]downloadInfoItem]
	logger       zerolog.Logger
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTransport replaces the base round tripper used for every request.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.anonymous = rt
	}
}

// WithThrottleBackOff sets the policy used when the API answers 429.
func WithThrottleBackOff(f func() backoff.BackOff) ClientOption {
	return func(c *Client) {
		c.throttle = f
	}
}

func NewClient(token string, logger zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      BaseURL,
		authorized:   nil,
		anonymous:    http.DefaultTransport,
		throttle:     defaultThrottleBackOff,
		accounts:     cache.NewAccounts[Account](),
		tracks:       cache.New[RawTrack](cache.DefaultTracksMaxSize),
		downloadInfo: cache.New[[]downloadInfoItem](cache.DefaultDownloadInfoMaxSize),
		logger:       logger.With().Str("module", "ymusic").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	//nolint:exhaustruct
	c.authorized = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: tokenType}),
		Base:   c.anonymous,
	}
	return c
}

func defaultThrottleBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// throttledError is returned for 429 responses and carries the delay the
// server asked for.
type throttledError struct {
	retryAfter time.Duration
	err        error
}

func (e *throttledError) Error() string {
	return ErrTooManyRequests.Error()
}

func (e *throttledError) Is(target error) bool {
	return target == ErrTooManyRequests //nolint:errorlint
}

func (e *throttledError) Unwrap() error {
	return e.err
}

// hintedBackOff waits at least as long as the last Retry-After hint.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

type requestBuilder func(ctx context.Context) (*http.Request, error)

func getRequest(reqURL string) requestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	}
}

func postFormRequest(reqURL string, form url.Values) requestBuilder {
	encoded := form.Encode()
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(encoded))
		if nil != err {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
}

// send performs the request, retrying while the API keeps throttling.
func (c *Client) send(ctx context.Context, build requestBuilder, timeout time.Duration, rt http.RoundTripper) ([]byte, error) {
	b := &hintedBackOff{BackOff: c.throttle(), hint: 0}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxThrottleRetries), ctx)

	var respBody []byte
	op := func() error {
		req, err := build(ctx)
		if nil != err {
			if errutil.IsContext(ctx) {
				return backoff.Permanent(ctx.Err())
			}
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return backoff.Permanent(flaw.From(fmt.Errorf("failed to create request: %v", err)).Append(flawP))
		}
		req.Header.Set("User-Agent", constant.UserAgent+"/"+constant.Version)

		body, err := c.doOnce(ctx, req, timeout, rt)
		if nil != err {
			if throttled := new(throttledError); errors.As(err, &throttled) {
				b.hint = throttled.retryAfter
				return err
			}
			return backoff.Permanent(err)
		}
		respBody = body
		return nil
	}
	notify := func(err error, d time.Duration) {
		c.logger.Warn().Dur("retry_in", d).Msg("Request was throttled. Retrying")
	}

	if err := backoff.RetryNotify(op, policy, notify); nil != err {
		return nil, err
	}
	return respBody, nil
}

func (c *Client) doOnce(ctx context.Context, req *http.Request, timeout time.Duration, rt http.RoundTripper) (respBody []byte, err error) {
	flawP := flaw.P{"request": errutil.HTTPRequestFlawPayload(req)}

	client := http.Client{Timeout: timeout, Transport: rt} //nolint:exhaustruct
	resp, err := client.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, errors.Join(ErrNetwork, flaw.From(fmt.Errorf("failed to send request: %v", err)).Append(flawP))
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close response body: %v", closeErr)).Append(flawP)
			if nil == err {
				err = closeErr
				respBody = nil
			}
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(resp)

	respBody, err = httputil.ReadOptionalResponseBody(ctx, resp)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		case errutil.IsFlaw(err):
			return nil, errors.Join(ErrNetwork, must.BeFlaw(err).Append(flawP))
		default:
			panic(errutil.UnknownError(err))
		}
	}

	if code := resp.StatusCode; code == http.StatusOK {
		return respBody, nil
	}
	return nil, statusError(resp, respBody, flawP)
}

func statusError(resp *http.Response, respBody []byte, flawP flaw.P) error {
	flawP["response_body"] = string(respBody)
	name, message := httputil.ErrorName(respBody)
	flawP["error_name"] = name
	flawP["error_message"] = message

	code := resp.StatusCode
	detail := flaw.From(fmt.Errorf("received %d response: %s", code, name)).Append(flawP)

	switch {
	case code == http.StatusUnauthorized, name == "session-expired", name == "unauthorized":
		return errors.Join(ErrUnauthorized, detail)
	case code == http.StatusForbidden:
		return errors.Join(ErrAccessDenied, detail)
	case code == http.StatusNotFound, name == "not-found", name == "playlist-not-found":
		return errors.Join(ErrNotFound, detail)
	case code == http.StatusTooManyRequests:
		return &throttledError{retryAfter: httputil.RetryAfter(resp, time.Now()), err: detail}
	case code >= http.StatusInternalServerError:
		return errors.Join(ErrNetwork, detail)
	default:
		return detail
	}
}

type envelope[T any] struct {
	Result T `json:"result"`
}

func decodeResult[T any](ctx context.Context, b []byte) (*T, error) {
	var out envelope[T]
	if err := json.UnmarshalContext(ctx, b, &out); nil != err {
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP(), "response_body": truncate(b, 2048)}
		return nil, flaw.From(fmt.Errorf("failed to decode response body: %v", err)).Append(flawP)
	}
	return &out.Result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
