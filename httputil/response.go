package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
)

func readResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return nil, flaw.From(fmt.Errorf("failed to read response body: %v", err)).Append(flawP)
		}
	}
	if len(respBody) == 0 {
		return nil, io.EOF
	}
	return respBody, nil
}

func ReadResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := readResponseBody(ctx, resp)
	if nil != err {
		if errors.Is(err, io.EOF) {
			return nil, flaw.From(errors.New("unexpected empty response body"))
		}
		return nil, err
	}
	return respBody, nil
}

func ReadOptionalResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := readResponseBody(ctx, resp)
	if nil != err && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return respBody, nil
}

// ErrorName extracts the error name and message from a Yandex Music API error
// body. The API reports errors either as an object under "error" or as a
// bare string.
func ErrorName(b []byte) (name, message string) {
	if !gjson.ValidBytes(b) {
		return "", ""
	}
	res := gjson.GetBytes(b, "error")
	switch {
	case res.IsObject():
		return res.Get("name").String(), res.Get("message").String()
	case res.Type == gjson.String:
		return res.String(), gjson.GetBytes(b, "error_description").String()
	default:
		return "", ""
	}
}

// RetryAfter returns the delay requested by the Retry-After header, or zero
// when absent or malformed.
func RetryAfter(resp *http.Response, now time.Time) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); nil == err {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); nil == err {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
