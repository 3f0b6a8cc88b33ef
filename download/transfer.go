package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/ymusic"
)

const (
	chunkSize    = 8 * 1024
	partFileExt  = ".part"
	maxErrorBody = 1024
)

// ProgressFunc receives the bytes written so far and the expected total,
// which is -1 when the server did not announce it.
type ProgressFunc func(written, total int64)

type progressWriter struct {
	written  int64
	total    int64
	progress ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if nil != p.progress {
		p.progress(p.written, p.total)
	}
	return len(b), nil
}

type contextReader struct {
	ctx context.Context //nolint:containedctx
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); nil != err {
		return 0, err
	}
	return r.r.Read(p)
}

func transferError(err error) error {
	return errors.Join(ymusic.ErrTransfer, err)
}

// transfer streams link into filePath. Bytes go to a sibling part file that
// is moved into place only after the whole body was written.
func (e *Executor) transfer(ctx context.Context, link, filePath string, progress ProgressFunc) (n int64, err error) {
	flawP := flaw.P{"file_path": filePath}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o0755); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, transferError(flaw.From(fmt.Errorf("failed to create track directory: %v", err)).Append(flawP))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, transferError(flaw.From(fmt.Errorf("failed to create track request: %v", err)).Append(flawP))
	}
	flawP["request"] = errutil.HTTPRequestFlawPayload(req)

	resp, err := e.client.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return 0, ctx.Err()
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return 0, transferError(flaw.From(fmt.Errorf("failed to send track request: %v", err)).Append(flawP))
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			e.logger.Debug().Err(closeErr).Str("file_path", filePath).Msg("Failed to close track response body")
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(resp)

	if code := resp.StatusCode; code < 200 || code > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		flawP["response_body"] = string(body)
		return 0, transferError(flaw.From(fmt.Errorf("unexpected status code received from track storage: %d", code)).Append(flawP))
	}

	partPath := filePath + partFileExt
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o0644)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, transferError(flaw.From(fmt.Errorf("failed to create part file: %v", err)).Append(flawP))
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr && !errors.Is(closeErr, os.ErrClosed) {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close part file: %v", closeErr)).Append(flawP)
			switch {
			case nil == err:
				err = transferError(closeErr)
			case errutil.IsFlaw(err):
				err = errors.Join(err, closeErr)
			}
		}
		if nil != err {
			if removeErr := os.Remove(partPath); nil != removeErr && !errors.Is(removeErr, os.ErrNotExist) {
				e.logger.Warn().Err(removeErr).Str("part_path", partPath).Msg("Failed to remove part file")
			}
		}
	}()

	counter := &progressWriter{written: 0, total: resp.ContentLength, progress: progress}
	buf := make([]byte, chunkSize)
	n, err = io.CopyBuffer(io.MultiWriter(f, counter), &contextReader{ctx: ctx, r: resp.Body}, buf)
	if nil != err {
		if errutil.IsContext(ctx) {
			return 0, ctx.Err()
		}
		flawP["bytes_written"] = n
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, transferError(flaw.From(fmt.Errorf("failed to write track file: %v", err)).Append(flawP))
	}
	flawP["bytes_written"] = n

	if expected := resp.ContentLength; expected >= 0 && n != expected {
		return 0, transferError(flaw.From(fmt.Errorf("track body is %d bytes, expected %d", n, expected)).Append(flawP))
	}

	if err := f.Sync(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, transferError(flaw.From(fmt.Errorf("failed to sync part file: %v", err)).Append(flawP))
	}
	if err := f.Close(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, transferError(flaw.From(fmt.Errorf("failed to close part file: %v", err)).Append(flawP))
	}
	if err := os.Rename(partPath, filePath); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, transferError(flaw.From(fmt.Errorf("failed to move part file into place: %v", err)).Append(flawP))
	}

	return n, nil
}
