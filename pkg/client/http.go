package client

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/resilience"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// errDegraded marks a 5xx inside the breaker so it counts as a failure
// while the error envelope still gets decoded.
var errDegraded = errors.New("server degraded")

type errorEnvelope struct {
	Error *types.ErrorBody `json:"error"`
}

// do runs one request through the breaker and maps failures onto the
// shared error taxonomy. Backend errors come back with their original
// code; transport and breaker failures classify as transport_error.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var env errorEnvelope

	c.httpMu.RLock()
	req := c.http.R().SetContext(ctx).SetError(&env)
	c.httpMu.RUnlock()
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, rerr := req.Execute(method, path)
		if rerr != nil {
			return nil, rerr
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errDegraded
		}
		return resp, nil
	})
	if err != nil && !errors.Is(err, errDegraded) {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return types.TransportError("backend unavailable: %v", err)
		}
		return types.TransportError("%s %s failed: %v", method, path, err)
	}

	resp := res.(*resty.Response)
	if resp.IsError() {
		if env.Error != nil {
			return types.NewError(env.Error.Code, "%s", env.Error.Message)
		}
		return types.TransportError("%s %s returned status %d", method, path, resp.StatusCode())
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) filesPath(op string) string {
	return "/sessions/" + c.sessionID + "/files/" + op
}

// ReadFile returns the content of one file in the session tree.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	var out types.FileReadResponse
	if err := c.post(ctx, c.filesPath("read"), types.FileReadRequest{Path: path}, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// WriteFile writes content to path, creating parent directories as
// needed. Every client of the session observes the write as a
// file-change event.
func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	return c.post(ctx, c.filesPath("write"), types.FileWriteRequest{Path: path, Content: content}, nil)
}

// Mkdir creates a directory, parents included.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	return c.post(ctx, c.filesPath("mkdir"), types.MkdirRequest{Path: path, Recursive: true}, nil)
}

// ReadDir lists a directory with entry types. Empty path means the
// session root.
func (c *Client) ReadDir(ctx context.Context, path string) ([]types.EntryInfo, error) {
	var out types.FileListResponse
	if err := c.post(ctx, c.filesPath("list"), types.FileListRequest{Path: path, WithTypes: true}, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Rm deletes a file, or a whole subtree when recursive is set.
func (c *Client) Rm(ctx context.Context, path string, recursive bool) error {
	return c.post(ctx, c.filesPath("remove"), types.FileRemoveRequest{Path: path, Recursive: recursive}, nil)
}

// Stat returns metadata for one entry.
func (c *Client) Stat(ctx context.Context, path string) (*types.StatInfo, error) {
	var out types.StatInfo
	if err := c.post(ctx, c.filesPath("stat"), types.FileStatRequest{Path: path}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Find returns session-relative paths matching a doublestar glob.
func (c *Client) Find(ctx context.Context, pattern string) ([]string, error) {
	var out types.FileFindResponse
	if err := c.post(ctx, c.filesPath("find"), types.FileFindRequest{Pattern: pattern}, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// Info returns the server's bookkeeping view of the session.
func (c *Client) Info(ctx context.Context) (*types.SessionInfo, error) {
	var out types.SessionInfo
	if err := c.get(ctx, "/sessions/"+c.sessionID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the session server-side. With purge the mirrored
// files go too; without it they survive for a later session with the
// same id.
func (c *Client) Delete(ctx context.Context, purge bool) error {
	path := "/sessions/" + c.sessionID
	if purge {
		path += "?purge=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Export streams the session tree as a tar.gz archive into w.
func (c *Client) Export(ctx context.Context, w io.Writer) error {
	c.httpMu.RLock()
	req := c.http.R().SetContext(ctx).SetDoNotParseResponse(true)
	c.httpMu.RUnlock()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, rerr := req.Get("/sessions/" + c.sessionID + "/export")
		if rerr != nil {
			return nil, rerr
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errDegraded
		}
		return resp, nil
	})
	if err != nil && !errors.Is(err, errDegraded) {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return types.TransportError("backend unavailable: %v", err)
		}
		return types.TransportError("export failed: %v", err)
	}

	resp := res.(*resty.Response)
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() != http.StatusOK {
		var env errorEnvelope
		data, _ := io.ReadAll(io.LimitReader(raw, 4096))
		if sonic.Unmarshal(data, &env) == nil && env.Error != nil {
			return types.NewError(env.Error.Code, "%s", env.Error.Message)
		}
		return types.TransportError("export returned status %d", resp.StatusCode())
	}

	if _, err := io.Copy(w, raw); err != nil {
		return types.TransportError("export stream interrupted: %v", err)
	}
	return nil
}
