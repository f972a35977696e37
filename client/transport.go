package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// AuthEndpoints are the path fragments of calls that must never carry a
// bearer token or trigger a renewal
var AuthEndpoints = []string{
	"/auth/login",
	"/auth/register",
	"/auth/logout",
	"/auth/tokens/renew",
}

// IsAuthEndpoint reports whether u targets one of the AuthEndpoints
func IsAuthEndpoint(u *url.URL) bool {
	if u == nil {
		return false
	}
	for _, p := range AuthEndpoints {
		if strings.Contains(u.Path, p) {
			return true
		}
	}
	return false
}

// rewindable returns a clone of req whose body can be produced again for a
// replay. The original body is consumed and closed.
func rewindable(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody != nil {
		req.Body.Close()
		return out, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return out, nil
}

// authorize clones req with a fresh body and the given bearer token.
// Any Authorization header already on req is replaced.
func authorize(req *http.Request, token string) (*http.Request, error) {
	// Clone the request to avoid mutating the original
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return out, nil
}

// discard drains and closes a response that will not reach the caller
func discard(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
