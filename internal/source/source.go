// Package source opens the input named on the command line: a local path,
// a file:// or http(s):// URL, or "-" for stdin.
//
// Open returns a stream. Callers read only as much as they need; the sniffer
// stops at its byte bound and the rest of a remote body is never fetched.
package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Stdin is the target that selects standard input.
const Stdin = "-"

// Options configures Open.
type Options struct {
	// Timeout bounds an HTTP request including the body read. 0 means none.
	Timeout time.Duration
	// InsecureTLS skips certificate verification for https targets.
	InsecureTLS bool
	// Client overrides the HTTP client. Timeout and InsecureTLS are ignored
	// for TLS setup when set.
	Client *http.Client
	// Stdin is read for the "-" target. nil means os.Stdin.
	Stdin io.Reader
}

// Open opens target for reading. The caller must Close the result.
func Open(ctx context.Context, target string, opt Options) (io.ReadCloser, error) {
	target = strings.TrimSpace(target)
	switch {
	case target == "":
		return nil, fmt.Errorf("source: empty target")
	case target == Stdin:
		in := opt.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil
	case strings.HasPrefix(target, "file://"):
		return openFile(strings.TrimPrefix(target, "file://"))
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return openHTTP(ctx, target, opt)
	default:
		return openFile(target)
	}
}

func openFile(p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", p, err)
	}
	return f, nil
}

// cancelOnClose releases the request context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func openHTTP(ctx context.Context, target string, opt Options) (io.ReadCloser, error) {
	client := opt.Client
	if client == nil {
		client = &http.Client{}
		if opt.InsecureTLS {
			client.Transport = &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in flag
			}
		}
	}

	cancel := context.CancelFunc(func() {})
	if opt.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("source: new request: %w", err)
	}
	req.Header.Set("User-Agent", "csvsniff/1.0")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("source: http get: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("source: http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// Name derives a short dataset name from target: the base name without its
// extension, or "stdin".
func Name(target string) string {
	target = strings.TrimSpace(target)
	var base string
	switch {
	case target == Stdin || target == "":
		return "stdin"
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		u, err := url.Parse(target)
		if err != nil {
			return "remote"
		}
		base = path.Base(u.Path)
		if base == "/" || base == "." {
			return u.Hostname()
		}
	default:
		base = filepath.Base(strings.TrimPrefix(target, "file://"))
	}
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
