// Package fetch downloads containers over HTTP and drives a remote converter
// started with the serve command. Requests are throttled and retried when the
// remote end is busy.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/levigross/grequests"
	"golang.org/x/net/publicsuffix"

	"mcz2osz/config"
	"mcz2osz/resource"
)

const (
	defaultRetries = 5
	defaultBackoff = 5 * time.Second
	maxBackoff     = 5 * time.Minute
)

var (
	ErrNotContainer = errors.New("payload is not a zip container")
	ErrStatus       = errors.New("unexpected status")
)

type Client struct {
	// Retries is how many times a busy or failing request is repeated.
	Retries int
	// Backoff is the first wait between retries; it doubles on each retry.
	Backoff time.Duration

	throttle  *throttle
	jar       http.CookieJar
	userAgent string
	timeout   time.Duration
	logger    *log.Logger
}

// Options are the remote conversion settings sent along with an upload.
type Options struct {
	Rate  bool    `url:"rate"`
	Speed float64 `url:"speed,omitempty"`
}

type remoteResult struct {
	Download  string          `json:"download"`
	Summaries json.RawMessage `json:"summaries"`
	Error     string          `json:"error"`
}

func New(cfg config.Fetch, logger *log.Logger) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		Retries:   defaultRetries,
		Backoff:   defaultBackoff,
		throttle:  newThrottle(cfg.RateLimit, cfg.Concurrency),
		jar:       jar,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

func (c *Client) options(ctx context.Context, extra ...grequests.Option) []grequests.Option {
	return append([]grequests.Option{
		grequests.UserAgent(c.userAgent),
		grequests.RequestTimeout(c.timeout),
		grequests.CookieJar(c.jar),
		grequests.Context(ctx),
	}, extra...)
}

// Download fetches the container at rawURL into dir and returns the written
// path. The file is named after the Content-Disposition header or, failing
// that, the last URL path segment.
func (c *Client) Download(ctx context.Context, rawURL, dir string) (string, error) {
	done, err := c.throttle.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	body, header, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if _, err := zip.NewReader(bytes.NewReader(body), int64(len(body))); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotContainer, rawURL, err)
	}

	name := remoteName(rawURL, header)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return "", err
	}
	c.logger.Printf("downloaded %s (%d bytes)", name, len(body))
	return out, nil
}

// ConvertRemote uploads the container at p to a serve instance at server and
// saves the converted .osz next to it.
func (c *Client) ConvertRemote(ctx context.Context, server, p string, opts Options) (string, error) {
	done, err := c.throttle.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	values, err := query.Values(opts)
	if err != nil {
		return "", err
	}
	server = strings.TrimSuffix(server, "/")

	result, err := c.upload(ctx, server+"/upload?"+values.Encode(), p)
	if err != nil {
		return "", err
	}

	body, _, err := c.get(ctx, server+result.Download)
	if err != nil {
		return "", err
	}
	out := strings.TrimSuffix(p, filepath.Ext(p)) + ".osz"
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return "", err
	}
	c.logger.Printf("converted %s remotely", filepath.Base(p))
	return out, nil
}

func (c *Client) upload(ctx context.Context, target, p string) (*remoteResult, error) {
	if err := c.throttle.wait(ctx); err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resp, err := grequests.Post(target, c.options(ctx, grequests.Files([]grequests.FileUpload{{
		FileName:     filepath.Base(p),
		FileContents: f,
		FieldName:    "file",
	}}))...)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	var result remoteResult
	if err := json.Unmarshal(resp.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, target)
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%w %d from %s: %s", ErrStatus, resp.StatusCode, target, result.Error)
	}
	if result.Download == "" {
		return nil, fmt.Errorf("%s: no download link in response", target)
	}
	return &result, nil
}

// get retries connection failures, 429 and 5xx responses with a growing
// pause, honouring Retry-After when the server sends one.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	for attempt := 0; ; attempt++ {
		if err := c.throttle.wait(ctx); err != nil {
			return nil, nil, err
		}
		resp, err := grequests.Get(rawURL, c.options(ctx)...)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			wait = backoff
			err = fmt.Errorf("get %s: %w", rawURL, err)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait = retryAfter(resp.Header, backoff)
			err = fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, rawURL)
			resp.Close()
		case !resp.Ok:
			resp.Close()
			return nil, nil, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, rawURL)
		default:
			body := resp.Bytes()
			header := resp.Header
			resp.Close()
			return body, header, nil
		}

		if attempt >= c.Retries {
			return nil, nil, err
		}
		c.logger.Printf("%v, retrying in %s", err, wait)
		if err := sleep(ctx, wait); err != nil {
			return nil, nil, err
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, maxBackoff)
	}
	return fallback
}

func remoteName(rawURL string, h http.Header) string {
	var name string
	if _, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil {
			name = path.Base(u.Path)
		}
	}
	switch name = path.Base(strings.ReplaceAll(name, "\\", "/")); name {
	case "", ".", "..", "/":
		name = "download"
	}
	name = resource.Sanitize(name)
	if filepath.Ext(name) == "" {
		name += ".mcz"
	}
	return name
}
