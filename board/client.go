package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/threadgoon/threadgoon/failure"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultUserAgent      = "threadgoon"
)

// Options is the immutable configuration of a Client
type Options struct {
	Board          string
	APIURL         string
	MediaURL       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	UserAgent      string
	SkipSticky     bool
}

// clientOption configures optional Client collaborators
type clientOption func(*Client)

// withHTTPClient replaces the HTTP client built from Options.
// The read-timeout watchdog on response bodies stays active.
func withHTTPClient(httpClient *http.Client) clientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client talks to the board JSON API
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new board client
func NewClient(opts Options, logger zerolog.Logger, extra ...clientOption) (*Client, error) {
	if opts.Board == "" {
		return nil, fmt.Errorf("%w: board name is required", ErrInvalidConfig)
	}
	if opts.APIURL == "" || opts.MediaURL == "" {
		return nil, fmt.Errorf("%w: api and media URLs are required", ErrInvalidConfig)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	// Ensure URLs don't have trailing slashes
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	opts.MediaURL = strings.TrimRight(opts.MediaURL, "/")

	c := &Client{
		opts:       opts,
		httpClient: newHTTPClient(opts),
		logger:     logger,
	}

	for _, opt := range extra {
		opt(c)
	}

	return c, nil
}

// newHTTPClient builds a client with bounded connect and header timeouts.
// There is no overall request timeout: attachment bodies may be large and
// are guarded by the idle-read watchdog instead.
func newHTTPClient(opts Options) *http.Client {
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			ResponseHeaderTimeout: opts.ReadTimeout,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// CatalogURL returns the catalog endpoint
func (c *Client) CatalogURL() string {
	return fmt.Sprintf("%s/%s/catalog.json", c.opts.APIURL, c.opts.Board)
}

// ListingURL returns the thread endpoint for id
func (c *Client) ListingURL(id int64) string {
	return fmt.Sprintf("%s/%s/thread/%d.json", c.opts.APIURL, c.opts.Board, id)
}

// AttachmentURL returns the media URL of an attachment
func (c *Client) AttachmentURL(task AttachmentTask) string {
	return fmt.Sprintf("%s/%s/%d%s", c.opts.MediaURL, c.opts.Board, task.RemoteID, task.Extension)
}

// FetchCatalog retrieves all threads of the board in catalog order
func (c *Client) FetchCatalog(ctx context.Context) ([]ListingSummary, error) {
	url := c.CatalogURL()
	c.logger.Info().Str("url", url).Msg("Fetching catalog")

	var pages []CatalogPage
	if err := c.getJSON(ctx, "fetch catalog", url, &pages); err != nil {
		return nil, err
	}

	var listings []ListingSummary
	var skipped int
	for _, page := range pages {
		for _, thread := range page.Threads {
			summary := thread.ToSummary()
			if c.opts.SkipSticky && summary.Sticky {
				skipped++
				continue
			}
			listings = append(listings, summary)
		}
	}

	c.logger.Debug().
		Int("pages", len(pages)).
		Int("threads", len(listings)).
		Int("sticky_skipped", skipped).
		Msg("Retrieved catalog")

	return listings, nil
}

// FetchListing retrieves the posts of a single thread
func (c *Client) FetchListing(ctx context.Context, id int64) (*ThreadPayload, error) {
	url := c.ListingURL(id)
	c.logger.Debug().Int64("thread", id).Str("url", url).Msg("Fetching thread")

	var payload ThreadPayload
	if err := c.getJSON(ctx, "fetch listing", url, &payload); err != nil {
		return nil, err
	}

	if payload.Posts == nil {
		return nil, &failure.Error{
			Kind: failure.KindSchemaMismatch,
			Op:   "fetch listing",
			URL:  url,
			Err:  errors.New(`missing "posts" array`),
		}
	}

	return &payload, nil
}

// getJSON performs a streamed GET and decodes the body into v
func (c *Client) getJSON(ctx context.Context, op, url string, v any) error {
	stream, err := c.open(ctx, op, url)
	if err != nil {
		return err
	}
	defer stream.Body.Close()

	if err := json.NewDecoder(stream.Body).Decode(v); err != nil {
		return classifyDecode(op, url, err)
	}

	return nil
}

// Stream is an open response body
type Stream struct {
	Body io.ReadCloser
	// ContentLength is the declared body size, 0 when unknown
	ContentLength int64
}

// Stream issues a streamed GET for url. The caller must close Body.
// Body read errors are *failure.Error values.
func (c *Client) Stream(ctx context.Context, url string) (*Stream, error) {
	return c.open(ctx, "download", url)
}

func (c *Client) open(ctx context.Context, op, url string) (*Stream, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel(nil)
		return nil, &failure.Error{Kind: failure.KindTransport, Op: op, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fe := classifyTransport(op, url, ctx, reqCtx, err)
		cancel(nil)
		return nil, fe
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel(nil)
		return nil, &failure.Error{
			Kind:       failure.KindHTTPStatus,
			Op:         op,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	contentLength := resp.ContentLength
	if contentLength < 0 {
		contentLength = 0
	}

	body := &idleTimeoutBody{
		body:    resp.Body,
		timeout: c.opts.ReadTimeout,
		op:      op,
		url:     url,
		parent:  ctx,
		reqCtx:  reqCtx,
		cancel:  cancel,
	}
	body.timer = time.AfterFunc(c.opts.ReadTimeout, func() {
		cancel(ErrIdleTimeout)
	})

	return &Stream{Body: body, ContentLength: contentLength}, nil
}

// idleTimeoutBody cancels the request when no bytes arrive for timeout
type idleTimeoutBody struct {
	body    io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	op      string
	url     string
	parent  context.Context
	reqCtx  context.Context
	cancel  context.CancelCauseFunc
}

// Read implements io.Reader
func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.timer.Reset(b.timeout)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			b.timer.Stop()
			return n, err
		}
		return n, classifyTransport(b.op, b.url, b.parent, b.reqCtx, err)
	}
	return n, nil
}

// Close implements io.Closer
func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	err := b.body.Close()
	b.cancel(nil)
	return err
}
