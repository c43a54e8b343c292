// Package relay serves images from allow-listed third-party hosts under the
// storefront's own origin.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/EcommerceGo/pkg/logger"
	"github.com/utafrali/EcommerceGo/pkg/tracing"
)

// RoutePrefix is the path the relay is mounted under.
const RoutePrefix = "/images/"

const (
	cacheControl       = "public, max-age=31536000, immutable"
	defaultContentType = "image/jpeg"

	msgInvalidURL    = "Invalid image URL"
	msgNotFound      = "Image not found"
	msgFetchFailed   = "Error fetching image"
	defaultMaxBody   = 15 << 20
	defaultTimeout   = 10 * time.Second
	defaultRedirects = 5
)

// Errors returned by Validate and the upstream fetch.
var (
	ErrInvalidURL         = errors.New("invalid image url")
	ErrHostNotAllowed     = errors.New("image host not allowed")
	ErrTooManyRedirects   = errors.New("too many upstream redirects")
	ErrRedirectNotAllowed = errors.New("redirect target not allowed")
	ErrBodyTooLarge       = errors.New("upstream image too large")
)

// Doer executes outbound requests. *httpclient.Client satisfies it; it must
// not follow redirects on its own.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds the relay settings.
type Config struct {
	AllowedHosts []string
	MaxRedirects int
	MaxBodyBytes int64
	Timeout      time.Duration
	UserAgent    string
}

// Handler is the image relay endpoint.
type Handler struct {
	allow        AllowList
	client       Doer
	maxRedirects int
	maxBodyBytes int64
	timeout      time.Duration
	userAgent    string
	logger       *slog.Logger
	tracer       trace.Tracer
}

// New creates a relay handler. Zero limits fall back to 5 redirects, a
// 15 MiB body and a 10s timeout.
func New(cfg Config, client Doer, log *slog.Logger) *Handler {
	h := &Handler{
		allow:        NewAllowList(cfg.AllowedHosts),
		client:       client,
		maxRedirects: cfg.MaxRedirects,
		maxBodyBytes: cfg.MaxBodyBytes,
		timeout:      cfg.Timeout,
		userAgent:    cfg.UserAgent,
		logger:       log,
		tracer:       tracing.Tracer("github.com/utafrali/EcommerceGo/services/storefront/relay"),
	}
	if h.maxRedirects <= 0 {
		h.maxRedirects = defaultRedirects
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = defaultMaxBody
	}
	if h.timeout <= 0 {
		h.timeout = defaultTimeout
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

type image struct {
	status      int
	contentType string
	body        []byte
}

// ServeHTTP relays GET /images/<escaped-url>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.WithContext(ctx, h.logger)

	raw := strings.TrimPrefix(r.URL.EscapedPath(), RoutePrefix)
	target, err := h.Validate(raw)
	if err != nil {
		requestsTotal.WithLabelValues(outcomeInvalid).Inc()
		l.DebugContext(ctx, "rejected image url",
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)
		writeText(w, http.StatusBadRequest, msgInvalidURL)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	img, err := h.fetch(ctx, target)
	if err != nil {
		requestsTotal.WithLabelValues(outcomeFetchFailed).Inc()
		l.WarnContext(ctx, "image relay fetch failed",
			slog.String("url", target.String()),
			slog.String("error", err.Error()),
		)
		writeText(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}

	if img.status != http.StatusOK {
		requestsTotal.WithLabelValues(outcomeNotFound).Inc()
		status := img.status
		if status == 0 {
			status = http.StatusNotFound
		}
		writeText(w, status, msgNotFound)
		return
	}

	requestsTotal.WithLabelValues(outcomeOK).Inc()
	contentType := img.contentType
	if contentType == "" {
		contentType = defaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.body)
}

// Hosts returns the allow-listed upstream hostnames.
func (h *Handler) Hosts() []string {
	return h.allow.Hosts()
}

// Validate decodes the escaped path segment raw and checks that it is an
// absolute http(s) URL on an allowed host.
func (h *Handler) Validate(raw string) (*url.URL, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u, err := parseAbsolute(decoded)
	if err != nil {
		return nil, err
	}
	if !h.allow.Allows(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return u, nil
}

func parseAbsolute(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// fetch GETs target, following at most maxRedirects redirects to allowed hosts.
func (h *Handler) fetch(ctx context.Context, target *url.URL) (*image, error) {
	current := target
	for hop := 0; ; hop++ {
		img, location, err := h.fetchOnce(ctx, current, hop)
		if err != nil {
			return nil, err
		}
		if location == "" {
			return img, nil
		}

		if hop >= h.maxRedirects {
			return nil, fmt.Errorf("%w: limit %d", ErrTooManyRedirects, h.maxRedirects)
		}
		ref, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedirectNotAllowed, err)
		}
		next, err := parseAbsolute(current.ResolveReference(ref).String())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedirectNotAllowed, err)
		}
		if !h.allow.Allows(next.Hostname()) {
			return nil, fmt.Errorf("%w: %s", ErrRedirectNotAllowed, next.Hostname())
		}

		redirectsTotal.Inc()
		current = next
	}
}

// fetchOnce performs one upstream request. For a redirect it returns the
// Location header and no image.
func (h *Handler) fetchOnce(ctx context.Context, u *url.URL, hop int) (_ *image, location string, err error) {
	ctx, span := h.tracer.Start(ctx, "image_relay.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("server.address", u.Hostname()),
			attribute.Int("relay.hop", hop),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("create upstream request: %w", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	start := time.Now()
	resp, err := h.client.Do(ctx, req)
	upstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, "", fmt.Errorf("%w: redirect without location", ErrRedirectNotAllowed)
		}
		return nil, loc, nil
	case http.StatusOK:
	default:
		return &image{status: resp.StatusCode}, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodyBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(body)) > h.maxBodyBytes {
		return nil, "", fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, h.maxBodyBytes)
	}

	return &image{
		status:      http.StatusOK,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, "", nil
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

// RewriteURL routes an absolute image URL through the relay mounted at
// prefix. Empty, relative and already relayed references are returned as is.
func RewriteURL(prefix, raw string) string {
	if raw == "" || strings.HasPrefix(raw, prefix) {
		return raw
	}
	if _, err := parseAbsolute(raw); err != nil {
		return raw
	}
	return prefix + url.PathEscape(raw)
}
