// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/httputil"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// maxBodySize caps any single response body.
const maxBodySize = 100 << 20

// challengeMarkers identify anti-automation interstitials. Matched
// case-insensitively against HTML bodies.
var challengeMarkers = []string{
	"captcha",
	"cloudflare",
	"ddos-guard",
	"cf-browser-verification",
	"checking your browser",
	"just a moment...",
	"are you a robot",
}

// Env carries the settings shared by every adapter built from one
// configuration.
type Env struct {
	HTTP types.HTTPConfig

	// Validator screens candidate documents inside adapters that choose
	// between several candidates (mirror, doi, browser).
	Validator acquire.Validator

	Logger *slog.Logger
}

// fetcher is the HTTP plumbing of one source adapter: a client, the
// source's rate limiter, and the request identity.
type fetcher struct {
	name      string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string

	// proxy is the configured proxy URL, empty when the source bypasses it.
	proxy     string
	validator acquire.Validator
	logger    *slog.Logger
}

func newFetcher(env Env, cfg types.SourceConfig) (*fetcher, error) {
	client, err := httputil.NewClient(env.HTTP, !cfg.NoProxy)
	if err != nil {
		return nil, err
	}
	ua := env.HTTP.UserAgent
	if ua == "" {
		ua = httputil.DefaultUserAgent
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	proxy := env.HTTP.Proxy
	if cfg.NoProxy {
		proxy = ""
	}
	return &fetcher{
		name:      cfg.Name,
		proxy:     proxy,
		client:    client,
		limiter:   httputil.NewLimiter(cfg.RateLimit),
		userAgent: ua,
		validator: env.Validator,
		logger:    logger.With("source", cfg.Name),
	}, nil
}

// response is a fully read HTTP response.
type response struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	Header      http.Header
	ContentType string
	Body        []byte
}

// isDocument reports whether the response declares or carries a PDF.
func (r *response) isDocument() bool {
	if mediaType(r.ContentType) == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(r.Body, []byte("%PDF-"))
}

// isHTML reports whether the response is a markup page.
func (r *response) isHTML() bool {
	mt := mediaType(r.ContentType)
	if mt == "text/html" || mt == "application/xhtml+xml" {
		return true
	}
	if mt == "" {
		head := bytes.ToLower(bytes.TrimSpace(r.Body[:min(len(r.Body), 512)]))
		return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
	}
	return false
}

// challenged reports whether an HTML body carries challenge markers.
func (r *response) challenged() bool {
	return r.isHTML() && hasChallenge(r.Body)
}

func hasChallenge(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, m := range challengeMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return true
		}
	}
	return false
}

// get performs a GET request and reads the whole body. The returned error
// is a transport failure; HTTP error statuses are returned as responses.
func (f *fetcher) get(ctx context.Context, rawURL string, header http.Header) (*response, error) {
	if err := httputil.Wait(ctx, f.limiter); err != nil {
		return nil, fmt.Errorf("%w: %v", errRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	f.logger.Debug("http get", "url", rawURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, errBodyTooLarge
	}

	return &response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

var (
	errBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", maxBodySize)
	errRateLimited  = errors.New("rate limit wait abandoned")
)

// getJSON fetches rawURL and decodes a 200 response into v. When ok is
// false the returned Outcome classifies the failure.
func (f *fetcher) getJSON(ctx context.Context, rawURL string, header http.Header, v any) (acquire.Outcome, bool) {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	resp, err := f.get(ctx, rawURL, header)
	if err != nil {
		return classifyError(err), false
	}
	if resp.StatusCode != http.StatusOK {
		return classifyResponse(resp), false
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		if resp.challenged() {
			return acquire.Blocked("challenge page instead of API response"), false
		}
		return acquire.Permanent("parsing response: %v", err), false
	}
	return acquire.Outcome{}, true
}

// download fetches a document URL. A markup page where a document was
// expected is a permanent failure, and a blocked one when it carries
// challenge markers.
func (f *fetcher) download(ctx context.Context, rawURL string) acquire.Outcome {
	resp, err := f.get(ctx, rawURL, http.Header{"Accept": {"application/pdf,*/*;q=0.8"}})
	if err != nil {
		return classifyError(err)
	}
	return documentOutcome(resp)
}

// documentOutcome classifies a response fetched as a document.
func documentOutcome(resp *response) acquire.Outcome {
	if resp.StatusCode != http.StatusOK {
		return classifyResponse(resp)
	}
	if resp.challenged() {
		return withURL(acquire.Blocked("challenge page at %s", resp.URL), resp.URL)
	}
	if resp.isHTML() {
		return withURL(acquire.Permanent("HTML page instead of document at %s", resp.URL), resp.URL)
	}
	if len(resp.Body) == 0 {
		return withURL(acquire.Permanent("empty response from %s", resp.URL), resp.URL)
	}
	return acquire.Success(resp.Body, resp.ContentType, resp.URL)
}

// classifyResponse maps a non-200 HTTP status to an Outcome.
func classifyResponse(resp *response) acquire.Outcome {
	code := resp.StatusCode
	var out acquire.Outcome
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		out = acquire.NotFound("HTTP %d", code)
	case code == http.StatusRequestTimeout || code == http.StatusTooEarly ||
		code == http.StatusTooManyRequests || code >= 500:
		if resp.challenged() {
			// Cloudflare serves its interstitial with 503.
			out = acquire.Blocked("HTTP %d challenge page", code)
		} else {
			out = acquire.Transient("HTTP %d", code)
		}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		out = acquire.Blocked("HTTP %d", code)
	case code >= 200 && code < 300:
		out = acquire.Permanent("unexpected HTTP %d", code)
	default:
		out = acquire.Permanent("HTTP %d", code)
	}
	return withURL(out, resp.URL)
}

// classifyError maps a transport error to an Outcome. Timeouts and
// dropped connections are transient; resolution, TLS and URL errors are
// permanent.
func classifyError(err error) acquire.Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, errRateLimited) {
		return acquire.Transient("%v", err)
	}
	if errors.Is(err, errBodyTooLarge) {
		return acquire.Permanent("%v", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return acquire.Transient("DNS lookup: %v", dnsErr)
		}
		return acquire.Permanent("DNS lookup: %v", dnsErr)
	}

	var (
		certErr     *tls.CertificateVerificationError
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
	)
	if errors.As(err, &certErr) || errors.As(err, &unknownCA) || errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) || errors.As(err, &recordErr) {
		return acquire.Permanent("TLS: %v", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return acquire.Transient("timeout: %v", err)
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return acquire.Transient("connection: %v", err)
	}

	msg := err.Error()
	if strings.Contains(msg, "unsupported protocol scheme") || strings.Contains(msg, "invalid URL") ||
		strings.Contains(msg, "stopped after") || strings.Contains(msg, "creating request") {
		return acquire.Permanent("%v", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return acquire.Transient("request: %v", err)
	}
	return acquire.Permanent("%v", err)
}

func withURL(o acquire.Outcome, u string) acquire.Outcome {
	o.URL = u
	return o
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// resolveRef resolves a possibly relative reference against base.
// Protocol-relative references get https.
func resolveRef(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return "", false
	}
	if strings.HasPrefix(ref, "//") {
		ref = "https:" + ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	u := b.ResolveReference(r)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// doiPath escapes a DOI for use as a URL path while keeping its slashes.
func doiPath(doi string) string {
	return (&url.URL{Path: doi}).EscapedPath()
}
