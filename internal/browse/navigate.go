package browse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/glasspane/glasspane/internal/dom"
	"github.com/glasspane/glasspane/internal/enforcer"
	"github.com/glasspane/glasspane/internal/httpx"
	"github.com/glasspane/glasspane/internal/logging"
	"github.com/glasspane/glasspane/internal/policy"
)

// Page is the result of a navigation: the enforced, rewritten document ready
// to serve.
type Page struct {
	HTML        string `json:"html"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	SessionID   string `json:"session_id"`
	Blocked     bool   `json:"blocked,omitempty"`
	BlockedRule string `json:"blocked_rule,omitempty"`
}

// Navigator fetches pages through the guarded client and prepares them for
// serving: rewrite, parse, enforce, render. Navigation is scoped to the
// configured upstream host; the gateway is not a general-purpose proxy.
type Navigator struct {
	client   *httpx.Client
	base     *url.URL
	table    *policy.Table
	reporter enforcer.Reporter
	log      *logging.Logger
	titles   *bluemonday.Policy
}

// NewNavigator creates a navigator bound to the upstream base URL. The
// reporter receives enforcement events for every page the navigator prepares.
func NewNavigator(client *httpx.Client, upstream string, table *policy.Table, log *logging.Logger, reporter enforcer.Reporter) (*Navigator, error) {
	base, err := url.Parse(upstream)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base URL %q", upstream)
	}

	return &Navigator{
		client:   client,
		base:     base,
		table:    table,
		reporter: reporter,
		log:      log.Component("browse"),
		titles:   bluemonday.StrictPolicy(),
	}, nil
}

// resolveTarget makes urlStr absolute against the upstream base and rejects
// hosts outside it. Subdomains of the upstream host stay in scope.
func (n *Navigator) resolveTarget(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", urlStr, err)
	}

	resolved := n.base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", resolved.Scheme)
	}
	if resolved.Host != n.base.Host &&
		!strings.HasSuffix(resolved.Hostname(), "."+n.base.Hostname()) {
		return "", fmt.Errorf("host %q is outside the configured upstream %q", resolved.Host, n.base.Host)
	}
	return resolved.String(), nil
}

// Navigate fetches urlStr for the session and returns the prepared page.
// The target must resolve inside the upstream host.
func (n *Navigator) Navigate(ctx context.Context, session *Session, urlStr string) (*Page, error) {
	urlStr, err := n.resolveTarget(urlStr)
	if err != nil {
		return nil, err
	}

	resp, err := n.fetch(ctx, session, urlStr, nil)
	if err != nil {
		return nil, err
	}

	if rule := resp.Header().Get(httpx.BlockedHeader); rule != "" {
		return &Page{URL: urlStr, SessionID: session.ID(), Blocked: true, BlockedRule: rule}, nil
	}

	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		return nil, fmt.Errorf("upstream returned HTTP %d for %s", status, urlStr)
	}

	contentType := resp.Header().Get("Content-Type")
	body, err := decodeBody(resp.Body(), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", urlStr, err)
	}
	if body == "" {
		return nil, fmt.Errorf("empty response body from %s (status %d)", urlStr, status)
	}

	session.storeCookies(urlStr, resp.RawResponse.Cookies())

	page, err := n.prepare(session, body, urlStr)
	if err != nil {
		return nil, err
	}
	page.Status = status
	page.ContentType = contentType
	return page, nil
}

// prepare rewrites the raw page, parses it into a live tree, attaches the
// enforcer, and renders the result.
func (n *Navigator) prepare(session *Session, rawHTML, urlStr string) (*Page, error) {
	rewritten, title, err := n.rewrite(rawHTML, urlStr, session.ID())
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", urlStr, err)
	}

	doc, err := dom.ParseString(rewritten)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", urlStr, err)
	}

	enf := enforcer.New(n.table, doc, n.log, n.reporter)
	enf.Attach()

	session.setPage(urlStr, doc, enf)

	html, err := doc.Render()
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", urlStr, err)
	}

	n.log.Info("page prepared",
		zap.String("url", urlStr),
		zap.String("session", session.ID()),
		zap.String("title", title),
	)

	return &Page{
		HTML:      html,
		Title:     title,
		URL:       urlStr,
		SessionID: session.ID(),
	}, nil
}

// fetch issues a GET through the guarded client with session headers.
func (n *Navigator) fetch(ctx context.Context, session *Session, urlStr string, extra map[string]string) (*resty.Response, error) {
	req, err := n.client.Request(ctx)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.SetHeader("User-Agent", session.UserAgent())
	req.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.SetHeader("Accept-Language", "en-US,en;q=0.9")
	if ref := session.Referer(); ref != "" {
		req.SetHeader("Referer", ref)
	}
	if cookie := session.cookieHeader(urlStr); cookie != "" {
		req.SetHeader("Cookie", cookie)
	}
	for k, v := range extra {
		req.SetHeader(k, v)
	}

	resp, err := n.client.Execute(func() (*resty.Response, error) {
		return req.Get(urlStr)
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// rewrite routes page traffic back through the gateway and strips active
// content. Returns the rewritten HTML and the sanitized title.
func (n *Navigator) rewrite(rawHTML, baseURL, sessionID string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid base URL: %w", err)
	}

	title := n.titles.Sanitize(strings.TrimSpace(doc.Find("title").First().Text()))
	if title == "" {
		title = base.Host
	}

	// Page scripts run in the gateway sandbox, never in the client.
	doc.Find("script").Remove()
	for _, attr := range []string{"onclick", "onload", "onerror", "onsubmit", "onmouseover", "onfocus"} {
		doc.Find("[" + attr + "]").RemoveAttr(attr)
	}

	n.rewriteLinks(doc, base, sessionID)
	n.rewriteImages(doc, base, sessionID)
	n.rewriteStylesheets(doc, base, sessionID)
	n.rewriteForms(doc, base, sessionID)

	if doc.Find("base").Length() == 0 {
		doc.Find("head").PrependHtml(fmt.Sprintf(`<base href="%s">`, baseURL))
	}

	html, err := doc.Html()
	if err != nil {
		return "", "", fmt.Errorf("render rewritten HTML: %w", err)
	}
	return html, title, nil
}

func (n *Navigator) rewriteLinks(doc *goquery.Document, base *url.URL, sessionID string) {
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if absolute := resolveURL(href, base); absolute != "" {
			s.SetAttr("href", proxyURL("navigate", absolute, sessionID))
			s.SetAttr("data-original-href", absolute)
		}
	})
}

func (n *Navigator) rewriteImages(doc *goquery.Document, base *url.URL, sessionID string) {
	doc.Find("img[src]").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}
		if absolute := resolveURL(src, base); absolute != "" {
			s.SetAttr("src", proxyURL("asset", absolute, sessionID))
			s.SetAttr("data-original-src", absolute)
		}
	})
}

func (n *Navigator) rewriteStylesheets(doc *goquery.Document, base *url.URL, sessionID string) {
	doc.Find("link[rel='stylesheet'][href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		if absolute := resolveURL(href, base); absolute != "" {
			s.SetAttr("href", proxyURL("asset", absolute, sessionID))
		}
	})
}

func (n *Navigator) rewriteForms(doc *goquery.Document, base *url.URL, sessionID string) {
	doc.Find("form[action]").Each(func(i int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		if action == "" {
			return
		}
		if absolute := resolveURL(action, base); absolute != "" {
			s.SetAttr("action", proxyURL("form", absolute, sessionID))
			s.SetAttr("data-original-action", absolute)
		}
	})
}

// resolveURL converts a page URL to absolute, rejecting unsafe schemes.
func resolveURL(href string, base *url.URL) string {
	lower := strings.ToLower(strings.TrimSpace(href))
	for _, scheme := range []string{"data:", "javascript:", "mailto:", "tel:", "vbscript:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// proxyURL builds the gateway path that serves the target.
func proxyURL(action, target, sessionID string) string {
	v := url.Values{}
	v.Set("url", target)
	if sessionID != "" {
		v.Set("session_id", sessionID)
	}
	return "/browse/" + action + "?" + v.Encode()
}

// decodeBody converts the response body to UTF-8. The Content-Type charset
// wins when present; otherwise the bytes are sniffed.
func decodeBody(body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Sniffing failed outright; fall back to statistical detection.
		detector := chardet.NewTextDetector()
		result, derr := detector.DetectBest(body)
		if derr != nil {
			return string(body), nil
		}
		reader, err = charset.NewReaderLabel(result.Charset, bytes.NewReader(body))
		if err != nil {
			return string(body), nil
		}
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
