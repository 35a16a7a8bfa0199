package browse

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
)

// Asset is a proxied subresource: image, stylesheet, or font.
type Asset struct {
	Data        []byte
	ContentType string
	URL         string
}

// ProxyAsset fetches a subresource through the guarded client. Assets are
// GETs, so classification always lets them through; routing them here keeps
// the client origin-clean and reuses session cookies. Unlike navigation,
// assets may live on any host: the upstream serves media from CDNs.
func (n *Navigator) ProxyAsset(ctx context.Context, session *Session, urlStr string) (*Asset, error) {
	urlStr, err := n.resolveAsset(urlStr)
	if err != nil {
		return nil, err
	}

	req, err := n.client.Request(ctx)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.SetHeader("User-Agent", session.UserAgent())
	req.SetHeader("Accept", "*/*")
	if ref := session.Referer(); ref != "" {
		req.SetHeader("Referer", ref)
	}
	if cookie := session.cookieHeader(urlStr); cookie != "" {
		req.SetHeader("Cookie", cookie)
	}

	resp, err := n.client.Execute(func() (*resty.Response, error) {
		return req.Get(urlStr)
	})
	if err != nil {
		return nil, fmt.Errorf("asset fetch failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		return nil, fmt.Errorf("upstream returned HTTP %d for %s", status, urlStr)
	}

	data := resp.Body()
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}

	session.storeCookies(urlStr, resp.RawResponse.Cookies())

	return &Asset{
		Data:        data,
		ContentType: contentType,
		URL:         urlStr,
	}, nil
}

// resolveAsset makes urlStr absolute against the upstream base without the
// navigation host restriction.
func (n *Navigator) resolveAsset(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid asset URL %q: %w", urlStr, err)
	}

	resolved := n.base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", resolved.Scheme)
	}
	return resolved.String(), nil
}
