package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/glasspane/glasspane/internal/httpx"
)

// SubmitForm submits a form through the guarded client. Mutation endpoints
// are blocked at the transport, so a submission that matches the policy
// comes back as a blocked page instead of reaching upstream.
func (n *Navigator) SubmitForm(ctx context.Context, session *Session, urlStr, method string, data map[string]string) (*Page, error) {
	urlStr, err := n.resolveTarget(urlStr)
	if err != nil {
		return nil, err
	}

	if method == "" {
		method = "POST"
	}
	method = strings.ToUpper(method)

	req, err := n.client.Request(ctx)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.SetHeader("User-Agent", session.UserAgent())
	req.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if ref := session.Referer(); ref != "" {
		req.SetHeader("Referer", ref)
	}
	if cookie := session.cookieHeader(urlStr); cookie != "" {
		req.SetHeader("Cookie", cookie)
	}

	var resp *resty.Response
	if method == "GET" {
		for k, v := range data {
			req.SetQueryParam(k, v)
		}
		resp, err = n.client.Execute(func() (*resty.Response, error) {
			return req.Get(urlStr)
		})
	} else {
		req.SetFormData(data)
		resp, err = n.client.Execute(func() (*resty.Response, error) {
			return req.Execute(method, urlStr)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("form submission failed: %w", err)
	}

	if rule := resp.Header().Get(httpx.BlockedHeader); rule != "" {
		return &Page{
			URL:         urlStr,
			SessionID:   session.ID(),
			Status:      resp.StatusCode(),
			Blocked:     true,
			BlockedRule: rule,
		}, nil
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

	session.storeCookies(urlStr, resp.RawResponse.Cookies())

	page, err := n.prepare(session, body, urlStr)
	if err != nil {
		return nil, err
	}
	page.Status = status
	page.ContentType = contentType
	return page, nil
}
