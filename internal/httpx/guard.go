package httpx

import (
	"io"
	"net/http"
	"strings"

	"github.com/glasspane/glasspane/internal/policy"
)

// BlockedHeader marks synthetic responses so callers can tell a policy block
// from a genuine upstream 204.
const BlockedHeader = "X-Glasspane-Blocked"

// VerdictReporter observes every classification made on the wire path.
type VerdictReporter interface {
	RequestClassified(v policy.Verdict, method, url string)
}

// UpstreamReporter is implemented by reporters that also want to see
// responses that actually reached the upstream.
type UpstreamReporter interface {
	UpstreamResponse(method string, status int)
}

// GuardedTransport is the network-interception hook: every outbound request
// passes the classifier before it reaches the wire. Blocked requests are
// answered with a synthetic 204 No Content; the classifier itself never
// touches the network layer, this transport owns the substitution.
type GuardedTransport struct {
	next       http.RoundTripper
	classifier *policy.Classifier
	reporter   VerdictReporter
}

// NewGuardedTransport wraps next with policy classification.
func NewGuardedTransport(next http.RoundTripper, classifier *policy.Classifier, reporter VerdictReporter) *GuardedTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &GuardedTransport{
		next:       next,
		classifier: classifier,
		reporter:   reporter,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *GuardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := ""
	if req.URL != nil {
		url = req.URL.String()
	}

	v := t.classifier.Classify(req.Method, url)
	if t.reporter != nil {
		t.reporter.RequestClassified(v, req.Method, url)
	}

	if v.Blocked() {
		if req.Body != nil {
			req.Body.Close()
		}
		return syntheticNoContent(req, v), nil
	}

	resp, err := t.next.RoundTrip(req)
	if err == nil && resp != nil {
		if ur, ok := t.reporter.(UpstreamReporter); ok {
			ur.UpstreamResponse(req.Method, resp.StatusCode)
		}
	}
	return resp, err
}

// syntheticNoContent builds the substitute response for a blocked request.
func syntheticNoContent(req *http.Request, v policy.Verdict) *http.Response {
	header := make(http.Header)
	header.Set(BlockedHeader, v.Rule)

	return &http.Response{
		Status:        http.StatusText(http.StatusNoContent),
		StatusCode:    http.StatusNoContent,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader("")),
		ContentLength: 0,
		Request:       req,
	}
}
