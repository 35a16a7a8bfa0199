package policy

import (
	"strings"

	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/logging"
)

// Action is the classifier outcome for one outbound request.
type Action string

const (
	ActionAllow Action = "allow"
	ActionBlock Action = "block"
)

// RuleKind names which part of the policy table produced a verdict.
type RuleKind string

const (
	RuleKindNone    RuleKind = ""
	RuleKindGraphQL RuleKind = "graphql_operation"
	RuleKindREST    RuleKind = "rest_path"
)

// Verdict is the classification of a single request. It carries the matched
// rule for observability; it is derived per request and never stored.
type Verdict struct {
	Action Action   `json:"action"`
	Rule   string   `json:"rule,omitempty"`
	Kind   RuleKind `json:"kind,omitempty"`
}

// Blocked reports whether the request must not reach the network.
func (v Verdict) Blocked() bool {
	return v.Action == ActionBlock
}

var allow = Verdict{Action: ActionAllow}

// Path markers for the two API surfaces of the target site.
const (
	graphQLMarker = "/graphql/"
	restMarker    = "/1.1/"
)

// Classifier decides ALLOW or BLOCK for outbound requests. It holds no
// mutable state and is safe for concurrent use across in-flight requests.
type Classifier struct {
	table *Table
	log   *logging.Logger
	debug bool
}

// NewClassifier creates a classifier over the given table. Per-verdict
// logging only happens when debug is set; release configs keep it off.
func NewClassifier(table *Table, log *logging.Logger, debug bool) *Classifier {
	if log == nil {
		log = logging.NewNop()
	}
	return &Classifier{
		table: table,
		log:   log.Component("classifier"),
		debug: debug,
	}
}

// Table returns the policy table the classifier consults.
func (c *Classifier) Table() *Table {
	return c.table
}

// Classify returns the verdict for one (method, url) pair.
//
// Only POST requests are eligible for blocking: reads, including GraphQL
// reads sent as POST with a query-only body, are a known false-negative
// risk accepted at this layer. Matching order is method gate, GraphQL
// operation table, REST path table, default allow; first match wins.
func (c *Classifier) Classify(method, url string) Verdict {
	if !strings.EqualFold(method, "POST") {
		return allow
	}
	if url == "" {
		// Fail open on missing input; the DOM layer backstops.
		return allow
	}

	if strings.Contains(url, graphQLMarker) {
		for _, op := range c.table.graphQLOps {
			if containsPathSegment(url, op) {
				return c.block(url, op, RuleKindGraphQL)
			}
		}
		return allow
	}

	if strings.Contains(url, restMarker) {
		for _, pattern := range c.table.restPaths {
			if strings.Contains(url, pattern) {
				return c.block(url, pattern, RuleKindREST)
			}
		}
	}

	return allow
}

func (c *Classifier) block(url, rule string, kind RuleKind) Verdict {
	if c.debug {
		c.log.Debug("blocked outbound request",
			zap.String("url", url),
			zap.String("rule", rule),
			zap.String("kind", string(kind)),
		)
	}
	return Verdict{Action: ActionBlock, Rule: rule, Kind: kind}
}

// containsPathSegment reports whether url contains op as a whole path
// segment, i.e. "/CreateTweet" followed by a path boundary. Anchoring keeps
// a listed "CreateTweet" from matching an unlisted "CreateTweetDraft".
func containsPathSegment(url, op string) bool {
	if op == "" {
		return false
	}
	needle := "/" + op
	for start := 0; ; {
		i := strings.Index(url[start:], needle)
		if i < 0 {
			return false
		}
		end := start + i + len(needle)
		if end == len(url) {
			return true
		}
		switch url[end] {
		case '/', '?', '#':
			return true
		}
		start = start + i + 1
	}
}
