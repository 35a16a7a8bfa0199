package policy

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// xpathPrefix marks a control selector written in XPath instead of CSS.
const xpathPrefix = "xpath:"

// Matcher tests a single element node against a compiled selector.
type Matcher interface {
	Match(n *html.Node) bool
}

// CompileSelector compiles a CSS selector group, or an XPath expression when
// the selector carries the "xpath:" prefix.
func CompileSelector(expr string) (Matcher, error) {
	if rest, ok := strings.CutPrefix(expr, xpathPrefix); ok {
		compiled, err := xpath.Compile(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath selector: %w", err)
		}
		return &xpathMatcher{expr: compiled}, nil
	}

	sel, err := cascadia.ParseGroup(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector: %w", err)
	}
	return cssMatcher{sel: sel}, nil
}

type cssMatcher struct {
	sel cascadia.SelectorGroup
}

func (m cssMatcher) Match(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && m.sel.Match(n)
}

// xpathMatcher matches by running the expression from the node's document
// root and testing membership. XPath has no per-node match primitive, so the
// cost is one query per test; control taxonomies are small enough for that.
type xpathMatcher struct {
	expr *xpath.Expr
}

func (m *xpathMatcher) Match(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	for _, hit := range htmlquery.QuerySelectorAll(root, m.expr) {
		if hit == n {
			return true
		}
	}
	return false
}
