package dom

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Mutation describes one structural change to the tree.
type Mutation struct {
	Target *html.Node // parent that received children
	Added  int        // number of directly inserted nodes
}

// ObserverFunc receives subtree child-insertion notifications.
type ObserverFunc func(Mutation)

// Document is the live tree for one rendered page.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	observers []ObserverFunc
	listeners map[*html.Node][]*eventListener
	docLis    []*eventListener
}

// Parse builds a document from an HTML stream.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{
		root:      root,
		listeners: make(map[*html.Node][]*eventListener),
	}, nil
}

// ParseString builds a document from an HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// NewShell creates a document whose body does not exist yet. The html parser
// always synthesizes a body, so early-startup consumers that need a
// body-less tree build one here and append the body later.
func NewShell() *Document {
	root := &html.Node{Type: html.DocumentNode}
	htmlNode := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	root.AppendChild(htmlNode)
	htmlNode.AppendChild(head)
	return &Document{
		root:      root,
		listeners: make(map[*html.Node][]*eventListener),
	}
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or nil before the document is ready.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findBody()
}

// Ready reports whether the body element exists.
func (d *Document) Ready() bool {
	return d.Body() != nil
}

func (d *Document) findBody() *html.Node {
	var body *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	return body
}

// Observe registers a subtree child-insertion observer. Observers fire
// synchronously after each mutating call, on the mutating goroutine.
func (d *Document) Observe(fn ObserverFunc) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// AppendChild inserts child as the last child of parent and notifies
// observers.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.mu.Lock()
	parent.AppendChild(child)
	obs := append([]ObserverFunc{}, d.observers...)
	d.mu.Unlock()

	m := Mutation{Target: parent, Added: 1}
	for _, fn := range obs {
		fn(m)
	}
}

// InsertBefore inserts child before ref under parent and notifies observers.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	d.mu.Lock()
	parent.InsertBefore(child, ref)
	obs := append([]ObserverFunc{}, d.observers...)
	d.mu.Unlock()

	m := Mutation{Target: parent, Added: 1}
	for _, fn := range obs {
		fn(m)
	}
}

// RemoveChild detaches child from parent. Removals carry no notification;
// the enforcer only re-scans on insertions.
func (d *Document) RemoveChild(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent.RemoveChild(child)
	delete(d.listeners, child)
}

// Elements returns every element node accepted by match, in document order.
func (d *Document) Elements(match func(*html.Node) bool) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Render serializes the current tree back to HTML.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Attr returns the value of an attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces an attribute on a node.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	setAttr(n, key, val)
}

// SetStyle merges one CSS property into the node's inline style.
func (d *Document) SetStyle(n *html.Node, prop, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	props := parseStyle(Attr(n, "style"))
	updated := false
	for i := range props {
		if props[i][0] == prop {
			props[i][1] = val
			updated = true
			break
		}
	}
	if !updated {
		props = append(props, [2]string{prop, val})
	}
	setAttr(n, "style", renderStyle(props))
}

// Style returns the value of one inline style property, or "".
func Style(n *html.Node, prop string) string {
	for _, p := range parseStyle(Attr(n, "style")) {
		if p[0] == prop {
			return p[1]
		}
	}
	return ""
}

// NewElement creates a detached element node with the given attributes,
// supplied as alternating key, value pairs.
func NewElement(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func parseStyle(style string) [][2]string {
	var props [][2]string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		props = append(props, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	return props
}

func renderStyle(props [][2]string) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, p[0]+": "+p[1])
	}
	return strings.Join(parts, "; ")
}

// walk visits nodes depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
