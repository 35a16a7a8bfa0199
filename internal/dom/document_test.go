package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const pageHTML = `
<html>
<head><title>Timeline</title></head>
<body>
	<main>
		<article data-testid="tweet">
			<button data-testid="like">Like <span>12</span></button>
			<button data-testid="reply">Reply</button>
		</article>
	</main>
</body>
</html>
`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	require.NoError(t, err)
	return doc
}

func findByTestID(doc *Document, id string) *html.Node {
	nodes := doc.Elements(func(n *html.Node) bool {
		return Attr(n, "data-testid") == id
	})
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func TestParseAndQuery(t *testing.T) {
	doc := mustParse(t, pageHTML)

	assert.True(t, doc.Ready())
	require.NotNil(t, doc.Body())

	like := findByTestID(doc, "like")
	require.NotNil(t, like)
	assert.Equal(t, "button", like.Data)
}

func TestShellHasNoBody(t *testing.T) {
	doc := NewShell()
	assert.False(t, doc.Ready())
	assert.Nil(t, doc.Body())

	body := NewElement("body")
	var htmlNode *html.Node
	for c := doc.Root().FirstChild; c != nil; c = c.NextSibling {
		htmlNode = c
	}
	require.NotNil(t, htmlNode)
	doc.AppendChild(htmlNode, body)

	assert.True(t, doc.Ready())
}

func TestObserverNotifiedOnInsert(t *testing.T) {
	doc := mustParse(t, pageHTML)

	var got []Mutation
	doc.Observe(func(m Mutation) {
		got = append(got, m)
	})

	doc.AppendChild(doc.Body(), NewElement("div", "data-testid", "inserted"))

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Added)
	assert.Equal(t, doc.Body(), got[0].Target)
	require.NotNil(t, findByTestID(doc, "inserted"))
}

func TestObserverFiresForSubtreeInsertions(t *testing.T) {
	doc := mustParse(t, pageHTML)

	fired := 0
	doc.Observe(func(Mutation) { fired++ })

	article := findByTestID(doc, "tweet")
	require.NotNil(t, article)
	doc.AppendChild(article, NewElement("button", "data-testid", "retweet"))

	assert.Equal(t, 1, fired)
}

func TestSetStyleMerges(t *testing.T) {
	doc := mustParse(t, pageHTML)
	like := findByTestID(doc, "like")

	doc.SetStyle(like, "opacity", "0.5")
	doc.SetStyle(like, "pointer-events", "none")
	assert.Equal(t, "0.5", Style(like, "opacity"))
	assert.Equal(t, "none", Style(like, "pointer-events"))

	// Overwriting a property keeps one declaration.
	doc.SetStyle(like, "opacity", "1")
	assert.Equal(t, "1", Style(like, "opacity"))
}

func TestDispatchClickPhases(t *testing.T) {
	doc := mustParse(t, pageHTML)
	like := findByTestID(doc, "like")

	var order []string
	doc.AddEventListener(doc.Root(), "click", true, func(*Event) {
		order = append(order, "capture")
	})
	doc.AddEventListener(like, "click", false, func(*Event) {
		order = append(order, "target")
	})

	ev := doc.DispatchClick(like)
	assert.False(t, ev.DefaultPrevented())
	assert.Equal(t, []string{"capture", "target"}, order)
}

func TestStopPropagationHaltsDelivery(t *testing.T) {
	doc := mustParse(t, pageHTML)
	like := findByTestID(doc, "like")

	targetRan := false
	doc.AddEventListener(doc.Root(), "click", true, func(ev *Event) {
		ev.PreventDefault()
		ev.StopPropagation()
	})
	// A second capture listener in the same phase must not run either.
	secondCaptureRan := false
	doc.AddEventListener(doc.Root(), "click", true, func(*Event) {
		secondCaptureRan = true
	})
	doc.AddEventListener(like, "click", false, func(*Event) {
		targetRan = true
	})

	ev := doc.DispatchClick(like)
	assert.True(t, ev.DefaultPrevented())
	assert.False(t, targetRan)
	assert.False(t, secondCaptureRan)
}

func TestRenderReflectsMutations(t *testing.T) {
	doc := mustParse(t, pageHTML)
	like := findByTestID(doc, "like")
	doc.SetStyle(like, "display", "none")

	out, err := doc.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `style="display: none"`)
}
