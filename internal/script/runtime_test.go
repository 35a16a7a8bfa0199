package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/glasspane/glasspane/internal/dom"
	"github.com/glasspane/glasspane/internal/enforcer"
	"github.com/glasspane/glasspane/internal/logging"
	"github.com/glasspane/glasspane/internal/policy"
)

const pageHTML = `<!DOCTYPE html>
<html>
<head><title>timeline</title></head>
<body>
  <article data-testid="tweet">
    <p id="text">hello</p>
    <a id="permalink" href="/status/1">open</a>
    <div role="button" data-testid="retweet">Repost</div>
  </article>
</body>
</html>`

func newPageRuntime(t *testing.T) (*Runtime, *dom.Document) {
	t.Helper()
	doc, err := dom.ParseString(pageHTML)
	require.NoError(t, err)
	r, err := New(DefaultConfig(), doc)
	require.NoError(t, err)
	return r, doc
}

func TestExecuteReturnsValueAndConsole(t *testing.T) {
	r, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	result, err := r.Execute(context.Background(), `console.log("sum is", 2 + 2); 2 + 2`)
	require.NoError(t, err)

	assert.EqualValues(t, 4, result.Value)
	require.Len(t, result.Console, 1)
	assert.Equal(t, "log", result.Console[0].Level)
	assert.Equal(t, "sum is 4", result.Console[0].Message)
}

func TestExecuteTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	r, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), `while (true) {}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestExecuteRecoversAfterTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	r, err := New(cfg, nil)
	require.NoError(t, err)

	// A timed-out run must not leave a pending interrupt behind; the same
	// runtime keeps working afterwards.
	for i := 0; i < 3; i++ {
		_, err = r.Execute(context.Background(), `while (true) {}`)
		require.Error(t, err)

		result, err := r.Execute(context.Background(), `1 + 1`)
		require.NoError(t, err)
		assert.EqualValues(t, 2, result.Value)
	}
}

func TestHostGlobalsStripped(t *testing.T) {
	r, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	for _, name := range []string{"require", "process", "module", "exports"} {
		result, err := r.Eval(context.Background(), "typeof "+name)
		require.NoError(t, err)
		assert.Equal(t, "undefined", result.Value, name)
	}
}

func TestDocumentQueryAndAttributes(t *testing.T) {
	r, _ := newPageRuntime(t)

	result, err := r.Eval(context.Background(), `document.querySelector("#text").textContent`)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Value)

	result, err = r.Eval(context.Background(), `document.querySelectorAll("[data-testid]").length`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Value)

	_, err = r.Execute(context.Background(), `document.getElementById("text").setAttribute("data-seen", "1")`)
	require.NoError(t, err)

	doc := r.doc
	nodes := doc.Elements(func(n *html.Node) bool { return dom.Attr(n, "id") == "text" })
	require.Len(t, nodes, 1)
	assert.Equal(t, "1", dom.Attr(nodes[0], "data-seen"))
}

func TestScriptListenerFiresOnAllowedElement(t *testing.T) {
	r, _ := newPageRuntime(t)

	_, err := r.Execute(context.Background(), `
		var clicked = false;
		document.querySelector("#permalink").addEventListener("click", function(ev) {
			clicked = true;
		});
		var proceeded = document.querySelector("#permalink").click();
	`)
	require.NoError(t, err)

	result, err := r.Eval(context.Background(), "clicked && proceeded")
	require.NoError(t, err)
	assert.Equal(t, true, result.Value)
}

func TestSuppressedControlNeverReachesPageHandler(t *testing.T) {
	r, doc := newPageRuntime(t)

	enf := enforcer.New(policy.Default(), doc, logging.NewNop(), nil)
	enf.Attach()

	_, err := r.Execute(context.Background(), `
		var fired = false;
		var control = document.querySelector('[data-testid="retweet"]');
		control.addEventListener("click", function(ev) { fired = true; });
		var proceeded = control.click();
	`)
	require.NoError(t, err)

	result, err := r.Eval(context.Background(), "fired")
	require.NoError(t, err)
	assert.Equal(t, false, result.Value, "page handler must not see the click")

	result, err = r.Eval(context.Background(), "proceeded")
	require.NoError(t, err)
	assert.Equal(t, false, result.Value, "default action must be cancelled")
}

func TestInsertedControlIsSuppressed(t *testing.T) {
	r, doc := newPageRuntime(t)

	enf := enforcer.New(policy.Default(), doc, logging.NewNop(), nil)
	enf.Attach()

	_, err := r.Execute(context.Background(), `
		var el = document.createElement("div");
		el.setAttribute("data-testid", "retweet");
		el.textContent = "Repost";
		document.body.appendChild(el);
	`)
	require.NoError(t, err)

	inserted := doc.Elements(func(n *html.Node) bool {
		return dom.Attr(n, "data-testid") == "retweet" && dom.Attr(n, "role") == ""
	})
	require.Len(t, inserted, 1)
	assert.Equal(t, "none", dom.Style(inserted[0], "display"))
}
