package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestNewRejectsBadSelectors(t *testing.T) {
	_, err := New(Spec{
		Controls: []ControlSpec{{Selector: `[data-testid=`, Mode: ModeHide}},
	})
	require.Error(t, err)

	_, err = New(Spec{
		Controls: []ControlSpec{{Selector: `xpath://button[`, Mode: ModeHide}},
	})
	require.Error(t, err)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(Spec{
		Controls: []ControlSpec{{Selector: `button`, Mode: Mode("remove")}},
	})
	require.Error(t, err)
}

func TestControlsByMode(t *testing.T) {
	table, err := New(Spec{
		Controls: []ControlSpec{
			{Selector: `button.compose`, Mode: ModeHide},
			{Selector: `button.like`, Mode: ModeDisable},
			{Selector: `button.retweet`, Mode: ModeHide},
		},
	})
	require.NoError(t, err)

	assert.Len(t, table.ControlsByMode(ModeHide), 2)
	assert.Len(t, table.ControlsByMode(ModeDisable), 1)
	assert.Len(t, table.Controls(), 3)
}

func TestControlMatching(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<html><body><button data-testid="like">Like</button><div data-testid="like"></div></body></html>`))
	require.NoError(t, err)

	table, err := New(Spec{
		Controls: []ControlSpec{
			{Selector: `button[data-testid="like"]`, Mode: ModeDisable},
			{Selector: `xpath://div[@data-testid="like"]`, Mode: ModeHide},
		},
	})
	require.NoError(t, err)

	var button, div *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "button":
				button = n
			case "div":
				div = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	require.NotNil(t, button)
	require.NotNil(t, div)

	css := table.Controls()[0]
	xp := table.Controls()[1]

	assert.True(t, css.Matches(button))
	assert.False(t, css.Matches(div))
	assert.True(t, xp.Matches(div))
	assert.False(t, xp.Matches(button))
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	data := `
version: "2026-08-01"
graphql_operations:
  - CreateTweet
rest_patterns:
  - /statuses/update
controls:
  - selector: '[data-testid="like"]'
    mode: disable
  - selector: '[data-testid="retweet"]'
    mode: hide
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2026-08-01", table.Version())
	assert.Equal(t, []string{"CreateTweet"}, table.GraphQLOperations())
	assert.Equal(t, []string{"/statuses/update"}, table.RESTPatterns())
	assert.Len(t, table.ControlsByMode(ModeDisable), 1)
	assert.Len(t, table.ControlsByMode(ModeHide), 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultTableBuilds(t *testing.T) {
	table := Default()
	assert.NotEmpty(t, table.Version())
	assert.NotEmpty(t, table.GraphQLOperations())
	assert.NotEmpty(t, table.RESTPatterns())
	assert.NotEmpty(t, table.ControlsByMode(ModeHide))
	assert.NotEmpty(t, table.ControlsByMode(ModeDisable))
}

func TestSnapshotRoundTrip(t *testing.T) {
	spec := DefaultSpec()
	table, err := New(spec)
	require.NoError(t, err)

	snap := table.Snapshot()
	assert.Equal(t, spec.Version, snap.Version)
	assert.Equal(t, spec.GraphQLOperations, snap.GraphQLOperations)
	assert.Equal(t, len(spec.Controls), len(snap.Controls))
}
