package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := New(Spec{
		Version:           "test",
		GraphQLOperations: []string{"CreateTweet", "FavoriteTweet", "DeleteRetweet"},
		RESTPatterns:      []string{"/statuses/update", "/friendships/create"},
		Controls: []ControlSpec{
			{Selector: `[data-testid="like"]`, Mode: ModeDisable},
		},
	})
	require.NoError(t, err)
	return table
}

func TestClassifyMethodGate(t *testing.T) {
	c := NewClassifier(testTable(t), nil, false)

	blockedURL := "https://site/i/api/graphql/abcd1234/CreateTweet"
	for _, method := range []string{"GET", "HEAD", "OPTIONS", "PUT", "DELETE", "PATCH"} {
		v := c.Classify(method, blockedURL)
		assert.Equal(t, ActionAllow, v.Action, "method %s must never block", method)
	}

	// The gate is case-insensitive on the blocking side too.
	assert.Equal(t, ActionBlock, c.Classify("post", blockedURL).Action)
	assert.Equal(t, ActionBlock, c.Classify("PoSt", blockedURL).Action)
}

func TestClassifyGraphQLOperations(t *testing.T) {
	c := NewClassifier(testTable(t), nil, false)

	tests := []struct {
		name   string
		url    string
		action Action
		rule   string
	}{
		{
			name:   "listed operation blocks",
			url:    "https://site/i/api/graphql/abcd1234/CreateTweet",
			action: ActionBlock,
			rule:   "CreateTweet",
		},
		{
			name:   "listed operation with query string blocks",
			url:    "https://site/i/api/graphql/abcd1234/FavoriteTweet?src=timeline",
			action: ActionBlock,
			rule:   "FavoriteTweet",
		},
		{
			name:   "read operation allows",
			url:    "https://site/i/api/graphql/abcd1234/HomeTimeline",
			action: ActionAllow,
		},
		{
			name:   "operation name must sit at a path boundary",
			url:    "https://site/i/api/graphql/abcd1234/CreateTweetDraftPreview",
			action: ActionAllow,
		},
		{
			name:   "operation embedded mid-segment does not block",
			url:    "https://site/i/api/graphql/abcd1234/RecreateTweet",
			action: ActionAllow,
		},
		{
			name:   "no graphql marker skips the operation table",
			url:    "https://site/api/CreateTweet",
			action: ActionAllow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify("POST", tt.url)
			assert.Equal(t, tt.action, v.Action)
			if tt.action == ActionBlock {
				assert.Equal(t, tt.rule, v.Rule)
				assert.Equal(t, RuleKindGraphQL, v.Kind)
			}
		})
	}
}

func TestClassifyRESTPatterns(t *testing.T) {
	c := NewClassifier(testTable(t), nil, false)

	v := c.Classify("POST", "https://site/i/api/1.1/statuses/update.json")
	assert.Equal(t, ActionBlock, v.Action)
	assert.Equal(t, "/statuses/update", v.Rule)
	assert.Equal(t, RuleKindREST, v.Kind)

	v = c.Classify("POST", "https://site/i/api/1.1/friendships/create.json")
	assert.Equal(t, ActionBlock, v.Action)

	// Unlisted REST endpoint proceeds.
	v = c.Classify("POST", "https://site/i/api/1.1/statuses/show.json")
	assert.Equal(t, ActionAllow, v.Action)

	// REST patterns only apply under the legacy API marker.
	v = c.Classify("POST", "https://site/other/statuses/update.json")
	assert.Equal(t, ActionAllow, v.Action)
}

func TestClassifyTotalOverBadInput(t *testing.T) {
	c := NewClassifier(testTable(t), nil, false)

	assert.Equal(t, ActionAllow, c.Classify("POST", "").Action)
	assert.Equal(t, ActionAllow, c.Classify("", "").Action)
	assert.Equal(t, ActionAllow, c.Classify("POST", "::not a url::").Action)
	assert.Equal(t, ActionAllow, c.Classify("POST", "/graphql/").Action)
}

func TestClassifyDefaultTableScenarios(t *testing.T) {
	c := NewClassifier(Default(), nil, false)

	v := c.Classify("POST", "https://site/i/api/graphql/abcd1234/CreateTweet")
	require.Equal(t, ActionBlock, v.Action)
	assert.Equal(t, "CreateTweet", v.Rule)

	v = c.Classify("GET", "https://site/i/api/graphql/abcd1234/CreateTweet")
	assert.Equal(t, ActionAllow, v.Action)

	v = c.Classify("POST", "https://site/i/api/1.1/statuses/update.json")
	require.Equal(t, ActionBlock, v.Action)
	assert.Equal(t, "/statuses/update", v.Rule)

	v = c.Classify("POST", "https://site/i/api/graphql/abcd1234/HomeTimeline")
	assert.Equal(t, ActionAllow, v.Action)
}

func TestContainsPathSegment(t *testing.T) {
	tests := []struct {
		url  string
		op   string
		want bool
	}{
		{"https://site/graphql/x/CreateTweet", "CreateTweet", true},
		{"https://site/graphql/x/CreateTweet/extra", "CreateTweet", true},
		{"https://site/graphql/x/CreateTweet?y=1", "CreateTweet", true},
		{"https://site/graphql/x/CreateTweet#frag", "CreateTweet", true},
		{"https://site/graphql/x/CreateTweetDraft", "CreateTweet", false},
		{"https://site/graphql/x/NotCreateTweet", "CreateTweet", false},
		// A later anchored occurrence still counts.
		{"https://site/CreateTweetDraft/CreateTweet", "CreateTweet", true},
		{"https://site/graphql", "", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, containsPathSegment(tt.url, tt.op), "url=%s op=%s", tt.url, tt.op)
	}
}
