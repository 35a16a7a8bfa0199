package policy

// DefaultSpec is the built-in policy table for the target site. It tracks
// the site's GraphQL operation names and legacy REST endpoints as observed;
// operators override it with a YAML table when upstream renames things.
func DefaultSpec() Spec {
	return Spec{
		Version: "2026-08-14",
		GraphQLOperations: []string{
			"CreateTweet",
			"DeleteTweet",
			"CreateRetweet",
			"DeleteRetweet",
			"FavoriteTweet",
			"UnfavoriteTweet",
			"CreateBookmark",
			"DeleteBookmark",
			"CreateNoteTweet",
			"PinTweet",
			"UnpinTweet",
			"MuteUserByUserId",
			"UnmuteUserByUserId",
			"BlockUserByUserId",
			"UnblockUserByUserId",
			"CreateScheduledTweet",
			"DeleteScheduledTweet",
			"VotePoll",
		},
		RESTPatterns: []string{
			"/statuses/update",
			"/statuses/retweet",
			"/statuses/unretweet",
			"/statuses/destroy",
			"/favorites/create",
			"/favorites/destroy",
			"/friendships/create",
			"/friendships/destroy",
			"/mutes/users/create",
			"/blocks/create",
			"/direct_messages/new",
			"/direct_messages/events/new",
		},
		Controls: []ControlSpec{
			// Composers and anything that opens one: gone entirely.
			{Selector: `[data-testid="SideNav_NewTweet_Button"]`, Mode: ModeHide},
			{Selector: `[data-testid="tweetButtonInline"]`, Mode: ModeHide},
			{Selector: `[data-testid="tweetButton"]`, Mode: ModeHide},
			{Selector: `a[href="/compose/tweet"]`, Mode: ModeHide},
			{Selector: `a[href="/compose/post"]`, Mode: ModeHide},
			{Selector: `[data-testid="toolBar"]`, Mode: ModeHide},
			{Selector: `[data-testid="tweetTextarea_0"]`, Mode: ModeHide},
			{Selector: `[data-testid="retweet"]`, Mode: ModeHide},
			{Selector: `[data-testid="bookmark"]`, Mode: ModeHide},
			{Selector: `a[href="/messages"]`, Mode: ModeHide},
			{Selector: `[data-testid="DMDrawer"]`, Mode: ModeHide},
			{Selector: `[data-testid="sendDMFromProfile"]`, Mode: ModeHide},
			// Counters ride along inside these controls, so they stay
			// visible but stop reacting.
			{Selector: `[data-testid="like"]`, Mode: ModeDisable},
			{Selector: `[data-testid="unlike"]`, Mode: ModeDisable},
			{Selector: `[data-testid="reply"]`, Mode: ModeDisable},
			{Selector: `xpath://button[@data-testid="follow" or @data-testid="unfollow"]`, Mode: ModeDisable},
		},
	}
}

// Default builds the built-in table. Selector compilation of the built-in
// spec cannot fail; a failure here is a programming error.
func Default() *Table {
	t, err := New(DefaultSpec())
	if err != nil {
		panic("policy: built-in table invalid: " + err.Error())
	}
	return t
}
