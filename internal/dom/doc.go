// Package dom maintains a live, mutable element tree for one rendered page.
//
// The tree wraps golang.org/x/net/html nodes, so CSS (cascadia) and XPath
// (htmlquery) selectors apply to it directly. On top of the raw nodes the
// document adds the two reactive hooks the enforcer needs: structural
// mutation observers for child insertions, and click dispatch with a capture
// phase that runs document-level listeners before any node's own handlers.
//
// A document models the page's single-threaded script context: every entry
// point is serialized by one internal mutex, and observer or listener
// callbacks are delivered synchronously on the calling goroutine after the
// mutation that triggered them completes. No two callbacks ever overlap.
//
// Documents are per-navigation. Nothing in this package survives a page
// change; the host surface parses a fresh document for every load.
package dom
