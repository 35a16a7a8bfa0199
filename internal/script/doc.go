// Package script executes page JavaScript in a sandboxed goja runtime
// bound to a live document.
//
// The runtime mirrors a browser script context in the ways that matter for
// policy enforcement: scripts see a document object backed by the real tree,
// their insertions fire the same mutation observers the enforcer subscribes
// to, and their event listeners run after the enforcer's capture-phase
// interception. Dangerous globals are stripped and execution is bounded by a
// timeout.
//
// A runtime is single-threaded like the page context it models: callers
// serialize Execute with any direct document mutation.
package script
