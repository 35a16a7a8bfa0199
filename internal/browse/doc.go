// Package browse implements the server-side browsing surface.
//
// Each session owns cookies, history, and the live document of its current
// page. Navigation fetches through the guarded upstream client, rewrites the
// page to route follow-up traffic back through the gateway, then parses it
// into a live tree and attaches the enforcer before rendering. A page is
// never handed to a client with its mutation controls intact.
package browse
