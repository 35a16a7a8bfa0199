// Package http implements the gateway's REST surface.
package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/browse"
	"github.com/glasspane/glasspane/internal/dom"
	"github.com/glasspane/glasspane/internal/httpx"
	"github.com/glasspane/glasspane/internal/logging"
	"github.com/glasspane/glasspane/internal/policy"
	"github.com/glasspane/glasspane/internal/script"
)

// Handlers serves the browsing and policy endpoints.
type Handlers struct {
	sessions   *browse.Manager
	navigator  *browse.Navigator
	table      *policy.Table
	classifier *policy.Classifier
	client     *httpx.Client
	log        *logging.Logger

	// runtimes caches the script runtime per session; a runtime is only
	// valid for the document it was built on, so navigation evicts it.
	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

type sessionRuntime struct {
	runtime *script.Runtime
	doc     *dom.Document
}

// NewHandlers wires the endpoint handlers.
func NewHandlers(sessions *browse.Manager, navigator *browse.Navigator, table *policy.Table, classifier *policy.Classifier, client *httpx.Client, log *logging.Logger) *Handlers {
	return &Handlers{
		sessions:   sessions,
		navigator:  navigator,
		table:      table,
		classifier: classifier,
		client:     client,
		log:        log.Component("api"),
		runtimes:   make(map[string]*sessionRuntime),
	}
}

// navigateRequest is the POST /browse/navigate payload.
type navigateRequest struct {
	URL       string `json:"url" binding:"required"`
	SessionID string `json:"session_id"`
}

// Navigate serves a page through the gateway. Accepts JSON on POST and query
// parameters on GET, so rewritten links work without client code.
func (h *Handlers) Navigate(c *gin.Context) {
	var req navigateRequest
	if c.Request.Method == http.MethodGet {
		req.URL = c.Query("url")
		req.SessionID = c.Query("session_id")
		if req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.sessions.GetOrCreate(req.SessionID)
	page, err := h.navigator.Navigate(c.Request.Context(), session, req.URL)
	if err != nil {
		h.log.Warn("navigation failed", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, page)
}

// Asset proxies a page subresource.
func (h *Handlers) Asset(c *gin.Context) {
	urlStr := c.Query("url")
	if urlStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}

	session := h.sessions.GetOrCreate(c.Query("session_id"))
	asset, err := h.navigator.ProxyAsset(c.Request.Context(), session, urlStr)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, asset.ContentType, asset.Data)
}

// Form submits a rewritten form through the guard.
func (h *Handlers) Form(c *gin.Context) {
	urlStr := c.Query("url")
	if urlStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}
	session := h.sessions.GetOrCreate(c.Query("session_id"))

	data := make(map[string]string)
	if err := c.Request.ParseForm(); err == nil {
		for k, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				data[k] = vs[0]
			}
		}
	}

	page, err := h.navigator.SubmitForm(c.Request.Context(), session, urlStr, c.Request.Method, data)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, page)
}

// scriptRequest is the POST /browse/script payload.
type scriptRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Script    string `json:"script" binding:"required"`
}

// Script executes JavaScript in the session's sandboxed page context.
func (h *Handlers) Script(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.sessions.Get(req.SessionID)
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	doc := session.Document()
	if doc == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "session has no page; navigate first"})
		return
	}

	runtime, err := h.runtimeFor(req.SessionID, doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := runtime.Execute(c.Request.Context(), req.Script)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"console": consoleJSON(result),
		})
		return
	}

	html, rerr := doc.Render()
	if rerr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": rerr.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"value":       result.Value,
		"console":     consoleJSON(result),
		"duration_ms": result.Duration.Milliseconds(),
		"html":        html,
	})
}

func consoleJSON(result *script.Result) []gin.H {
	if result == nil {
		return nil
	}
	out := make([]gin.H, 0, len(result.Console))
	for _, entry := range result.Console {
		out = append(out, gin.H{"level": entry.Level, "message": entry.Message})
	}
	return out
}

// runtimeFor returns the cached runtime for the session, rebuilding it when
// the page changed underneath.
func (h *Handlers) runtimeFor(sessionID string, doc *dom.Document) (*script.Runtime, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cached, ok := h.runtimes[sessionID]; ok && cached.doc == doc {
		return cached.runtime, nil
	}

	runtime, err := script.New(script.DefaultConfig(), doc)
	if err != nil {
		return nil, err
	}
	h.runtimes[sessionID] = &sessionRuntime{runtime: runtime, doc: doc}
	return runtime, nil
}

// Session returns session state.
func (h *Handlers) Session(c *gin.Context) {
	session := h.sessions.Get(c.Param("id"))
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session.Info())
}

// DeleteSession removes a session and its cached script runtime.
func (h *Handlers) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if h.sessions.Get(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.sessions.Remove(id)

	h.mu.Lock()
	delete(h.runtimes, id)
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Policy returns the active policy table.
func (h *Handlers) Policy(c *gin.Context) {
	c.JSON(http.StatusOK, h.table.Snapshot())
}

// classifyRequest is the POST /policy/classify payload.
type classifyRequest struct {
	Method string `json:"method" binding:"required"`
	URL    string `json:"url" binding:"required"`
}

// Classify runs one request description through the classifier. Diagnostic
// endpoint; the real classification happens on the transport.
func (h *Handlers) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v := h.classifier.Classify(req.Method, req.URL)
	c.JSON(http.StatusOK, gin.H{
		"action": v.Action,
		"rule":   v.Rule,
		"kind":   v.Kind,
	})
}

// Health reports gateway liveness and upstream breaker state.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"policy_version": h.table.Version(),
		"sessions":       h.sessions.Count(),
		"breaker":        h.client.BreakerState().String(),
	})
}
