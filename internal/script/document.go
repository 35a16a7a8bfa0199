package script

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/glasspane/glasspane/internal/dom"
)

// bindDocument exposes the live tree as a document global. The surface is
// the subset page scripts need: query, create, insert, listen, click.
func (r *Runtime) bindDocument() error {
	document := r.vm.NewObject()

	document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		nodes := r.query(call)
		if len(nodes) == 0 {
			return goja.Null()
		}
		return r.elementProxy(nodes[0])
	})

	document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		nodes := r.query(call)
		out := make([]goja.Value, len(nodes))
		for i, n := range nodes {
			out[i] = r.elementProxy(n)
		}
		return r.vm.ToValue(out)
	})

	document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		id := call.Arguments[0].String()
		nodes := r.doc.Elements(func(n *html.Node) bool {
			return dom.Attr(n, "id") == id
		})
		if len(nodes) == 0 {
			return goja.Null()
		}
		return r.elementProxy(nodes[0])
	})

	document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		tag := strings.ToLower(call.Arguments[0].String())
		return r.elementProxy(dom.NewElement(tag))
	})

	document.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		r.addListener(r.doc.Root(), call)
		return goja.Undefined()
	})

	document.DefineAccessorProperty("body",
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			body := r.doc.Body()
			if body == nil {
				return goja.Null()
			}
			return r.elementProxy(body)
		}),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	return r.vm.Set("document", document)
}

// query resolves the selector in the first argument against the document.
func (r *Runtime) query(call goja.FunctionCall) []*html.Node {
	if len(call.Arguments) == 0 {
		return nil
	}
	sel, err := cascadia.ParseGroup(call.Arguments[0].String())
	if err != nil {
		return nil
	}
	return r.doc.Elements(func(n *html.Node) bool {
		return sel.Match(n)
	})
}

// elementProxy wraps a tree node as a JS object, reusing the wrapper for
// repeat lookups so identity comparisons behave.
func (r *Runtime) elementProxy(n *html.Node) goja.Value {
	for obj, node := range r.proxies {
		if node == n {
			return obj
		}
	}

	obj := r.vm.NewObject()
	r.proxies[obj] = n

	obj.Set("tagName", strings.ToUpper(n.Data))
	obj.Set("getAttribute", func(name string) goja.Value {
		val := dom.Attr(n, name)
		if val == "" {
			return goja.Null()
		}
		return r.vm.ToValue(val)
	})
	obj.Set("setAttribute", func(name, value string) {
		r.doc.SetAttr(n, name, value)
	})
	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		r.addListener(n, call)
		return goja.Undefined()
	})
	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		child := r.nodeFor(call.Arguments[0])
		if child == nil {
			return goja.Null()
		}
		r.doc.AppendChild(n, child)
		return call.Arguments[0]
	})
	obj.Set("click", func(call goja.FunctionCall) goja.Value {
		ev := r.doc.DispatchClick(n)
		return r.vm.ToValue(!ev.DefaultPrevented())
	})

	obj.DefineAccessorProperty("textContent",
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return r.vm.ToValue(textContent(n))
		}),
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				setTextContent(r.doc, n, call.Arguments[0].String())
			}
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	return obj
}

// addListener wires a JS callback as a tree event listener. The optional
// third argument selects the capture phase.
func (r *Runtime) addListener(n *html.Node, call goja.FunctionCall) {
	if len(call.Arguments) < 2 {
		return
	}
	typ := call.Arguments[0].String()
	fn, ok := goja.AssertFunction(call.Arguments[1])
	if !ok {
		return
	}
	capture := false
	if len(call.Arguments) > 2 {
		capture = call.Arguments[2].ToBoolean()
	}

	r.doc.AddEventListener(n, typ, capture, func(ev *dom.Event) {
		fn(goja.Undefined(), r.eventProxy(ev))
	})
}

// eventProxy wraps a dispatched event for JS listeners.
func (r *Runtime) eventProxy(ev *dom.Event) goja.Value {
	obj := r.vm.NewObject()
	obj.Set("type", ev.Type)
	if ev.Target != nil {
		obj.Set("target", r.elementProxy(ev.Target))
	}
	obj.Set("preventDefault", func(call goja.FunctionCall) goja.Value {
		ev.PreventDefault()
		return goja.Undefined()
	})
	obj.Set("stopPropagation", func(call goja.FunctionCall) goja.Value {
		ev.StopPropagation()
		return goja.Undefined()
	})
	return obj
}

// nodeFor maps a JS value back to its tree node, if it is one of ours.
func (r *Runtime) nodeFor(v goja.Value) *html.Node {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return r.proxies[obj]
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			visit(gc)
		}
	}
	visit(n)
	return sb.String()
}

func setTextContent(d *dom.Document, n *html.Node, text string) {
	for n.FirstChild != nil {
		d.RemoveChild(n, n.FirstChild)
	}
	d.AppendChild(n, dom.NewText(text))
}
