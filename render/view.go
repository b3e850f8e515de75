// Package render turns quick-view modal state into render instructions.
// Everything here is pure: no I/O, no shared state.
package render

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// State is the quick-view modal state.
type State string

const (
	StateClosed  State = "closed"
	StateLoading State = "loading"
	StateContent State = "content"
	StateError   State = "error"
)

// Messages is the localised copy of the error panel.
type Messages struct {
	ErrorMessage string
	GoToProduct  string
}

// DefaultMessages returns the stock English copy.
func DefaultMessages() Messages {
	return Messages{
		ErrorMessage: "Failed to load product. Please try again.",
		GoToProduct:  "Go to product page",
	}
}

// withDefaults fills empty fields from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.ErrorMessage == "" {
		m.ErrorMessage = d.ErrorMessage
	}
	if m.GoToProduct == "" {
		m.GoToProduct = d.GoToProduct
	}
	return m
}

// ErrorPanel describes the error state body: a message plus a link to the
// full product page.
type ErrorPanel struct {
	Code     string
	Message  string
	LinkText string
	LinkURL  string
}

// View is the render instruction for the modal.
type View struct {
	State State

	ShowSkeleton bool
	ShowContent  bool
	ShowFooter   bool

	// ContentHTML is the fragment in the content state and the error panel
	// markup in the error state.
	ContentHTML string

	// ProductURL is the canonical product URL for the footer link.
	ProductURL string

	Product      map[string]any
	SDKScriptURL string

	// FromCache is true when the content came from the fragment cache.
	FromCache bool

	Error *ErrorPanel
}

// Open reports whether the modal is visible.
func (v View) Open() bool { return v.State != StateClosed }

// withVisibility applies the region rules: the skeleton shows only while
// loading, the content region hides only while loading, and the footer shows
// only with content.
func withVisibility(v View) View {
	v.ShowSkeleton = v.State == StateLoading
	v.ShowContent = v.State != StateLoading && v.State != StateClosed
	v.ShowFooter = v.State == StateContent
	return v
}

// Closed is the hidden modal.
func Closed() View {
	return withVisibility(View{State: StateClosed})
}

// Loading shows the skeleton for productURL with an empty content region.
func Loading(productURL string) View {
	return withVisibility(View{State: StateLoading, ProductURL: productURL})
}

// Content renders a product fragment.
func Content(productURL, fragment string, product map[string]any, sdkScriptURL string, fromCache bool) View {
	return withVisibility(View{
		State:        StateContent,
		ContentHTML:  fragment,
		ProductURL:   productURL,
		Product:      product,
		SDKScriptURL: sdkScriptURL,
		FromCache:    fromCache,
	})
}

// Failure renders the error panel for productURL.
func Failure(productURL, code string, msgs Messages) View {
	msgs = msgs.withDefaults()
	panel := &ErrorPanel{
		Code:     code,
		Message:  msgs.ErrorMessage,
		LinkText: msgs.GoToProduct,
		LinkURL:  productURL,
	}
	return withVisibility(View{
		State:       StateError,
		ContentHTML: panel.HTML(),
		ProductURL:  productURL,
		Error:       panel,
	})
}

// HTML renders the panel as a node tree so message, link text and URL are
// always escaped.
func (p *ErrorPanel) HTML() string {
	container := element(atom.Div, html.Attribute{Key: "class", Val: "py-8 text-center"})

	text := element(atom.P, html.Attribute{Key: "class", Val: "text-secondary"})
	text.AppendChild(&html.Node{Type: html.TextNode, Data: p.Message})

	link := element(atom.A,
		html.Attribute{Key: "href", Val: p.LinkURL},
		html.Attribute{Key: "class", Val: "text-primary mt-2 inline-block underline"},
	)
	link.AppendChild(&html.Node{Type: html.TextNode, Data: p.LinkText})

	container.AppendChild(text)
	container.AppendChild(link)

	var buf bytes.Buffer
	if err := html.Render(&buf, container); err != nil {
		return ""
	}
	return buf.String()
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}
