// Package dom is a small headless document model: a parsed HTML page with
// click listeners, and a window that hosts it (location, history, scrolling
// and native navigation).
package dom

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	cachekey "github.com/ericselin/switcher/pkg/cache-key"
)

const (
	// LinkSelector selects anchors whose reference starts at the site root.
	LinkSelector = `a[href^="/"]`
	// MainSelector selects the main content region, the unit of soft navigation.
	MainSelector = "main"
)

// ErrNoMain is returned when a document has no main content region.
var ErrNoMain = errors.New("document has no main content region")

// Event is a click event dispatched to listeners.
type Event struct {
	Target           *html.Node
	defaultPrevented bool
}

// PreventDefault cancels the default action (native navigation) of the event.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Listener handles click events. Listeners are called synchronously from Click.
type Listener func(*Event)

// Anchor is an internal link found in the page.
type Anchor struct {
	Node *html.Node
	// Href is the raw attribute value.
	Href string
}

// Page is a live HTML document.
// All methods are safe for concurrent use; listeners are called without holding the lock.
type Page struct {
	mutex     sync.Mutex
	doc       *goquery.Document
	listeners map[*html.Node][]Listener
}

// NewPage parses an HTML document.
func NewPage(r io.Reader) (*Page, error) {
	p := &Page{}
	if err := p.Load(r); err != nil {
		return nil, err
	}
	return p, nil
}

// Load replaces the whole document, dropping all listeners.
func (p *Page) Load(r io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.doc = doc
	p.listeners = make(map[*html.Node][]Listener)
	return nil
}

// Links returns the internal anchors inside scope, or inside the whole document if scope is nil.
func (p *Page) Links(scope *html.Node) []Anchor {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	sel := p.doc.Selection
	if scope != nil {
		sel = p.doc.FindNodes(scope)
	}
	anchors := make([]Anchor, 0)
	sel.Find(LinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if cachekey.IsInternal(href) {
			anchors = append(anchors, Anchor{Node: a.Get(0), Href: href})
		}
	})
	return anchors
}

// Main returns the main content region, or nil if the page has none.
func (p *Page) Main() *html.Node {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if nodes := p.doc.Find(MainSelector).Nodes; len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// Title returns the document title.
func (p *Page) Title() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.doc.Find("title").First().Text()
}

// HTML renders the whole document.
func (p *Page) HTML() (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return goquery.OuterHtml(p.doc.Selection)
}

// Text returns the text content of the first element matching selector.
func (p *Page) Text(selector string) string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.doc.Find(selector).First().Text()
}

// Find returns the nodes matching selector.
func (p *Page) Find(selector string) []*html.Node {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.doc.Find(selector).Nodes
}

// Attached reports whether the node is still part of the document.
func (p *Page) Attached(n *html.Node) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.attached(n)
}

func (p *Page) attached(n *html.Node) bool {
	root := p.doc.Get(0)
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// ExtractMain parses an HTML document and returns the inner HTML of its main content region.
func ExtractMain(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	main := doc.Find(MainSelector).First()
	if main.Length() == 0 {
		return "", ErrNoMain
	}
	return main.Html()
}

// ReplaceMain replaces the contents of the main content region with the given inner HTML.
// It returns the (same) main node, whose children are now the new content.
// Listeners on removed nodes are dropped.
func (p *Page) ReplaceMain(innerHTML string) (*html.Node, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	main := p.doc.Find(MainSelector).First()
	if main.Length() == 0 {
		return nil, ErrNoMain
	}
	main.SetHtml(innerHTML)
	for n := range p.listeners {
		if !p.attached(n) {
			delete(p.listeners, n)
		}
	}
	return main.Get(0), nil
}

// AddEventListener adds a click listener to a node.
// Like its browser counterpart, adding a listener twice results in two calls per click.
func (p *Page) AddEventListener(n *html.Node, l Listener) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.listeners[n] = append(p.listeners[n], l)
}

// Click dispatches a click event on the node, bubbling up through its ancestors.
// It returns the event so the caller can see whether the default action was prevented.
func (p *Page) Click(n *html.Node) *Event {
	evt := &Event{Target: n}
	p.mutex.Lock()
	listeners := make([]Listener, 0)
	for cur := n; cur != nil; cur = cur.Parent {
		listeners = append(listeners, p.listeners[cur]...)
	}
	p.mutex.Unlock()
	for _, l := range listeners {
		l(evt)
	}
	return evt
}

// Href returns the resolved target of the anchor closest to n, if any.
func Href(base *url.URL, n *html.Node) (*url.URL, bool) {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode || cur.Data != "a" {
			continue
		}
		for _, attr := range cur.Attr {
			if attr.Key != "href" {
				continue
			}
			ref, err := url.Parse(attr.Val)
			if err != nil {
				return nil, false
			}
			if base == nil {
				return ref, true
			}
			return base.ResolveReference(ref), true
		}
		return nil, false
	}
	return nil, false
}
