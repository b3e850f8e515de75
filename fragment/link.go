package fragment

import (
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var linkSelector = cascadia.MustCompile("a[href]")

// CardLink returns the href of the first link inside a product card's markup.
func CardLink(cardHTML string) string {
	if strings.TrimSpace(cardHTML) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(cardHTML))
	if err != nil {
		return ""
	}

	node := cascadia.Query(doc, linkSelector)
	if node == nil {
		return ""
	}
	for _, a := range node.Attr {
		if a.Key == "href" {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// ThemeFromPage returns the "theme" query parameter of a storefront page URL.
func ThemeFromPage(pageURL string) string {
	if pageURL == "" {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("theme")
}

// BuildFetchURL appends the theme parameter to productURL. The URL is
// returned unchanged when theme is empty.
func BuildFetchURL(productURL, theme string) string {
	if theme == "" {
		return productURL
	}
	sep := "?"
	if strings.Contains(productURL, "?") {
		sep = "&"
	}
	return productURL + sep + "theme=" + url.QueryEscape(theme)
}

// Resolve resolves ref against base. ref is returned unchanged when either
// fails to parse or base is empty.
func Resolve(base, ref string) string {
	if base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := b.Parse(ref)
	if err != nil {
		return ref
	}
	return r.String()
}
