package fragment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrSectionNotFound is returned when the product section is absent from an
// otherwise successful response.
var ErrSectionNotFound = errors.New("fragment: product section not found")

// sdkScriptSelector matches the storefront's product SDK bundle.
const sdkScriptSelector = `script[src*="theme-statics/product.js"]`

// reProductObj captures the inline `window.productObj = {...};</script>` JSON.
var reProductObj = regexp.MustCompile(`(?s)window\.productObj\s*=\s*(\{.*?\});?\s*</script>`)

// Page is everything the quick-view controller keeps from a product page.
type Page struct {
	// Section is the outer HTML of the product detail section.
	Section string

	// Product is the parsed window.productObj, nil when absent or malformed.
	Product map[string]any

	// SDKScriptURL is the src of the product SDK script, "" when absent.
	SDKScriptURL string
}

// Extract parses a full product page and pulls out the element with the
// given id plus the page's product data.
//
// When the section is missing the returned Page still carries Product and
// SDKScriptURL, and the error is ErrSectionNotFound.
func Extract(rawHTML, sectionID string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("fragment: parse document: %w", err)
	}

	page := &Page{
		Product:      ProductObject(rawHTML),
		SDKScriptURL: sdkScriptURL(doc),
	}

	section, ok := sectionByID(doc, sectionID)
	if !ok {
		return page, ErrSectionNotFound
	}
	page.Section = section
	return page, nil
}

// Section returns the outer HTML of the element whose id equals sectionID.
func Section(rawHTML, sectionID string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("fragment: parse document: %w", err)
	}
	section, ok := sectionByID(doc, sectionID)
	if !ok {
		return "", ErrSectionNotFound
	}
	return section, nil
}

// sectionByID compares id attributes literally so ids never need escaping
// into a selector.
func sectionByID(doc *goquery.Document, id string) (string, bool) {
	if id == "" {
		return "", false
	}
	sel := doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
	if sel.Length() == 0 {
		return "", false
	}

	outer, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", false
	}
	return outer, true
}

// ProductObject extracts and parses the inline window.productObj literal.
func ProductObject(rawHTML string) map[string]any {
	m := reProductObj.FindStringSubmatch(rawHTML)
	if len(m) < 2 {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(m[1]), &obj); err != nil {
		slog.Warn("fragment: failed to parse productObj", "error", err)
		return nil
	}
	return obj
}

func sdkScriptURL(doc *goquery.Document) string {
	src, _ := doc.Find(sdkScriptSelector).First().Attr("src")
	return src
}
