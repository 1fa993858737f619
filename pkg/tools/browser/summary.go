package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	previewLength = 1000
	maxHeadings   = 5
	maxControls   = 10
)

// PageSummary is a compact description of a page, small enough to hand back
// to an agent after every navigation.
type PageSummary struct {
	Title    string
	Preview  string
	Headings []string
	Buttons  []string
	Inputs   []string
	Links    int
}

// Selectors for the parts of a page the summary reports.
const (
	headingSelector = "h1, h2, h3"
	buttonSelector  = "button, input[type='button'], input[type='submit']"
	inputSelector   = "input[type='text'], input[type='email'], input[type='search'], input:not([type]), textarea"
	linkSelector    = "a[href]"
)

// summarizeHTML parses rawHTML and collects the visible text preview, the
// first headings, the labels of buttons and text inputs, and the link count.
func summarizeHTML(rawHTML string) (*PageSummary, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	s := &PageSummary{
		Title: textContent(doc.Find("title").First()),
		Links: doc.Find(linkSelector).Length(),
	}
	s.Preview = truncateRunes(textContent(doc.Find("body").First()), previewLength)

	each(doc.Find(headingSelector), maxHeadings, func(sel *goquery.Selection) {
		appendNonEmpty(&s.Headings, textContent(sel))
	})
	each(doc.Find(buttonSelector), maxControls, func(sel *goquery.Selection) {
		label := textContent(sel)
		if label == "" {
			label = attr(sel, "value")
		}
		appendNonEmpty(&s.Buttons, label)
	})
	each(doc.Find(inputSelector), maxControls, func(sel *goquery.Selection) {
		name := attr(sel, "name")
		if name == "" {
			name = attr(sel, "placeholder")
		}
		appendNonEmpty(&s.Inputs, name)
	})
	return s, nil
}

// each calls fn for at most limit elements of sel, in document order.
func each(sel *goquery.Selection, limit int, fn func(*goquery.Selection)) {
	sel.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		fn(item)
		return true
	})
}

// String renders the summary in the layout agents see after navigate and
// screenshot.
func (s *PageSummary) String() string {
	var parts []string
	if s.Preview != "" {
		parts = append(parts, "Page text preview:\n"+s.Preview+"...")
	}
	if len(s.Headings) > 0 {
		parts = append(parts, "\nHeadings: "+strings.Join(s.Headings, ", "))
	}
	if len(s.Buttons) > 0 {
		parts = append(parts, "\nButtons: "+strings.Join(s.Buttons, ", "))
	}
	if len(s.Inputs) > 0 {
		parts = append(parts, "\nInput fields: "+strings.Join(s.Inputs, ", "))
	}
	if s.Links > 0 {
		parts = append(parts, fmt.Sprintf("\n%d links found on page", s.Links))
	}
	if len(parts) == 0 {
		return "Page loaded successfully"
	}
	return strings.Join(parts, "\n")
}

// isSkippedElement returns true for elements whose content is never visible text
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "iframe", "embed", "object", "svg":
		return true
	}
	return false
}

func attr(sel *goquery.Selection, key string) string {
	val, _ := sel.Attr(key)
	return strings.TrimSpace(val)
}

// textContent joins the visible text below the selected nodes with
// whitespace collapsed.
func textContent(sel *goquery.Selection) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && n.Data != "title" && isSkippedElement(strings.ToLower(n.Data)) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for _, n := range sel.Nodes {
		collect(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func appendNonEmpty(list *[]string, s string) {
	if s != "" {
		*list = append(*list, s)
	}
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
