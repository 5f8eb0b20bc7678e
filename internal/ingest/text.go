package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ugc    = newUGCPolicy()
	strict = bluemonday.StrictPolicy()
)

func newUGCPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Sanitize strips scripts, styles and unsafe attributes from feed HTML,
// keeping ordinary formatting.
func Sanitize(html string) string {
	return strings.TrimSpace(ugc.Sanitize(html))
}

// PlainText reduces HTML to readable text. Block elements become
// paragraphs separated by a blank line.
func PlainText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(strict.Sanitize(html))
	}

	doc.Find("script, style").Remove()

	var paras []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are reported by their innermost element
		if s.Find("p, li, pre").Length() > 0 {
			return
		}
		if t := collapse(s.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) == 0 {
		return collapse(doc.Text())
	}
	return strings.Join(paras, "\n\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
