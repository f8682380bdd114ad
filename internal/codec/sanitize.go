package codec

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips scripts, event handlers and remote resources from
// message HTML before it reaches the toolbar UI.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer with a policy suited to email content:
// text formatting, lists, tables, links and inline/cid images.
func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "hr", "span", "div", "blockquote", "pre", "code")
	p.AllowElements("b", "strong", "i", "em", "u", "s", "sub", "sup")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("ul", "ol", "li", "dl", "dt", "dd")

	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption")
	p.AllowAttrs("colspan", "rowspan", "align", "valign", "width").OnElements("td", "th")
	p.AllowAttrs("width", "border", "cellpadding", "cellspacing", "align").OnElements("table")

	p.AllowElements("a")
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	p.AllowElements("img")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto", "data", "cid")

	p.AllowAttrs("style").Globally()
	p.AllowStyles(
		"color", "background-color", "font-family", "font-size",
		"font-weight", "font-style", "text-align", "text-decoration",
		"margin", "padding", "border", "width", "max-width",
	).Globally()

	return &Sanitizer{policy: p}
}

// SanitizeHTML returns a safe copy of html.
func (s *Sanitizer) SanitizeHTML(html string) string {
	return s.policy.Sanitize(html)
}
