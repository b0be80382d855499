// Package markup turns user-supplied markdown into HTML that is safe to embed in a page.
package markup

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// AllowedTags is the fixed set of elements that survive sanitizing.
var AllowedTags = []string{
	"a", "abbr", "acronym", "b", "blockquote", "br", "code", "dd", "del", "details", "dl", "dt", "em",
	"h1", "h2", "h3", "h4", "h5", "h6", "hr", "i", "img", "ins", "kbd", "li", "ol", "p", "pre", "q",
	"rp", "rt", "ruby", "s", "samp", "strike", "strong", "sub", "summary", "sup", "table", "tbody",
	"td", "tfoot", "th", "thead", "tr", "tt", "ul", "var",
}

// AllowedAttributes lists, per element, the attributes that survive sanitizing.
var AllowedAttributes = map[string][]string{
	"a":       {"href", "title"},
	"abbr":    {"title"},
	"acronym": {"title"},
	"img":     {"alt", "src", "width", "height"},
}

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	for element, attrs := range AllowedAttributes {
		p.AllowAttrs(attrs...).OnElements(element)
	}
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(false)
	return p
}

// Render converts raw markdown into sanitized HTML.
func Render(raw string) string {
	unsafe := blackfriday.Run([]byte(raw))
	return string(policy.SanitizeBytes(unsafe))
}
