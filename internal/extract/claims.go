// Package extract turns article HTML into candidate claims for ingest.
package extract

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	minSentenceLen = 30
	maxSentenceLen = 500
)

// Candidate is a sentence that looks like a checkable factual claim
type Candidate struct {
	Text      string `json:"text"`
	Sentence  int    `json:"sentence"`  // Index among the article's sentences
	Heuristic string `json:"heuristic"` // Why it was picked
	Immutable bool   `json:"is_immutable"`
}

// Document is the extracted view of an article
type Document struct {
	Title      string      `json:"title"`
	Language   string      `json:"language"`
	Candidates []Candidate `json:"candidates"`
}

// ClaimExtractor picks claim-like sentences out of article HTML
type ClaimExtractor struct {
	keywords []string
	// Events that happened once do not go stale
	historical []string
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor() *ClaimExtractor {
	return &ClaimExtractor{
		keywords: []string{
			"originated", "first", "introduced", "invented", "according to",
			"is defined as", "established", "founded", "created", "discovered",
			"developed", "population", "is the largest", "is the capital",
			"currently", "as of", "estimated", "consists of",
		},
		historical: []string{
			"was born", "died", "founded in", "established in", "invented",
			"discovered", "originated", "was built", "was signed",
		},
	}
}

// Extract parses the article and returns its candidates. pageURL may be empty; it is
// only used to infer the language of encyclopedia subdomains.
func (e *ClaimExtractor) Extract(htmlContent, pageURL string) (*Document, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	out := &Document{
		Title:    pageTitle(doc),
		Language: pageLanguage(doc, pageURL),
	}

	sentences := splitSentences(extractVisibleText(contentRoot(doc)))
	for i, sentence := range sentences {
		lower := strings.ToLower(sentence)

		heuristic := ""
		for _, keyword := range e.keywords {
			if strings.Contains(lower, keyword) {
				heuristic = "keyword:" + keyword
				break
			}
		}
		if heuristic == "" && hasYear(sentence) {
			heuristic = "year"
		}
		if heuristic == "" {
			continue
		}

		immutable := false
		for _, marker := range e.historical {
			if strings.Contains(lower, marker) {
				immutable = true
				break
			}
		}

		out.Candidates = append(out.Candidates, Candidate{
			Text:      sentence,
			Sentence:  i,
			Heuristic: heuristic,
			Immutable: immutable,
		})
	}

	out.Candidates = dedupeCandidates(out.Candidates)
	return out, nil
}

// contentRoot narrows to the article body when the page marks one
func contentRoot(doc *html.Node) *html.Node {
	var byClass, byTag *html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if byClass != nil {
			return
		}
		if n.Type == html.ElementNode {
			if n.Data == "div" && (hasClass(n, "mw-parser-output") || attr(n, "id") == "mw-content-text") {
				byClass = n
				return
			}
			if byTag == nil && (n.Data == "article" || n.Data == "main") {
				byTag = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	switch {
	case byClass != nil:
		return byClass
	case byTag != nil:
		return byTag
	default:
		return doc
	}
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles and page furniture
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer", "head", "title":
				return
			case "sup":
				// Citation markers like [1]
				if hasClass(n, "reference") {
					return
				}
			case "table":
				if hasClass(n, "infobox") || hasClass(n, "navbox") {
					return
				}
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// splitSentences splits text into sentences (simple heuristic)
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= minSentenceLen && len(sentence) <= maxSentenceLen {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' || r == '。' {
			next := i + utf8.RuneLen(r)
			// Only split when followed by a space, so "3.5" stays intact
			if next >= len(text) || text[next] == ' ' {
				flush()
			}
		}
	}
	if current.Len() > 0 {
		flush()
	}

	return sentences
}

func hasYear(s string) bool {
	run := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			run++
			continue
		}
		if run == 4 {
			return true
		}
		run = 0
	}
	return run == 4
}

func pageTitle(doc *html.Node) string {
	var title, h1 string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "title" && title == "":
				title = strings.TrimSpace(textOf(n))
			case n.Data == "h1" && h1 == "":
				h1 = strings.TrimSpace(textOf(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if h1 != "" {
		return h1
	}
	return title
}

// pageLanguage reads <html lang>, then a two-letter subdomain (es.wikipedia.org), then defaults to en
func pageLanguage(doc *html.Node, pageURL string) string {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "html" {
			if lang := attr(n, "lang"); lang != "" {
				return strings.ToLower(strings.SplitN(lang, "-", 2)[0])
			}
		}
	}

	if u, err := url.Parse(pageURL); err == nil {
		parts := strings.Split(u.Hostname(), ".")
		if len(parts) >= 3 && len(parts[0]) == 2 {
			return strings.ToLower(parts[0])
		}
	}
	return "en"
}

func textOf(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// dedupeCandidates removes case-insensitive duplicates, keeping the first
func dedupeCandidates(candidates []Candidate) []Candidate {
	seen := make(map[string]bool)
	var unique []Candidate

	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, c)
		}
	}

	return unique
}
