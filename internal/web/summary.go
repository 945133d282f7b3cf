package web

import (
	"bytes"
	"errors"
	"net/url"
	"sort"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

const maxLinks = 50

// invisible lists elements that never carry readable page text.
const invisible = "script, style, noscript, iframe, object, embed, img, video, picture, svg, canvas, " +
	"audio, source, track, map, area, form, label, input, button, select, textarea, progress"

// Summarize turns a fetched body into a PageSummary. HTML is converted to
// markdown; other text types are returned verbatim.
func Summarize(pageURL, contentType string, body []byte) (*PageSummary, error) {
	ct := strings.ToLower(contentType)
	if !strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "xhtml") {
		return nil, errors.New("unsupported content type: only text and HTML pages can be previewed")
	}
	if !strings.Contains(ct, "html") {
		return &PageSummary{URL: pageURL, Text: string(body)}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Find(invisible).Remove()

	ps := &PageSummary{
		URL:         pageURL,
		Title:       singleLine(doc.Find("head > title").First().Text()),
		Description: singleLine(doc.Find("meta[name=description]").AttrOr("content", "")),
		Links:       collectLinks(doc, pageURL),
	}

	doc.Find("a").Remove()
	doc.Find("header, footer, nav, aside").Remove()

	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		md = singleLine(doc.Find("body").Text())
	}
	ps.Text = strings.TrimSpace(md)
	return ps, nil
}

// collectLinks returns sorted, fragment-free absolute http(s) links.
func collectLinks(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		u, err := url.Parse(strings.TrimSpace(s.AttrOr("href", "")))
		if err != nil {
			return
		}
		if !u.IsAbs() && base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		seen[u.String()] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	return links
}

// singleLine trims and collapses internal whitespace/newlines to single spaces.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
