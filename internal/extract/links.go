package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// LinkKind classifies an outbound link of a document
type LinkKind string

const (
	LinkDOI       LinkKind = "doi"
	LinkReference LinkKind = "reference"
	LinkExternal  LinkKind = "external"
)

// Link is an anchor found in an HTML document
type Link struct {
	URL  string
	Text string
	Host string
	Kind LinkKind
}

var doiInURL = regexp.MustCompile(`10\.\d{4,9}/[^\s?#]+`)

// Links collects the http(s) anchors of an HTML document, resolved
// against sourceURL and deduplicated by URL. sourceURL may be empty for
// local files, in which case relative links are dropped.
func Links(htmlContent, sourceURL string) ([]Link, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := ""
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = strings.TrimSpace(attr.Val)
				}
			}

			if resolved := resolveURL(baseURL, href); resolved != nil {
				links = append(links, Link{
					URL:  resolved.String(),
					Text: nodeText(n),
					Host: resolved.Host,
					Kind: classifyLink(resolved, n),
				})
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return dedupeLinks(links), nil
}

// DOI returns the DOI a link points at, or "" for non-DOI links
func (l Link) DOI() string {
	if l.Kind != LinkDOI {
		return ""
	}
	u, err := url.Parse(l.URL)
	if err != nil {
		return ""
	}
	path, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		path = u.Path
	}
	return strings.TrimRight(doiInURL.FindString(path), ".,;:")
}

// resolveURL resolves href against base, keeping only http(s) targets
func resolveURL(base *url.URL, href string) *url.URL {
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return nil
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return nil
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil
	}
	return resolved
}

func classifyLink(u *url.URL, n *html.Node) LinkKind {
	host := strings.ToLower(u.Host)
	if host == "doi.org" || host == "dx.doi.org" || doiInURL.MatchString(u.Path) {
		return LinkDOI
	}

	lower := strings.ToLower(u.String())
	if strings.Contains(lower, "cite") || strings.Contains(lower, "#ref") {
		return LinkReference
	}
	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, "reference") {
			return LinkReference
		}
	}
	return LinkExternal
}

// nodeText joins the text beneath n
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func dedupeLinks(links []Link) []Link {
	seen := make(map[string]bool)
	var unique []Link
	for _, l := range links {
		if !seen[l.URL] {
			seen[l.URL] = true
			unique = append(unique, l)
		}
	}
	return unique
}

// DOIAppendix lists the DOI links of a document as text lines so that the
// extractor sees identifiers that only appear in hrefs. It returns "" when
// the document links no DOIs.
func DOIAppendix(links []Link) string {
	var b strings.Builder
	for _, l := range links {
		doi := l.DOI()
		if doi == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("Linked DOIs:\n")
		}
		if l.Text != "" && !strings.Contains(l.Text, doi) {
			b.WriteString("- " + l.Text + ": doi:" + doi + "\n")
		} else {
			b.WriteString("- doi:" + doi + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
