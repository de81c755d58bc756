package browser

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resourceAttrs maps each rewritten attribute to the elements that carry it.
var resourceAttrs = map[string]string{
	"href":   "a[href], link[href], area[href]",
	"src":    "img[src], script[src], iframe[src], frame[src], source[src], video[src], audio[src], embed[src], input[src], track[src]",
	"action": "form[action]",
	"poster": "video[poster]",
}

// RewriteHTML resolves relative resource references in src against baseURL
// and sets a <base> element, so a saved page loads its stylesheets and
// images when opened from disk. An empty baseURL returns src unchanged.
func RewriteHTML(src, baseURL string) (string, error) {
	if baseURL == "" {
		return src, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	for attr, selector := range resourceAttrs {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(attr); ok {
				s.SetAttr(attr, resolveReference(base, v))
			}
		})
	}

	if existing := doc.Find("head base[href]"); existing.Length() > 0 {
		existing.First().SetAttr("href", base.String())
	} else {
		doc.Find("head").First().PrependHtml(fmt.Sprintf(`<base href="%s">`, html.EscapeString(base.String())))
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}

// resolveReference makes ref absolute against base. Fragments, data URIs and
// script or mail links are left alone.
func resolveReference(base *url.URL, ref string) string {
	trimmed := strings.TrimSpace(ref)
	lower := strings.ToLower(trimmed)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ref
	}
	for _, scheme := range []string{"javascript:", "data:", "mailto:", "tel:", "about:"} {
		if strings.HasPrefix(lower, scheme) {
			return ref
		}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
