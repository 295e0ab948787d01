package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xmlquery"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/pkg/contenttype"
)

// extractCSS returns the trimmed text content of the nodes a CSS selector
// matches in an HTML body.
func extractCSS(body []byte, expression string, maxResults int) ([]any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeDecode, err, "parse html body")
	}

	var values []any
	doc.Find(expression).Each(func(i int, sel *goquery.Selection) {
		if maxResults > 0 && len(values) >= maxResults {
			return
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			values = append(values, text)
		}
	})
	return values, nil
}

// extractXPath evaluates an XPath expression, parsing the body as HTML or
// XML depending on its content type.
func extractXPath(body []byte, ct, expression string, maxResults int) ([]any, error) {
	if contenttype.Classify(ct) == contenttype.HTML {
		doc, err := htmlquery.Parse(bytes.NewReader(body))
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeDecode, err, "parse html body")
		}
		nodes, err := htmlquery.QueryAll(doc, expression)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeValidate, err, "invalid xpath expression")
		}
		var values []any
		for _, node := range nodes {
			if maxResults > 0 && len(values) >= maxResults {
				break
			}
			if text := strings.TrimSpace(htmlquery.InnerText(node)); text != "" {
				values = append(values, text)
			}
		}
		return values, nil
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeDecode, err, "parse xml body")
	}
	nodes, err := xmlquery.QueryAll(doc, expression)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeValidate, err, "invalid xpath expression")
	}
	var values []any
	for _, node := range nodes {
		if maxResults > 0 && len(values) >= maxResults {
			break
		}
		if text := strings.TrimSpace(node.InnerText()); text != "" {
			values = append(values, text)
		}
	}
	return values, nil
}

// extractRegex returns each match, preferring the first capture group
// when the pattern has one. Like search, an invalid pattern is a hard
// error, never a literal fallback.
func extractRegex(body []byte, expression string, maxResults int) ([]any, error) {
	re, err := regexp.Compile(expression)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeRegex, err, "invalid extraction pattern")
	}

	hasGroups := re.NumSubexp() > 0
	var values []any
	for _, match := range re.FindAllSubmatch(body, -1) {
		if maxResults > 0 && len(values) >= maxResults {
			break
		}
		if hasGroups && len(match) > 1 {
			values = append(values, string(match[1]))
		} else {
			values = append(values, string(match[0]))
		}
	}
	return values, nil
}

// extractForm looks a key up in a form-urlencoded body. The expressions
// "*" and "." return all pairs as one map.
func extractForm(body []byte, expression string, maxResults int) ([]any, error) {
	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeDecode, err, "parse form body")
	}

	if expression == "*" || expression == "." {
		m := make(map[string]any, len(parsed))
		for key, vals := range parsed {
			if len(vals) == 1 {
				m[key] = vals[0]
			} else {
				anyVals := make([]any, len(vals))
				for i, v := range vals {
					anyVals[i] = v
				}
				m[key] = anyVals
			}
		}
		return []any{m}, nil
	}

	var values []any
	for _, v := range parsed[expression] {
		if maxResults > 0 && len(values) >= maxResults {
			break
		}
		values = append(values, v)
	}
	return values, nil
}
