package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParsedResponse is a host answer decoded either as JSON or as plain text.
type ParsedResponse interface {
	isParsedResponse()
}

// Structured holds a decoded JSON value.
type Structured struct {
	Value any
}

// Text holds a body that did not decode as JSON.
type Text string

func (Structured) isParsedResponse() {}
func (Text) isParsedResponse()       {}

// ParseResponse decodes body as JSON, falling back to trimmed text.
func ParseResponse(body []byte) ParsedResponse {
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err == nil && !dec.More() {
		return Structured{Value: v}
	}
	return Text(strings.TrimRight(string(body), "\r\n"))
}

// ExtractLink pulls the link out of a parsed response as described by d.
func ExtractLink(p ParsedResponse, d HostDescriptor) (string, error) {
	switch r := p.(type) {
	case Structured:
		v, err := walkKeys(r.Value, d.Keys)
		if err != nil {
			return "", err
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("value at %s is %T, not a string", keyPath(d.Keys), v)
		}
		return strings.TrimSpace(s), nil
	case Text:
		if len(d.Keys) > 0 {
			return "", fmt.Errorf("cannot walk %s into a text response", keyPath(d.Keys))
		}
		return extractText(string(r), d)
	default:
		return "", fmt.Errorf("unsupported response %T", p)
	}
}

// walkKeys indexes one level deeper per key: object field or sequence position.
func walkKeys(v any, keys []Key) (any, error) {
	if len(keys) > MaxKeyDepth {
		return nil, fmt.Errorf("key path %s exceeds depth %d", keyPath(keys), MaxKeyDepth)
	}
	cur := v
	for i, k := range keys {
		switch node := cur.(type) {
		case map[string]any:
			if k.IsIndex {
				return nil, fmt.Errorf("key %s: index into an object", keyPath(keys[:i+1]))
			}
			next, ok := node[k.Field]
			if !ok {
				return nil, fmt.Errorf("key %s: field not found", keyPath(keys[:i+1]))
			}
			cur = next
		case []any:
			if !k.IsIndex {
				return nil, fmt.Errorf("key %s: field of a sequence", keyPath(keys[:i+1]))
			}
			if k.Index >= len(node) {
				return nil, fmt.Errorf("key %s: index out of range (len %d)", keyPath(keys[:i+1]), len(node))
			}
			cur = node[k.Index]
		default:
			return nil, fmt.Errorf("key %s: cannot index %T", keyPath(keys[:i+1]), cur)
		}
	}
	return cur, nil
}

func keyPath(keys []Key) string {
	if len(keys) == 0 {
		return "<body>"
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ".")
}

func extractText(body string, d HostDescriptor) (string, error) {
	if d.Line != nil && strings.Contains(body, "\n") {
		lines := strings.Split(body, "\n")
		if *d.Line >= len(lines) {
			return "", fmt.Errorf("line %d not present in %d-line response", *d.Line, len(lines))
		}
		return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[*d.Line]), d.StripPrefix)), nil
	}
	if looksLikeHTML(body) {
		return extractHTML(body)
	}
	return strings.TrimSpace(body), nil
}

func looksLikeHTML(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(t, "<!doctype html") || strings.HasPrefix(t, "<html") ||
		(strings.HasPrefix(t, "<") && strings.Contains(t, "</"))
}

// extractHTML returns the first absolute http(s) anchor, or the page text
// when there is none so error pages still surface their message.
func extractHTML(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if u, err := url.Parse(href); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			link = href
			return false
		}
		return true
	})
	if link != "" {
		return link, nil
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	if text == "" {
		return "", errors.New("no link in HTML response")
	}
	return text, nil
}

// classifyLink reports host-side error markers embedded in an extracted link.
func classifyLink(host, link string) error {
	lower := strings.ToLower(link)
	switch {
	case strings.Contains(lower, "bad gateway"):
		return &TransportError{Host: host, Kind: BadGateway, Err: fmt.Errorf("host answered %q", truncate(link, 80))}
	case strings.Contains(lower, "error"):
		return &TransportError{Host: host, Kind: Generic, Err: fmt.Errorf("host answered %q", truncate(link, 80))}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
