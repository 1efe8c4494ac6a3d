package core

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when an extracted link fails validation.
var ErrInvalidURL = errors.New("invalid URL")

// ValidateLink validates that a host answer is a usable link.
// It requires an http, https or ftp scheme and a non-empty host.
func ValidateLink(link string) error {
	if link == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	if strings.ContainsAny(link, " \t\r\n") {
		return fmt.Errorf("%w: contains whitespace", ErrInvalidURL)
	}

	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "http", "https", "ftp", "ftps":
	default:
		return fmt.Errorf("%w: scheme must be http, https or ftp, got %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// Style selects how links are rendered.
type Style string

const (
	StyleLines    Style = "lines"
	StyleList     Style = "list"
	StyleMarkdown Style = "markdown"
	StyleReddit   Style = "reddit"
)

// Styles lists the accepted output styles.
var Styles = []Style{StyleLines, StyleList, StyleMarkdown, StyleReddit}

// ParseStyle validates a style name.
func ParseStyle(s string) (Style, error) {
	for _, st := range Styles {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown style %q (expected lines, list, markdown, or reddit)", s)
}

// DisplayName derives a short label from a link's domain.
//
// The link is split on "/", the final segment dropped, and the third
// segment taken as the domain. A leading "www." is stripped and
// three-label domains lose their first label ("files.catbox.moe" becomes
// "catbox.moe").
func DisplayName(link string) (string, error) {
	segs := strings.Split(link, "/")
	segs = segs[:len(segs)-1]
	if len(segs) < 3 || !strings.HasSuffix(segs[0], ":") || segs[1] != "" || segs[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedLink, link)
	}
	domain := strings.TrimPrefix(segs[2], "www.")
	if strings.Contains(domain, "]:") {
		if host, _, err := net.SplitHostPort(domain); err == nil {
			domain = "[" + host + "]"
		}
	} else if i := strings.LastIndex(domain, ":"); i > 0 && !strings.Contains(domain, "]") {
		domain = domain[:i]
	}
	labels := strings.Split(domain, ".")
	if len(labels) == 3 {
		return strings.Join(labels[1:], "."), nil
	}
	return domain, nil
}

// Entry is one aggregated link with its display name.
type Entry struct {
	Name string
	Link string
}

// Aggregate keys links by display name. Names keep the position of their
// first appearance; a later link with the same name replaces the earlier one.
// Links whose name cannot be derived are reported and left out.
func Aggregate(links []string) ([]Entry, []error) {
	var (
		entries []Entry
		faults  []error
		index   = make(map[string]int)
	)
	for _, link := range links {
		name, err := DisplayName(link)
		if err != nil {
			faults = append(faults, err)
			continue
		}
		if i, ok := index[name]; ok {
			entries[i].Link = link
			continue
		}
		index[name] = len(entries)
		entries = append(entries, Entry{Name: name, Link: link})
	}
	return entries, faults
}

// Format renders entries in the given style. Unknown styles render as lines.
func Format(entries []Entry, style Style) string {
	lines := make([]string, len(entries))
	switch style {
	case StyleMarkdown:
		for i, e := range entries {
			lines[i] = fmt.Sprintf("- [%s](%s)", e.Name, e.Link)
		}
		return strings.Join(lines, "\n")
	case StyleReddit:
		for i, e := range entries {
			lines[i] = fmt.Sprintf("[Mirror %d](%s)", i+1, e.Link)
		}
		return strings.Join(lines, " | ")
	default:
		for i, e := range entries {
			lines[i] = e.Link
		}
		return strings.Join(lines, "\n")
	}
}

// Links returns the raw links of entries, in order.
func Links(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Link
	}
	return out
}
