package core

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

//go:embed data/hosts.json
var embeddedHosts []byte

// MaxKeyDepth bounds how deep a response key path may walk.
const MaxKeyDepth = 3

// Key is one step of a response key path: an object field or a sequence index.
type Key struct {
	Field   string
	Index   int
	IsIndex bool
}

func (k *Key) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		k.IsIndex = false
		return json.Unmarshal(b, &k.Field)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("key %s is neither a string nor an integer", b)
	}
	if n < 0 {
		return fmt.Errorf("key %d is a negative index", n)
	}
	k.Index = n
	k.IsIndex = true
	return nil
}

func (k Key) MarshalJSON() ([]byte, error) {
	if k.IsIndex {
		return []byte(strconv.Itoa(k.Index)), nil
	}
	return json.Marshal(k.Field)
}

func (k Key) String() string {
	if k.IsIndex {
		return "[" + strconv.Itoa(k.Index) + "]"
	}
	return k.Field
}

// HostDescriptor describes how to upload to one host and read its answer.
type HostDescriptor struct {
	Name        string            `json:"name"`
	Server      string            `json:"server"`
	SizeLimitMB float64           `json:"limit"`
	Method      string            `json:"method,omitempty"`
	Field       string            `json:"field,omitempty"`
	Form        map[string]string `json:"form,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Keys        []Key             `json:"keys,omitempty"`
	Accept      []string          `json:"accept,omitempty"`
	// Line selects a line of a multi-line text answer; nil means the whole body.
	Line        *int   `json:"line,omitempty"`
	StripPrefix string `json:"strip_prefix,omitempty"`
}

// Hostname returns the host part of the descriptor's server URL.
func (d HostDescriptor) Hostname() string {
	u, err := url.Parse(d.Server)
	if err != nil || u.Hostname() == "" {
		return d.Server
	}
	return u.Hostname()
}

// BrowserDescriptor configures a browser-driven upload page.
type BrowserDescriptor struct {
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	SizeLimitMB float64 `json:"limit"`
	Input       string  `json:"input"`
	Submit      string  `json:"submit,omitempty"`
	Result      string  `json:"result"`
	Attr        string  `json:"attr,omitempty"`
	// TimeoutSeconds overrides DefaultBrowserTimeout when > 0.
	TimeoutSeconds int `json:"timeout,omitempty"`
}

// Registry is the ordered, read-only set of upload targets for a run.
type Registry struct {
	hosts   []HostDescriptor
	byName  map[string]int
	browser []BrowserDescriptor
}

type registryFile struct {
	Hosts   []HostDescriptor    `json:"hosts"`
	Browser []BrowserDescriptor `json:"browser"`
}

// LoadRegistry reads the host registry from path, or the embedded registry
// when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return ParseRegistry("embedded", embeddedHosts)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	return ParseRegistry(path, b)
}

// ParseRegistry decodes and validates a registry document.
func ParseRegistry(source string, b []byte) (*Registry, error) {
	var f registryFile
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}
	if len(f.Hosts) == 0 {
		return nil, &ConfigError{Source: source, Field: "hosts", Err: errors.New("no hosts defined")}
	}

	r := &Registry{byName: make(map[string]int, len(f.Hosts))}
	for i, h := range f.Hosts {
		label := h.Name
		if label == "" {
			label = fmt.Sprintf("hosts[%d]", i)
		}
		if field, err := validateHost(h); field != "" {
			return nil, &ConfigError{Source: source, Field: label + "." + field, Err: err}
		}
		if _, dup := r.byName[h.Name]; dup {
			return nil, &ConfigError{Source: source, Field: h.Name, Err: errors.New("duplicate host name")}
		}
		if h.Method == "" {
			if h.Field == "" {
				h.Method = "PUT"
			} else {
				h.Method = "POST"
			}
		}
		h.Method = strings.ToUpper(h.Method)
		r.byName[h.Name] = len(r.hosts)
		r.hosts = append(r.hosts, h)
	}

	for i, b := range f.Browser {
		switch {
		case b.Name == "":
			return nil, &ConfigError{Source: source, Field: fmt.Sprintf("browser[%d].name", i)}
		case b.URL == "":
			return nil, &ConfigError{Source: source, Field: b.Name + ".url"}
		case b.Input == "":
			return nil, &ConfigError{Source: source, Field: b.Name + ".input"}
		case b.Result == "":
			return nil, &ConfigError{Source: source, Field: b.Name + ".result"}
		case b.SizeLimitMB <= 0:
			return nil, &ConfigError{Source: source, Field: b.Name + ".limit"}
		}
		r.browser = append(r.browser, b)
	}
	return r, nil
}

// validateHost returns the offending field name, if any, and an optional cause.
func validateHost(h HostDescriptor) (string, error) {
	if strings.TrimSpace(h.Name) == "" {
		return "name", nil
	}
	if h.Server == "" {
		return "server", nil
	}
	if u, err := url.Parse(h.Server); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "server", fmt.Errorf("invalid endpoint %q", h.Server)
	}
	if h.SizeLimitMB <= 0 {
		return "limit", nil
	}
	if len(h.Keys) > MaxKeyDepth {
		return "keys", fmt.Errorf("%d keys exceeds maximum depth %d", len(h.Keys), MaxKeyDepth)
	}
	if h.Line != nil && *h.Line < 0 {
		return "line", errors.New("negative line index")
	}
	return "", nil
}

// Hosts returns the descriptors in registry order.
func (r *Registry) Hosts() []HostDescriptor {
	out := make([]HostDescriptor, len(r.hosts))
	copy(out, r.hosts)
	return out
}

// Names returns the host names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.hosts))
	for i, h := range r.hosts {
		out[i] = h.Name
	}
	return out
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (HostDescriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return HostDescriptor{}, false
	}
	return r.hosts[i], true
}

// Browser returns the browser-driven upload pages.
func (r *Registry) Browser() []BrowserDescriptor {
	out := make([]BrowserDescriptor, len(r.browser))
	copy(out, r.browser)
	return out
}

// Len returns the number of API hosts.
func (r *Registry) Len() int { return len(r.hosts) }
