package core

import (
	"errors"
	"testing"
)

func TestValidateLink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		wantErr bool
	}{
		{"https", "https://files.catbox.moe/abc.bin", false},
		{"http with port", "http://127.0.0.1:8080/x", false},
		{"ftp", "ftp://mirror.example/x", false},
		{"empty", "", true},
		{"no scheme", "files.catbox.moe/abc", true},
		{"javascript", "javascript:alert(1)", true},
		{"whitespace", "https://a.example/x y", true},
		{"error page", "502 Bad Gateway", true},
		{"missing host", "https:///x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLink(tt.link)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLink(%q) error = %v, wantErr %v", tt.link, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("error should wrap ErrInvalidURL, got %v", err)
			}
		})
	}
}

func TestParseStyle(t *testing.T) {
	for _, s := range []string{"lines", "list", "markdown", "reddit", "Markdown"} {
		if _, err := ParseStyle(s); err != nil {
			t.Errorf("ParseStyle(%q) error = %v", s, err)
		}
	}
	if _, err := ParseStyle("html"); err == nil {
		t.Error("ParseStyle(\"html\") should fail")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		link    string
		want    string
		wantErr bool
	}{
		{"https://host-a.example/x", "host-a.example", false},
		{"https://files.catbox.moe/abc.bin", "catbox.moe", false},
		{"https://www.example.com/x", "example.com", false},
		{"https://0x0.st/abc.bin", "0x0.st", false},
		{"https://a.b.c.example/x", "a.b.c.example", false},
		{"http://localhost:8080/x", "localhost", false},
		{"http://[::1]:8080/x", "[::1]", false},
		{"http://[::1]/x", "[::1]", false},
		{"https://tmpfiles.org/1/a.bin", "tmpfiles.org", false},
		{"https://example.com", "", true},
		{"not a link", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			got, err := DisplayName(tt.link)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedLink) {
					t.Errorf("DisplayName(%q) error = %v, want ErrMalformedLink", tt.link, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.link, got, tt.want)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	t.Run("later link with the same name wins, first position kept", func(t *testing.T) {
		entries, errs := Aggregate([]string{
			"https://a.example/1",
			"https://b.example/2",
			"https://a.example/3",
		})
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		want := []Entry{
			{Name: "a.example", Link: "https://a.example/3"},
			{Name: "b.example", Link: "https://b.example/2"},
		}
		if len(entries) != len(want) {
			t.Fatalf("got %d entries, want %d", len(entries), len(want))
		}
		for i := range want {
			if entries[i] != want[i] {
				t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
			}
		}
	})

	t.Run("malformed links are reported and skipped", func(t *testing.T) {
		entries, errs := Aggregate([]string{"garbage", "https://a.example/1"})
		if len(entries) != 1 {
			t.Errorf("got %d entries, want 1", len(entries))
		}
		if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedLink) {
			t.Errorf("errs = %v, want one ErrMalformedLink", errs)
		}
	})
}

func TestFormat(t *testing.T) {
	entries, _ := Aggregate([]string{"https://host-a.example/x", "https://host-b.example/y"})

	tests := []struct {
		style Style
		want  string
	}{
		{StyleMarkdown, "- [host-a.example](https://host-a.example/x)\n- [host-b.example](https://host-b.example/y)"},
		{StyleReddit, "[Mirror 1](https://host-a.example/x) | [Mirror 2](https://host-b.example/y)"},
		{StyleLines, "https://host-a.example/x\nhttps://host-b.example/y"},
		{StyleList, "https://host-a.example/x\nhttps://host-b.example/y"},
	}

	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			got := Format(entries, tt.style)
			if got != tt.want {
				t.Errorf("Format(%s) = %q, want %q", tt.style, got, tt.want)
			}
			if again := Format(entries, tt.style); again != got {
				t.Errorf("Format is not idempotent: %q then %q", got, again)
			}
		})
	}

	t.Run("empty", func(t *testing.T) {
		if got := Format(nil, StyleReddit); got != "" {
			t.Errorf("Format(nil) = %q, want empty", got)
		}
	})
}

func TestLinks(t *testing.T) {
	entries := []Entry{{Name: "a", Link: "https://a.example/1"}, {Name: "b", Link: "https://b.example/2"}}
	got := Links(entries)
	if len(got) != 2 || got[0] != "https://a.example/1" || got[1] != "https://b.example/2" {
		t.Errorf("Links() = %v", got)
	}
}
