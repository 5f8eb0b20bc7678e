package ingest

import (
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  ", ""},
		{"plain", "just text", "just text"},
		{"paragraphs", "<p>One  two</p><p>Three</p>", "One two\n\nThree"},
		{"nested list", "<ul><li><p>item</p></li></ul>", "item"},
		{"drops script", "<div>keep<script>var x</script></div>", "keep"},
		{"heading and para", "<h2>Title</h2><p>Body <a href=\"x\">link</a></p>", "Title\n\nBody link"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	got := Sanitize(`<p onclick="x()">Hi <a href="https://example.com">there</a></p><iframe src="evil"></iframe>`)
	for _, bad := range []string{"onclick", "iframe", "evil"} {
		if strings.Contains(got, bad) {
			t.Errorf("Sanitize kept %q: %q", bad, got)
		}
	}
	for _, keep := range []string{"<p>Hi ", `href="https://example.com"`, "nofollow", `target="_blank"`} {
		if !strings.Contains(got, keep) {
			t.Errorf("Sanitize dropped %q: %q", keep, got)
		}
	}
}

func FuzzPlainText(f *testing.F) {
	f.Add("<p>hello</p>")
	f.Add("<<<>>>")
	f.Add("")
	f.Fuzz(func(t *testing.T, s string) {
		_ = PlainText(s)
	})
}
