package extract

import (
	"strings"
	"testing"
)

func TestParseHTML(t *testing.T) {
	htmlContent := `<!DOCTYPE html>
<html>
<head><title> Survey of Transformers </title><style>body{color:red}</style></head>
<body>
<nav>Home | About</nav>
<h1>Survey</h1>
<p>Transformers   changed NLP.<script>var x = 1;</script></p>
<h2>References</h2>
<ol>
  <li>Vaswani, A. et al. (2017). <i>Attention Is All You Need</i>. NeurIPS.</li>
  <li>Devlin, J. et al. (2019). BERT. NAACL.</li>
</ol>
</body>
</html>`

	doc, err := ParseHTML(htmlContent)
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}

	if doc.Title != "Survey of Transformers" {
		t.Errorf("unexpected title %q", doc.Title)
	}
	for _, hidden := range []string{"color:red", "var x", "Home | About", "Survey of Transformers"} {
		if strings.Contains(doc.Text, hidden) {
			t.Errorf("text should not contain %q:\n%s", hidden, doc.Text)
		}
	}

	lines := strings.Split(doc.Text, "\n")
	var refs []string
	for _, line := range lines {
		if strings.Contains(line, "(2017)") || strings.Contains(line, "(2019)") {
			refs = append(refs, line)
		}
	}
	if len(refs) != 2 {
		t.Fatalf("expected one line per reference, got %q", doc.Text)
	}
	if refs[0] != "Vaswani, A. et al. (2017). Attention Is All You Need . NeurIPS." {
		t.Errorf("unexpected reference line %q", refs[0])
	}
	if !strings.Contains(doc.Text, "Transformers changed NLP.") {
		t.Errorf("expected collapsed whitespace, got %q", doc.Text)
	}
}

func TestPlainText(t *testing.T) {
	doc := PlainText("  line one  \r\n\n\n\n  line   two\n")
	if doc.Text != "line one\n\nline two" {
		t.Errorf("unexpected text %q", doc.Text)
	}
	if doc.Title != "" {
		t.Errorf("expected no title, got %q", doc.Title)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		content     string
		contentType string
		want        bool
	}{
		{"anything", "text/html; charset=utf-8", true},
		{"<html><body>x</body></html>", "text/plain", false},
		{"<!DOCTYPE html><html>", "", true},
		{"  <html lang=en>", "application/octet-stream", true},
		{"Plain notes with a <b> tag", "", false},
		{"References:\n1. Foo", "", false},
	}
	for _, tt := range tests {
		if got := LooksLikeHTML(tt.content, tt.contentType); got != tt.want {
			t.Errorf("LooksLikeHTML(%q, %q) = %v, want %v", tt.content, tt.contentType, got, tt.want)
		}
	}
}
