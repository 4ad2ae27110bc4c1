package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/caba/internal/common"
)

func TestRenderReplacesPlaceholder(t *testing.T) {
	tpl := NewTemplate("Extract trips.\n"+Placeholder+"\nThanks", 0)
	got := tpl.Render("  Pickup 9am  \n", false)
	want := "Extract trips.\nPickup 9am\nThanks"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderAppendsWhenPlaceholderMissing(t *testing.T) {
	tpl := NewTemplate("Extract trips.\n", 0)
	got := tpl.Render("text", false)
	if got != "Extract trips.\n\nDocument text:\ntext\n" {
		t.Fatalf("unexpected prompt %q", got)
	}
}

func TestRenderDefaultTemplate(t *testing.T) {
	got := NewTemplate("", 0).Render("DOC", false)
	if strings.Contains(got, Placeholder) || !strings.Contains(got, "DOC") {
		t.Fatalf("default template not rendered: %q", got)
	}
}

func TestRenderTruncatesOnRuneBoundary(t *testing.T) {
	tpl := NewTemplate(Placeholder, 3)
	got := tpl.Render("₹₹₹₹₹", false)
	if got != "₹₹₹"+truncationMarker {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func TestRenderReformulateAddsContract(t *testing.T) {
	tpl := NewTemplate(Placeholder, 0)
	plain := tpl.Render("x", false)
	strict := tpl.Render("x", true)
	if !strings.HasPrefix(strict, plain) {
		t.Fatalf("reformulated prompt should extend the plain one")
	}
	if !strings.Contains(strict, "inward_charges") || !strings.Contains(strict, "JSON only") {
		t.Fatalf("contract missing from %q", strict)
	}
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("P: "+Placeholder), 0o644); err != nil {
		t.Fatal(err)
	}
	tpl, err := LoadTemplate(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tpl.Render("abc", false); got != "P: abc" {
		t.Fatalf("unexpected prompt %q", got)
	}

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.txt"), 0)
	if common.KindOf(err) != common.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}
