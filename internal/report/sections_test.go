package report

import (
	"strings"
	"testing"
)

func TestSectionsFixedOrder(t *testing.T) {
	sections := Sections()
	if len(sections) != 7 {
		t.Fatalf("expected 7 sections, got %d", len(sections))
	}
	if sections[0].ID != "executive_summary" {
		t.Fatalf("expected executive summary first, got %s", sections[0].ID)
	}
	for _, s := range sections {
		if len(s.Keywords) == 0 {
			t.Fatalf("section %s has no keywords", s.ID)
		}
		if !strings.Contains(s.Template, "{{context}}") {
			t.Fatalf("section %s template lacks context placeholder", s.ID)
		}
	}
}

func TestSubstituteResolvesKnownPlaceholders(t *testing.T) {
	out := Substitute("Report for {{client}} ({{project_title}})", map[string]string{
		"client":        "Acme",
		"project_title": "Ops Review",
	})
	if out != "Report for Acme (Ops Review)" {
		t.Fatalf("unexpected substitution: %q", out)
	}
}

func TestSubstituteRemovesUnknownPlaceholders(t *testing.T) {
	out := Substitute("before {{mystery}} after", map[string]string{})
	if strings.Contains(out, "{{") {
		t.Fatalf("unresolved placeholder left in output: %q", out)
	}
	if out != "before  after" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSubstituteHandlesSpacedPlaceholders(t *testing.T) {
	out := Substitute("x {{ client }} y", map[string]string{"client": "Acme"})
	if out != "x Acme y" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPlaceholdersListsDistinctSorted(t *testing.T) {
	got := Placeholders("{{b}} {{a}} {{b}}")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected placeholders: %v", got)
	}
}

func TestJoinList(t *testing.T) {
	if JoinList(nil) != "n/a" {
		t.Fatalf("expected n/a for empty list")
	}
	if JoinList([]string{"a", "b"}) != "a, b" {
		t.Fatalf("unexpected join")
	}
}
