package i18n

import "testing"

func TestTPassthroughWithoutInit(t *testing.T) {
	po = nil
	if got := T("Nothing to translate"); got != "Nothing to translate" {
		t.Errorf("T without Init = %q, want passthrough", got)
	}
	if got := N("one", "many", 1); got != "one" {
		t.Errorf("N(1) without Init = %q, want singular", got)
	}
	if got := N("one", "many", 2); got != "many" {
		t.Errorf("N(2) without Init = %q, want plural", got)
	}
}

func TestInitLoadsEmbeddedLocale(t *testing.T) {
	Init("fr")
	t.Cleanup(func() { po = nil })

	if got := T("Nothing to translate"); got != "Rien à traduire" {
		t.Errorf("T(fr) = %q, want French translation", got)
	}
	// Untranslated strings pass through unchanged.
	if got := T("not in the catalog"); got != "not in the catalog" {
		t.Errorf("T(unknown) = %q, want passthrough", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "fr_FR.UTF-8")
	if got := detectLanguage(); got != "fr_FR" {
		t.Errorf("detectLanguage = %q, want fr_FR", got)
	}

	t.Setenv("LANGUAGE", "de:en")
	if got := detectLanguage(); got != "de" {
		t.Errorf("detectLanguage = %q, want de (first LANGUAGE item)", got)
	}

	t.Setenv("LANGUAGE", "")
	t.Setenv("LANG", "C")
	if got := detectLanguage(); got != "en" {
		t.Errorf("detectLanguage = %q, want en fallback", got)
	}
}
