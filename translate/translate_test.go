package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bourvill/AITranslate/xcstrings"
)

// fakeService is an in-memory Service whose behavior is a function.
type fakeService struct {
	mu    sync.Mutex
	calls int
	fn    func(prompt, fallback string) (string, error)
}

func (f *fakeService) Translate(ctx context.Context, prompt, fallback string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(prompt, fallback)
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func translatedUnit(value string) *xcstrings.Localization {
	return &xcstrings.Localization{StringUnit: &xcstrings.StringUnit{State: xcstrings.StateTranslated, Value: value}}
}

// ---------------------------------------------------------------------------
// Planner
// ---------------------------------------------------------------------------

func TestPlanEntryIdempotentOnFullyTranslatedGroup(t *testing.T) {
	e := &xcstrings.Entry{Key: "Hello"}
	e.SetUnit("de", translatedUnit("Hallo"))
	e.SetUnit("fr", translatedUnit("Bonjour"))

	for i := 0; i < 2; i++ {
		plan := planEntry(e, []string{"de", "fr"}, "en", false)
		if len(plan.languages) != 0 {
			t.Errorf("run %d: work set = %v, want empty", i+1, plan.languages)
		}
	}
}

func TestPlanEntryForceOverridesCompletion(t *testing.T) {
	e := &xcstrings.Entry{Key: "Hello"}
	e.SetUnit("de", translatedUnit("Hallo"))
	e.SetUnit("fr", translatedUnit("Bonjour"))
	e.SetUnit("it", &xcstrings.Localization{Variations: []byte(`{"plural":{}}`)})

	plan := planEntry(e, []string{"de", "fr", "it"}, "en", true)

	want := []string{"de", "fr"}
	if len(plan.languages) != len(want) || plan.languages[0] != "de" || plan.languages[1] != "fr" {
		t.Errorf("work set = %v, want %v", plan.languages, want)
	}
	if len(plan.unsupported) != 1 || plan.unsupported[0] != "it" {
		t.Errorf("unsupported = %v, want [it]", plan.unsupported)
	}
}

func TestPlanEntryRetriesErrorState(t *testing.T) {
	e := &xcstrings.Entry{Key: "Hello"}
	e.SetUnit("de", &xcstrings.Localization{StringUnit: &xcstrings.StringUnit{State: xcstrings.StateError}})

	plan := planEntry(e, []string{"de"}, "en", false)
	if len(plan.languages) != 1 || plan.languages[0] != "de" {
		t.Errorf("error-state unit not retried: work set = %v", plan.languages)
	}
}

func TestPlanEntrySourceTextFromUnitOrKey(t *testing.T) {
	e := &xcstrings.Entry{Key: "greeting.hello"}
	plan := planEntry(e, []string{"de"}, "en", false)
	if plan.sourceText != "greeting.hello" {
		t.Errorf("sourceText = %q, want key fallback", plan.sourceText)
	}

	e.SetUnit("en", translatedUnit("Hello!"))
	plan = planEntry(e, []string{"de"}, "en", false)
	if plan.sourceText != "Hello!" {
		t.Errorf("sourceText = %q, want explicit source unit", plan.sourceText)
	}
}

// ---------------------------------------------------------------------------
// needsTranslation
// ---------------------------------------------------------------------------

func TestNeedsTranslation(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Hello", true},
		{"", false},
		{"   ", false},
		{"\t\n", false},
		{"+++", false},
		{"42", true},
		{" $€ ", false},
		{"a", true},
	}
	for _, tc := range tests {
		if got := needsTranslation(tc.text); got != tc.want {
			t.Errorf("needsTranslation(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Prompt helpers
// ---------------------------------------------------------------------------

func TestLanguageName(t *testing.T) {
	if got := languageName("de"); got != "German" {
		t.Errorf("languageName(de) = %q, want German", got)
	}
	if got := languageName("zz!!"); got != "zz!!" {
		t.Errorf("languageName(invalid) = %q, want passthrough", got)
	}
}

func TestBuildPromptDefault(t *testing.T) {
	p := buildPrompt("", "Hello", "de", "start screen")
	for _, want := range []string{"German", "(de)", "Hello", "start screen"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildPromptTemplate(t *testing.T) {
	p := buildPrompt("To {{targetLang}}: {{text}} [{{context}}]", "Hi", "fr", "ctx")
	if p != "To French: Hi [ctx]" {
		t.Errorf("templated prompt = %q", p)
	}
}

func TestCombineContext(t *testing.T) {
	if got := combineContext("", ""); got != "" {
		t.Errorf("empty+empty = %q", got)
	}
	if got := combineContext("comment", ""); got != "comment" {
		t.Errorf("comment only = %q", got)
	}
	if got := combineContext("", "global"); got != "global" {
		t.Errorf("global only = %q", got)
	}
	if got := combineContext("comment", "global"); !strings.Contains(got, "comment") || !strings.Contains(got, "global") {
		t.Errorf("combined = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Orchestrator: end-to-end scenario
// ---------------------------------------------------------------------------

func TestRunMixedSuccessAndFailure(t *testing.T) {
	c := xcstrings.New("en")
	c.Add(&xcstrings.Entry{Key: "Hello"})

	svc := &fakeService{fn: func(prompt, fallback string) (string, error) {
		if strings.Contains(prompt, "(de)") {
			return "Hallo", nil
		}
		return "", errors.New("service unavailable")
	}}

	err := Run(context.Background(), c, svc, Options{
		Languages:     []string{"de", "fr"},
		MaxConcurrent: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	e := c.Get("Hello")
	de := e.Unit("de")
	if de == nil || de.StringUnit.State != xcstrings.StateTranslated || de.StringUnit.Value != "Hallo" {
		t.Errorf("de unit = %+v, want translated Hallo", de)
	}
	fr := e.Unit("fr")
	if fr == nil || fr.StringUnit.State != xcstrings.StateError || fr.StringUnit.Value != "" {
		t.Errorf("fr unit = %+v, want error state with empty value", fr)
	}
}

func TestRunSkipsServiceForWhitespaceOnlySource(t *testing.T) {
	c := xcstrings.New("en")
	e := &xcstrings.Entry{Key: "spacer"}
	e.SetUnit("en", translatedUnit("   "))
	c.Add(e)

	svc := &fakeService{fn: func(prompt, fallback string) (string, error) {
		return "should not be called", nil
	}}

	if err := Run(context.Background(), c, svc, Options{Languages: []string{"de"}, MaxConcurrent: 1}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if svc.callCount() != 0 {
		t.Errorf("service invoked %d times for whitespace-only text", svc.callCount())
	}
	de := e.Unit("de")
	if de == nil || de.StringUnit.State != xcstrings.StateTranslated || de.StringUnit.Value != "   " {
		t.Errorf("de unit = %+v, want source text passed through", de)
	}
}

func TestRunMergeIsolation(t *testing.T) {
	c := xcstrings.New("en")
	a := &xcstrings.Entry{Key: "A"}
	b := &xcstrings.Entry{Key: "B"}
	b.SetUnit("de", translatedUnit("B-alt"))
	c.Add(a)
	c.Add(b)

	svc := &fakeService{fn: func(prompt, fallback string) (string, error) {
		return "neu", nil
	}}

	if err := Run(context.Background(), c, svc, Options{Languages: []string{"de"}, MaxConcurrent: 1}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// B was already translated: its unit must be untouched.
	if got := b.Unit("de").StringUnit.Value; got != "B-alt" {
		t.Errorf("entry B disturbed: de = %q", got)
	}
	if got := a.Unit("de").StringUnit.Value; got != "neu" {
		t.Errorf("entry A de = %q, want neu", got)
	}
}

func TestRunDoesNotTouchUnsupportedUnits(t *testing.T) {
	c := xcstrings.New("en")
	e := &xcstrings.Entry{Key: "%d files"}
	variations := []byte(`{"plural":{"one":{"stringUnit":{"state":"translated","value":"%d Datei"}}}}`)
	e.SetUnit("de", &xcstrings.Localization{Variations: variations})
	c.Add(e)

	var warnings int
	svc := &fakeService{fn: func(prompt, fallback string) (string, error) {
		return "x", nil
	}}

	err := Run(context.Background(), c, svc, Options{
		Languages:     []string{"de"},
		MaxConcurrent: 1,
		OnWarn:        func(string, ...any) { warnings++ },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if svc.callCount() != 0 {
		t.Errorf("service invoked for unsupported unit")
	}
	if warnings != 1 {
		t.Errorf("warnings = %d, want 1", warnings)
	}
	unit := e.Unit("de")
	if unit.StringUnit != nil || string(unit.Variations) != string(variations) {
		t.Errorf("unsupported unit rewritten: %+v", unit)
	}
}

// ---------------------------------------------------------------------------
// Orchestrator: concurrency bound
// ---------------------------------------------------------------------------

func TestRunRespectsConcurrencyBound(t *testing.T) {
	const limit = 2

	c := xcstrings.New("en")
	c.Add(&xcstrings.Entry{Key: "Hello world"})

	var inFlight, peak int64
	svc := &fakeService{fn: func(prompt, fallback string) (string, error) {
		n := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		return "ok", nil
	}}

	opts := Options{
		Languages:     []string{"de", "fr", "it", "es", "pt", "ja", "ko", "ru"},
		MaxConcurrent: limit,
	}
	if err := Run(context.Background(), c, svc, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := atomic.LoadInt64(&peak); got > limit {
		t.Errorf("peak concurrent service calls = %d, want <= %d", got, limit)
	}
	if svc.callCount() != len(opts.Languages) {
		t.Errorf("service calls = %d, want %d", svc.callCount(), len(opts.Languages))
	}
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func TestRunProgressDecadesFireOnceInOrder(t *testing.T) {
	c := xcstrings.New("en")
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		c.Add(&xcstrings.Entry{Key: key})
	}

	svc := &fakeService{fn: func(prompt, fallback string) (string, error) {
		return "t", nil
	}}

	var fired []int
	opts := Options{
		Languages:     []string{"de", "fr"},
		MaxConcurrent: 2,
		OnProgress:    func(p int) { fired = append(fired, p) },
	}
	if err := Run(context.Background(), c, svc, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if len(fired) != len(want) {
		t.Fatalf("progress notifications = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("progress notifications = %v, want %v", fired, want)
		}
	}
}

func TestNotifyProgressSkipHeavyCatalog(t *testing.T) {
	// A jump across several decades must still fire each threshold once.
	var fired []int
	last := notifyProgress(7, 10, 0, func(p int) { fired = append(fired, p) })
	if last != 70 {
		t.Errorf("lastDecade = %d, want 70", last)
	}
	want := []int{10, 20, 30, 40, 50, 60, 70}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}

	// No re-emission for an already-reported threshold.
	fired = nil
	last = notifyProgress(7, 10, 70, func(p int) { fired = append(fired, p) })
	if last != 70 || len(fired) != 0 {
		t.Errorf("re-emitted thresholds: %v (last %d)", fired, last)
	}
}

// ---------------------------------------------------------------------------
// Dry run
// ---------------------------------------------------------------------------

func TestRunDryRunCallsNothing(t *testing.T) {
	c := xcstrings.New("en")
	c.Add(&xcstrings.Entry{Key: "Hello"})

	svc := &fakeService{fn: func(prompt, fallback string) (string, error) {
		return "x", nil
	}}

	opts := Options{Languages: []string{"de"}, MaxConcurrent: 1, DryRun: true}
	if err := Run(context.Background(), c, svc, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.callCount() != 0 {
		t.Errorf("dry run invoked the service %d times", svc.callCount())
	}
	if c.Get("Hello").Unit("de") != nil {
		t.Error("dry run mutated the catalog")
	}
}
