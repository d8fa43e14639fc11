// Package translate fills in missing per-language translations in a String
// Catalog using an AI text-generation service, with a caller-imposed bound
// on the number of concurrently in-flight requests.
//
// The orchestrator walks catalog entries strictly in file order. For each
// entry it computes the set of languages that still need translation, fans
// out one gated unit of work per language, waits for all of them, and only
// then merges the results back into the catalog. Per-translation faults
// become error-state units; only catalog-level faults propagate.
package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/bourvill/AITranslate/gate"
	"github.com/bourvill/AITranslate/xcstrings"
)

// ---------------------------------------------------------------------------
// System prompt
// ---------------------------------------------------------------------------

// DefaultSystemPrompt is the system prompt sent with every translation
// request unless overridden.
const DefaultSystemPrompt = `You are a professional translator specializing in software and product localization. You are translating UI strings for a software application.

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in the target language, not word-for-word
- Use idiomatic expressions natural to the target language, not literal translations
- Use established IT terminology standard in the target language
- Maintain the original tone and intent, but express it naturally

TECHNICAL REQUIREMENTS:
- Return ONLY the translated text, no explanations or markdown code blocks.
- Preserve all format specifiers exactly as-is (%@, %d, %lld, %1$@, etc.).
- Preserve leading/trailing whitespace, newlines, and punctuation patterns.
- Keep brand names and proper nouns unchanged.`

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls the translation run.
type Options struct {
	// Languages is the full target-language list.
	Languages []string
	// Force re-translates units that already carry a completed translation.
	Force bool
	// Context is an optional application-wide description appended to each
	// entry's comment when building the prompt.
	Context string
	// PromptTemplate overrides the per-task prompt. The placeholders
	// {{targetLang}}, {{text}} and {{context}} are replaced.
	PromptTemplate string
	// MaxConcurrent bounds the number of in-flight translation requests
	// (values below 1 are clamped to 1).
	MaxConcurrent int
	// DryRun reports what would be translated without calling the service.
	DryRun bool

	// OnProgress is called once for each ten-percent threshold crossed,
	// in increasing order. The metric is processed / (entries × requested
	// languages): entries needing no work still advance it by the full
	// language count, so it is coarse but monotonic.
	OnProgress func(percent int)
	// OnLog emits informational messages.
	OnLog func(format string, args ...any)
	// OnWarn emits one warning per unsupported-format skip.
	OnWarn func(format string, args ...any)
	// OnError emits one error message per failed translation.
	OnError func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) warn(format string, args ...any) {
	if o.OnWarn != nil {
		o.OnWarn(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return 1
}

// ---------------------------------------------------------------------------
// Planner
// ---------------------------------------------------------------------------

// entryPlan is the per-entry work set: the source text to translate and the
// languages that need it this run.
type entryPlan struct {
	sourceText  string
	languages   []string
	unsupported []string
}

// planEntry decides which target languages actually need translation for
// one entry. Languages with a completed translation are skipped unless
// force is set; languages whose existing unit carries variation or
// substitution sub-structures are skipped permanently.
func planEntry(e *xcstrings.Entry, targets []string, sourceLang string, force bool) entryPlan {
	plan := entryPlan{sourceText: e.SourceText(sourceLang)}

	for _, lang := range targets {
		unit := e.Unit(lang)
		if unit != nil && !unit.IsSupportedFormat() {
			plan.unsupported = append(plan.unsupported, lang)
			continue
		}
		if unit.HasTranslation() && !force {
			continue
		}
		plan.languages = append(plan.languages, lang)
	}
	return plan
}

// needsTranslation reports whether the text is worth sending to the
// service: anything that is not purely whitespace, symbol, and control
// characters.
func needsTranslation(text string) bool {
	for _, r := range text {
		if !unicode.IsSpace(r) && !unicode.IsSymbol(r) && !unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// languageName returns the English display name for a language code,
// falling back to the code itself when it cannot be parsed.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// buildPrompt composes the per-task prompt from the source text, target
// language, and combined context (entry comment plus the optional global
// application context).
func buildPrompt(template, sourceText, lang, context string) string {
	if template != "" {
		p := strings.ReplaceAll(template, "{{targetLang}}", languageName(lang))
		p = strings.ReplaceAll(p, "{{text}}", sourceText)
		p = strings.ReplaceAll(p, "{{context}}", context)
		return p
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following text into %s (%s).\n", languageName(lang), lang)
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}
	b.WriteString("Return only the translated text.\n\n")
	b.WriteString(sourceText)
	return b.String()
}

// combineContext joins the entry comment and the global application
// context into a single composite context string.
func combineContext(comment, global string) string {
	switch {
	case comment == "":
		return global
	case global == "":
		return comment
	default:
		return comment + " — " + global
	}
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// langResult is one language's outcome for one entry. text is nil when the
// translation failed.
type langResult struct {
	lang string
	text *string
}

// Run drives catalog-wide translation to completion. Entries are processed
// in catalog order; within one entry, per-language requests run
// concurrently, bounded by opts.MaxConcurrent. The catalog is mutated only
// between fan-outs, by this goroutine, so it needs no internal locking.
//
// Per-translation faults are recorded as error-state units and reported
// via opts.OnError; only catalog-level faults (context cancellation)
// return an error.
func Run(ctx context.Context, catalog *xcstrings.Catalog, service Service, opts Options) error {
	if len(opts.Languages) == 0 {
		return fmt.Errorf("no target languages specified")
	}

	g := gate.New(opts.effectiveMaxConcurrent())
	total := catalog.Len() * len(opts.Languages)
	processed := 0
	lastDecade := 0

	for _, entry := range catalog.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}

		plan := planEntry(entry, opts.Languages, catalog.SourceLanguage, opts.Force)
		for _, lang := range plan.unsupported {
			opts.warn("Skipping %q for %s: unsupported format (variations)", entry.Key, lang)
		}

		if opts.DryRun {
			if len(plan.languages) > 0 {
				opts.log("Would translate %q into %s", entry.Key, strings.Join(plan.languages, ", "))
			}
		} else if len(plan.languages) > 0 {
			taskContext := combineContext(entry.Comment, opts.Context)

			results := make(chan langResult, len(plan.languages))
			var wg sync.WaitGroup
			for _, lang := range plan.languages {
				wg.Add(1)
				go func(lang string) {
					defer wg.Done()
					results <- langResult{
						lang: lang,
						text: translateOne(ctx, g, service, plan.sourceText, lang, taskContext, opts),
					}
				}(lang)
			}
			wg.Wait()
			close(results)

			// All units of work for this entry have completed; merge
			// from this goroutine only. Results arrive in completion
			// order, which is fine: each language is replaced
			// wholesale and independently.
			for r := range results {
				unit := &xcstrings.StringUnit{State: xcstrings.StateError, Value: ""}
				if r.text != nil {
					unit = &xcstrings.StringUnit{State: xcstrings.StateTranslated, Value: *r.text}
				}
				entry.SetUnit(r.lang, &xcstrings.Localization{StringUnit: unit})
			}
		}

		// The caller-visible total is entries × languages, so each entry
		// advances by the full language count even when most of it was
		// skipped.
		processed += len(opts.Languages)
		lastDecade = notifyProgress(processed, total, lastDecade, opts.OnProgress)
	}

	return nil
}

// translateOne performs one gated translation unit of work. The permit is
// acquired unconditionally and released unconditionally; every fault is
// converted into a nil result plus a diagnostic, never propagated.
func translateOne(ctx context.Context, g *gate.Gate, service Service, sourceText, lang, taskContext string, opts Options) *string {
	if err := g.Acquire(ctx); err != nil {
		opts.logError("Failed to translate %q to %s: %v", sourceText, lang, err)
		return nil
	}
	defer g.Release()

	// Text with nothing translatable passes through as its own
	// translation, without touching the network. The permit is still
	// acquired and released so the concurrency accounting stays uniform.
	if !needsTranslation(sourceText) {
		return &sourceText
	}

	prompt := buildPrompt(opts.PromptTemplate, sourceText, lang, taskContext)
	text, err := service.Translate(ctx, prompt, sourceText)
	if err != nil {
		opts.logError("Failed to translate %q to %s: %v", sourceText, lang, err)
		return nil
	}

	if opts.Verbose {
		opts.log("  %s: %q -> %q", lang, sourceText, text)
	}
	return &text
}

// notifyProgress emits one notification per ten-percent threshold crossed,
// in increasing order, and returns the highest threshold reached.
func notifyProgress(processed, total, lastDecade int, onProgress func(int)) int {
	if total == 0 {
		return lastDecade
	}
	percent := processed * 100 / total
	for decade := lastDecade + 10; decade <= percent; decade += 10 {
		if onProgress != nil {
			onProgress(decade)
		}
		lastDecade = decade
	}
	return lastDecade
}
