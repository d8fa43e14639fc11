// aitranslate — fills in missing translations in an Apple String Catalog
// (.xcstrings) using AI translation providers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bourvill/AITranslate/config"
	"github.com/bourvill/AITranslate/i18n"
	"github.com/bourvill/AITranslate/settings"
	"github.com/bourvill/AITranslate/translate"
	"github.com/bourvill/AITranslate/xcstrings"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aitranslate",
		Short: "Fill in missing translations in an Apple String Catalog using AI",
		Long: `aitranslate — String Catalog (.xcstrings) AI translation.

Reads a .xcstrings catalog, finds the languages each entry is missing,
translates them with an AI provider under a configurable concurrency
bound, and writes the catalog back (with a .backup of the original).

Commands:
  translate   Translate missing entries in a catalog
  status      Show per-language translation statistics
  auth        Manage provider API keys

AI Providers:
  openai         OpenAI — API key required
  google         Google AI (Gemini) — API key required
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTranslateCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aitranslate version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		// Target selection
		langs string

		// Provider selection
		provider string
		apiKey   string
		model    string
		baseURL  string

		// Translation behavior
		force      bool
		appContext string
		prompt     string
		verbose    bool
		dryRun     bool
		skipBackup bool

		// Concurrency
		maxConcurrent int

		// Network
		timeout    time.Duration
		proxy      string
		maxRetries int
	)

	cmd := &cobra.Command{
		Use:   "translate <catalog.xcstrings>",
		Short: "Translate missing entries in a catalog",
		Long: `Translate missing entries in a .xcstrings catalog using AI.

Already-translated entries are skipped unless --force is given. Entries
with plural or device variations are never touched. Failed translations
are recorded with an "error" state and retried on the next run.

Examples:
  # Translate into German and French with OpenAI
  aitranslate translate Localizable.xcstrings --lang de,fr

  # Local model, eight requests in flight
  aitranslate translate Localizable.xcstrings --lang de --provider ollama --model llama3.2 --max-concurrent 8

  # Re-translate everything
  aitranslate translate Localizable.xcstrings --lang de,fr --force

  # Dry run (show what would be translated)
  aitranslate translate Localizable.xcstrings --lang de --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogPath := ""
			if len(args) > 0 {
				catalogPath = args[0]
			}
			return runTranslate(translateArgs{
				catalogPath: catalogPath,
				langs:       langs,
				provider:    provider, apiKey: apiKey, model: model, baseURL: baseURL,
				force: force, appContext: appContext, prompt: prompt,
				verbose: verbose, dryRun: dryRun, skipBackup: skipBackup,
				maxConcurrent: maxConcurrent,
				timeout:       timeout, proxy: proxy, maxRetries: maxRetries,
			})
		},
	}

	// Provider selection
	cmd.Flags().StringVar(&provider, "provider", "", "AI provider: openai, google, ollama, custom-openai (default openai)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default per provider)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or AITRANSLATE_API_KEY env var, or 'aitranslate auth set')")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL")

	// Target selection
	cmd.Flags().StringVarP(&langs, "lang", "l", "", "Target languages (comma-separated)")

	// Translation behavior
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-translate already translated entries")
	cmd.Flags().StringVar(&appContext, "context", "", "Application description passed to the translator with every request")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Custom prompt template ({{targetLang}}, {{text}}, {{context}} placeholders)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling the AI")
	cmd.Flags().BoolVar(&skipBackup, "skip-backup", false, "Do not write a .backup copy of the catalog")

	// Concurrency
	cmd.Flags().IntVarP(&maxConcurrent, "max-concurrent", "c", 0, "Maximum concurrent translation requests (default 3)")

	// Network
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Maximum retries on rate limit (429)")

	// Provider completion
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"openai\tOpenAI — API key required",
			"google\tGoogle AI (Gemini) — API key required",
			"ollama\tOllama local server",
			"custom-openai\tCustom OpenAI-compatible endpoint",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	// Model completion (provider-aware)
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		p, _ := cmd.Flags().GetString("provider")
		switch p {
		case "google":
			return []string{"gemini-2.5-flash", "gemini-2.0-flash-exp", "gemini-1.5-pro"}, cobra.ShellCompDirectiveNoFileComp
		case "ollama":
			return []string{"llama3.2", "qwen2.5", "mistral", "phi3"}, cobra.ShellCompDirectiveNoFileComp
		default:
			return []string{"gpt-4o-mini", "gpt-4o", "gpt-5-mini"}, cobra.ShellCompDirectiveNoFileComp
		}
	})

	return cmd
}

type translateArgs struct {
	catalogPath string
	langs       string

	provider, apiKey, model, baseURL string

	force      bool
	appContext string
	prompt     string
	verbose    bool
	dryRun     bool
	skipBackup bool

	maxConcurrent int

	timeout    time.Duration
	proxy      string
	maxRetries int
}

func runTranslate(a translateArgs) error {
	// Config file is looked up next to the catalog (or in the current
	// directory when the catalog comes from the config itself).
	cfgDir := "."
	if a.catalogPath != "" {
		cfgDir = filepath.Dir(a.catalogPath)
	}
	cfg, err := config.Load(cfgDir)
	if err != nil {
		return err
	}

	envCfg, err := config.ParseEnv()
	if err != nil {
		return err
	}

	catalogPath := a.catalogPath
	if catalogPath == "" && cfg != nil && cfg.Catalog != "" {
		catalogPath = cfg.Catalog
	}
	if catalogPath == "" {
		return fmt.Errorf("no catalog given: pass a .xcstrings path or set 'catalog' in %s", config.FileName)
	}

	targetLangs := parseLanguages(a.langs)
	if len(targetLangs) == 0 && cfg != nil {
		targetLangs = cfg.Languages
	}
	if len(targetLangs) == 0 {
		return fmt.Errorf("no target languages: use --lang de,fr or set 'languages' in %s", config.FileName)
	}

	prov, err := resolveProvider(a, cfg, envCfg)
	if err != nil {
		return err
	}

	appContext := a.appContext
	if appContext == "" && cfg != nil {
		appContext = cfg.Context
	}
	promptTemplate := a.prompt
	if promptTemplate == "" && cfg != nil {
		promptTemplate = cfg.Prompt
	}
	maxConcurrent := a.maxConcurrent
	if maxConcurrent == 0 && cfg != nil {
		maxConcurrent = cfg.Concurrency
	}
	if maxConcurrent == 0 {
		maxConcurrent = config.DefaultConcurrency
	}

	if !fileExists(catalogPath) {
		return fmt.Errorf("catalog not found: %s", catalogPath)
	}
	catalog, err := xcstrings.ParseFile(catalogPath)
	if err != nil {
		return err
	}

	logInfo(i18n.T("Translating catalog %s into %s"), catalogPath, strings.Join(targetLangs, ", "))
	logInfo("Provider: %s (model %s, %d concurrent)", prov.Name, prov.Model, maxConcurrent)

	if !a.dryRun && !a.skipBackup {
		if err := xcstrings.Backup(catalogPath); err != nil {
			return err
		}
		logInfo(i18n.T("Backup written to %s"), catalogPath+".backup")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := translate.NewHTTPService(prov, "", a.maxRetries, a.verbose)

	var failed atomic.Int64 // OnError fires from worker goroutines
	opts := translate.Options{
		Languages:      targetLangs,
		Force:          a.force,
		Context:        appContext,
		PromptTemplate: promptTemplate,
		MaxConcurrent:  maxConcurrent,
		DryRun:         a.dryRun,
		Verbose:        a.verbose,
		OnProgress: func(percent int) {
			logInfo("Progress: %d%%", percent)
		},
		OnLog:  logInfo,
		OnWarn: logWarning,
		OnError: func(format string, args ...any) {
			failed.Add(1)
			logError(format, args...)
		},
	}

	runErr := translate.Run(ctx, catalog, service, opts)

	if a.dryRun {
		return runErr
	}

	// Persist whatever completed, even when interrupted, so finished
	// translations survive the next run.
	if err := catalog.Save(catalogPath); err != nil {
		return err
	}
	logSuccess(i18n.T("Catalog saved to %s"), catalogPath)

	if n := int(failed.Load()); n > 0 {
		logWarning(i18n.N("%d translation failed", "%d translations failed", n), n)
	}
	return runErr
}

// resolveProvider merges provider settings: flags > environment >
// credentials store > config file > built-in defaults.
func resolveProvider(a translateArgs, cfg *config.File, envCfg config.Env) (translate.Provider, error) {
	id := a.provider
	if id == "" && cfg != nil && cfg.Provider.ID != "" {
		id = cfg.Provider.ID
	}
	if id == "" {
		id = translate.ProviderOpenAI
	}

	prov, ok := translate.DefaultProviders()[id]
	if !ok {
		return translate.Provider{}, fmt.Errorf("unknown provider %q (valid: openai, google, ollama, custom-openai)", id)
	}

	if cfg != nil {
		if cfg.Provider.Model != "" {
			prov.Model = cfg.Provider.Model
		}
		if cfg.Provider.BaseURL != "" {
			prov.BaseURL = cfg.Provider.BaseURL
		}
		if cfg.Provider.Proxy != "" {
			prov.Proxy = cfg.Provider.Proxy
		}
		if cfg.Provider.Timeout > 0 {
			prov.Timeout = time.Duration(cfg.Provider.Timeout)
		}
	}

	if envCfg.Model != "" {
		prov.Model = envCfg.Model
	}
	if envCfg.BaseURL != "" {
		prov.BaseURL = envCfg.BaseURL
	}
	if envCfg.Proxy != "" {
		prov.Proxy = envCfg.Proxy
	}
	if envCfg.Timeout > 0 {
		prov.Timeout = envCfg.Timeout
	}

	if a.model != "" {
		prov.Model = a.model
	}
	if a.baseURL != "" {
		prov.BaseURL = a.baseURL
	}
	if a.proxy != "" {
		prov.Proxy = a.proxy
	}
	if a.timeout > 0 {
		prov.Timeout = a.timeout
	}

	// API key: flag > env > store
	key := a.apiKey
	if key == "" {
		key = envCfg.APIKey
	}
	if key == "" {
		key = settings.GetAPIKey(id)
	}
	prov.APIKey = key

	if err := validateProvider(prov); err != nil {
		return translate.Provider{}, err
	}
	return prov, nil
}

// validateProvider checks the provider has what it needs to run.
func validateProvider(prov translate.Provider) error {
	switch prov.ID {
	case translate.ProviderOpenAI, translate.ProviderGoogle:
		if prov.APIKey == "" {
			return fmt.Errorf("provider %s requires an API key: use --api-key, AITRANSLATE_API_KEY, or 'aitranslate auth set %s'", prov.ID, prov.ID)
		}
	case translate.ProviderCustomOpenAI:
		if prov.BaseURL == "" {
			return fmt.Errorf("provider custom-openai requires --base-url")
		}
	}
	if prov.Model == "" {
		return fmt.Errorf("provider %s requires --model", prov.ID)
	}
	return nil
}

// parseLanguages splits a comma-separated language list, dropping blanks.
func parseLanguages(s string) []string {
	if s == "" {
		return nil
	}
	var langs []string
	for _, l := range strings.Split(s, ",") {
		l = strings.TrimSpace(l)
		if l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// ---------------------------------------------------------------------------
// status (read-only: per-language translation stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <catalog.xcstrings>",
		Short: "Show per-language translation statistics",
		Long: `Show per-language translation statistics for a catalog.

Counts, for every language present in the catalog, how many entries carry
a completed translation. Does not modify any files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(args[0])
		},
	}
}

func runStatus(path string) error {
	catalog, err := xcstrings.ParseFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%sCatalog%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  File:     %s\n", path)
	fmt.Fprintf(os.Stderr, "  Source:   %s\n", catalog.SourceLanguage)
	fmt.Fprintf(os.Stderr, "  Entries:  %d\n", catalog.Len())
	fmt.Fprintln(os.Stderr)

	stats := catalogStats(catalog)
	if len(stats) == 0 {
		logInfo(i18n.T("Nothing to translate"))
		return nil
	}

	width := langColumnWidth(stats)
	for _, st := range stats {
		fmt.Fprintf(os.Stderr, "  %-*s  %s  %d/%d\n",
			width, st.lang, progressBar(st.percent(), 20), st.translated, st.total)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// langStat is one language's translation tally.
type langStat struct {
	lang       string
	translated int
	errored    int
	total      int
}

func (s langStat) percent() int {
	if s.total == 0 {
		return 0
	}
	return s.translated * 100 / s.total
}

// catalogStats tallies completed translations per language, source
// language excluded, sorted by language code.
func catalogStats(catalog *xcstrings.Catalog) []langStat {
	byLang := make(map[string]*langStat)
	for _, e := range catalog.Entries() {
		for lang, unit := range e.Localizations {
			if lang == catalog.SourceLanguage {
				continue
			}
			st, ok := byLang[lang]
			if !ok {
				st = &langStat{lang: lang, total: catalog.Len()}
				byLang[lang] = st
			}
			if unit.HasTranslation() {
				st.translated++
			} else if unit != nil && unit.StringUnit != nil && unit.StringUnit.State == xcstrings.StateError {
				st.errored++
			}
		}
	}

	stats := make([]langStat, 0, len(byLang))
	for _, st := range byLang {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].lang < stats[j].lang })
	return stats
}

func langColumnWidth(stats []langStat) int {
	width := 0
	for _, st := range stats {
		if len(st.lang) > width {
			width = len(st.lang)
		}
	}
	return width
}

// progressBar renders a colored bar for a percentage, clamped to [0,100].
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 34:
		color = colorYellow
	}
	return fmt.Sprintf("%s%s%s %3d%%", color, bar, colorReset, percent)
}

// ---------------------------------------------------------------------------
// auth (manage provider API keys)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage API keys stored in the aitranslate settings directory
($XDG_DATA_HOME/aitranslate/auth.json, permissions 0600).`,
	}
	cmd.AddCommand(newAuthSetCmd(), newAuthShowCmd(), newAuthRemoveCmd())
	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "set <provider>",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("no key given: use --key")
			}
			if err := settings.SetAPIKey(args[0], key); err != nil {
				return err
			}
			logSuccess("API key stored for %s", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "The API key to store")
	return cmd
}

func newAuthShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List providers with a stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := settings.Providers()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				logInfo("No stored API keys")
				return nil
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newAuthRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.DeleteAPIKey(args[0]); err != nil {
				return err
			}
			logSuccess("API key removed for %s", args[0])
			return nil
		},
	}
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
