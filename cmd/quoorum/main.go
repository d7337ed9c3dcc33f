package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arturoyo/Quoorum-sub007/internal/admission"
	"github.com/arturoyo/Quoorum-sub007/internal/analyzer"
	"github.com/arturoyo/Quoorum-sub007/internal/cache"
	"github.com/arturoyo/Quoorum-sub007/internal/config"
	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/expert"
	"github.com/arturoyo/Quoorum-sub007/internal/export"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
	"github.com/arturoyo/Quoorum-sub007/internal/ratelimit"
	"github.com/arturoyo/Quoorum-sub007/internal/session"
	"github.com/arturoyo/Quoorum-sub007/internal/storage"
	"github.com/arturoyo/Quoorum-sub007/internal/telemetry"
	"github.com/arturoyo/Quoorum-sub007/web/handlers"
)

var (
	dbPath    string
	cfgPath   string
	debug     bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quoorum",
	Short: "Expert panel deliberation engine",
	Long: `quoorum orchestrates deliberations between simulated expert agents.

Ask a decision question and a matched panel of experts debates it over
multiple rounds until they reach consensus or the round budget runs out.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: ~/.quoorum/quoorum.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.quoorum/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(expertsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(serveCmd)
}

func getStorage() (storage.Storage, error) {
	path := dbPath
	if path == "" {
		path = appConfig.Storage.Path
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

func buildManager(store storage.Storage) (*session.Manager, *provider.Registry, error) {
	registry := appConfig.CreateRegistry()

	expertRegistry, err := appConfig.CreateExpertRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load expert catalog: %w", err)
	}

	ctrl := admission.NewController(nil)
	appConfig.ApplyAdmissionLimits(ctrl)

	analyzerProvider, err := registry.Get(appConfig.Defaults.AnalyzerProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("analyzer provider unavailable: %w", err)
	}
	an := analyzer.New(analyzerProvider, appConfig.Defaults.AnalyzerModel)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	limiter.SetCaps(appConfig.RateLimits.Standard, appConfig.RateLimits.Premium)

	executor := session.NewExecutor(registry, ctrl, telemetry.LogSink{})
	manager := session.NewManager(an, expert.NewMatcher(expertRegistry), executor, limiter, cache.New(), store)
	return manager, registry, nil
}

// ============================================================================
// ASK COMMAND
// ============================================================================

var (
	roundsFlag    int
	thresholdFlag float64
	expertsFlag   int
	userFlag      string
	premiumFlag   bool
	contextFlag   string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run a deliberation on a decision question",
	Long: `Run a full deliberation and print the result.

Examples:
  quoorum ask "Should we migrate to Kubernetes?"
  quoorum ask "Open a Berlin office?" --rounds 3 --experts 4
  quoorum ask "Acquire our main competitor?" --context "We have $40M in reserve"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&roundsFlag, "rounds", "r", 0, "Maximum deliberation rounds")
	askCmd.Flags().Float64VarP(&thresholdFlag, "threshold", "t", 0, "Consensus threshold (0-1)")
	askCmd.Flags().IntVarP(&expertsFlag, "experts", "e", 0, "Maximum panel size")
	askCmd.Flags().StringVarP(&userFlag, "user", "u", "cli", "User id for rate limiting")
	askCmd.Flags().BoolVar(&premiumFlag, "premium", false, "Use premium rate limits")
	askCmd.Flags().StringVarP(&contextFlag, "context", "c", "", "Background context for the question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	store, err := getStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	manager, _, err := buildManager(store)
	if err != nil {
		return err
	}

	sess, cached, err := manager.CreateDebate(cmd.Context(), core.NewSessionConfig{
		Question:           question,
		Context:            contextFlag,
		ExpertCount:        expertsFlag,
		MaxRounds:          roundsFlag,
		ConsensusThreshold: thresholdFlag,
		UserID:             userFlag,
		Premium:            premiumFlag,
	})
	if err != nil {
		return err
	}

	if cached != nil {
		fmt.Println("(served from cache)")
		printResult(cached)
		return nil
	}

	fmt.Printf("Deliberating: %s\n", question)
	fmt.Printf("Session: %s\n\n", sess.ID)

	select {
	case <-sess.Done():
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	result, err := sess.Result()
	if err != nil {
		return fmt.Errorf("deliberation failed: %w", err)
	}

	printResult(result)
	return nil
}

func printResult(result *core.DebateResult) {
	fmt.Printf("Question: %s\n", result.Question)
	fmt.Printf("Outcome:  %s (consensus %.0f%%)\n\n", result.State, result.ConsensusScore*100)

	fmt.Println("Panel:")
	for _, match := range result.Panel {
		fmt.Printf("  - %s [%s] score %.0f\n", match.Expert.Name, match.Role, match.Score)
	}
	fmt.Println()

	for _, round := range result.Rounds {
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("Round %d", round.Round)
		if round.Quality != nil {
			fmt.Printf(" (quality %.0f)", round.Quality.OverallQuality)
		}
		fmt.Println()
		for _, op := range round.Opinions {
			fmt.Printf("\n[%s | %s | confidence %.0f%%]\n", op.ExpertName, op.Position, op.Confidence*100)
			fmt.Println(op.Opinion)
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Synthesis:")
	fmt.Println(result.Synthesis)
}

// ============================================================================
// LIST COMMAND
// ============================================================================

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored deliberations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.ListResults(cmd.Context(), 50)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No deliberations stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tQUESTION\tOUTCOME\tCONSENSUS\tCREATED")
		for _, r := range results {
			question := r.Question
			if len(question) > 50 {
				question = question[:47] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\n",
				shortID(r.SessionID), question, r.State, r.ConsensusScore*100,
				r.CreatedAt.Format("Jan 2 15:04"))
		}
		return w.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ============================================================================
// SHOW COMMAND
// ============================================================================

var showCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a stored deliberation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := store.GetResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

// ============================================================================
// EXPORT COMMAND
// ============================================================================

var (
	formatFlag string
	outputFlag string
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a deliberation to markdown, json, or pdf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := store.GetResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		exporter, err := export.GetExporter(export.Format(formatFlag))
		if err != nil {
			return err
		}

		path := outputFlag
		if path == "" {
			path = export.GenerateFilename(result, exporter.FileExtension())
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := exporter.Export(result, f); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&formatFlag, "format", "f", "markdown", "Export format (markdown, json, pdf)")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file path")
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		manager, registry, err := buildManager(store)
		if err != nil {
			return err
		}

		h := handlers.New(manager, registry, store, nil)

		port := portFlag
		if port == 0 {
			port = appConfig.Server.Port
		}
		addr := fmt.Sprintf(":%d", port)

		fmt.Printf("Listening on http://localhost%s\n", addr)
		return http.ListenAndServe(addr, h.Routes())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Server port (default: from config)")
}

// ============================================================================
// EXPERTS COMMAND
// ============================================================================

var expertsCmd = &cobra.Command{
	Use:   "experts",
	Short: "List the expert catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := appConfig.CreateExpertRegistry()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tEXPERTISE")
		for _, e := range registry.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.ID, e.Name, e.PreferredProvider, strings.Join(e.ExpertiseTags, ", "))
		}
		return w.Flush()
	},
}

// ============================================================================
// PROVIDERS COMMAND
// ============================================================================

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tENABLED\tREQ/MIN\tTOKENS/MIN\tREQ/DAY")
		for name, p := range appConfig.Providers {
			fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%d\n",
				name, p.Enabled, p.RequestsPerMinute, p.TokensPerMinute, p.RequestsPerDay)
		}
		return w.Flush()
	},
}
