package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mdrun/internal/config"
	"mdrun/internal/logging"
	"mdrun/internal/runner"
	"mdrun/internal/runtime"
	"mdrun/internal/watch"
	"mdrun/internal/watchdog"
)

var (
	// Global flags
	configPath string
	overwrite  bool
	watchMode  bool
	verbose    bool
	rootDir    string
	timeoutSec float64

	cfg config.Config
	wd  *watchdog.Watchdog

	// Logger
	logger *zap.Logger
)

var (
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mdrun [flags] PATH...",
	Short: "mdrun - run the Go code embedded in Markdown files",
	Long: `mdrun rewrites Markdown files by running the Go code embedded in them.

Fenced go blocks are executed top to bottom in one shared interpreter
namespace, and plain fenced blocks that follow them are rewritten with the
captured output. go-exception blocks render their expected failure,
go-legacy blocks run under an out-of-process runtime, go-syntax-error
blocks capture a parse diagnostic, and go-include: blocks substitute file
contents.

Without --overwrite the rewritten document streams to stdout; with it the
source file is replaced only after the whole run succeeds.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("root-dir") {
			cfg.RootDir = rootDir
		}
		if cmd.Flags().Changed("timeout") {
			cfg.TimeoutSeconds = timeoutSec
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		if err := logging.Initialize(".", logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Categories: cfg.Logging.Categories,
			Level:      cfg.Logging.Level,
		}); err != nil {
			return err
		}

		// Captured output is sensitive to the local timezone; pin it before
		// anything executes.
		if err := setTimezone(cfg.Timezone); err != nil {
			return err
		}

		wd = watchdog.New()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchMode {
			return runWatch(cmd.Context(), args)
		}
		return runBatch(cmd.Context(), args)
	},
}

// previewCmd runs a document without touching it and renders the result.
var previewCmd = &cobra.Command{
	Use:   "preview PATH",
	Short: "Run a document and render the rewritten Markdown to the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := processDocument(cmd.Context(), args[0], modeRender)
		if err != nil {
			return err
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			return err
		}
		out, err := renderer.Render(text)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

type emitMode int

const (
	modeStream emitMode = iota
	modeOverwrite
	modeRender
)

// processDocument runs one full pass over a single document. The execution
// namespace is created here and dies with the pass; nothing carries over to
// the next path.
func processDocument(ctx context.Context, path string, mode emitMode) (string, error) {
	logger.Debug("processing document", zap.String("path", path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	wd.Arm(cfg.Timeout(), path)
	defer wd.Disarm()

	exec, err := runtime.NewContext(runtime.Options{
		Seed:           cfg.Seed,
		DisarmWatchdog: wd.Disarm,
	})
	if err != nil {
		return "", err
	}

	r := runner.New(path, string(raw), exec, runner.Options{
		RootDir: cfg.RootDir,
		Legacy:  runtime.Subprocess{Argv: cfg.LegacyCommand},
		Syntax:  runtime.Subprocess{Argv: cfg.SyntaxCommand},
	})

	switch mode {
	case modeOverwrite:
		return "", runner.Overwrite(ctx, r)
	case modeRender:
		return runner.Render(ctx, r)
	default:
		return "", runner.Stream(ctx, r, os.Stdout)
	}
}

func runBatch(ctx context.Context, paths []string) error {
	mode := modeStream
	if overwrite {
		mode = modeOverwrite
	}
	for _, path := range paths {
		if _, err := processDocument(ctx, path, mode); err != nil {
			// First fatal failure stops the batch; remaining documents are
			// not processed.
			fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf("mdrun: %v", err)))
			return err
		}
		logger.Info("document processed", zap.String("path", path))
	}
	return nil
}

func runWatch(ctx context.Context, paths []string) error {
	if !overwrite {
		return fmt.Errorf("--watch requires --overwrite")
	}

	if err := runBatch(ctx, paths); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, okStyle.Render("mdrun: initial pass complete, watching for changes"))

	w, err := watch.New(paths, func(path string) {
		if _, err := processDocument(ctx, path, modeOverwrite); err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf("mdrun: %v", err)))
			return
		}
		fmt.Fprintln(os.Stderr, okStyle.Render("mdrun: rewrote "+path))
	})
	if err != nil {
		return err
	}

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// setTimezone pins the process timezone so local-time formatting inside
// snippets is deterministic.
func setTimezone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	os.Setenv("TZ", name)
	time.Local = loc
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root-dir", ".", "Root directory for resolving go-include: blocks")
	rootCmd.PersistentFlags().Float64Var(&timeoutSec, "timeout", 5, "Watchdog deadline in seconds per document")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite each file in place if its contents ran successfully")
	rootCmd.Flags().BoolVar(&watchMode, "watch", false, "Keep running and rewrite documents when they change (requires --overwrite)")

	rootCmd.AddCommand(previewCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
