package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/scopegraph"
	"github.com/jward/scopegraph/internal/config"
	"github.com/jward/scopegraph/scripts"
)

var (
	flagDB          string
	flagConfig      string
	flagFormat      string
	flagLockTimeout string
	flagScriptsDir  string
	flagVerbose     bool
)

// errMisconfigured wraps errors in the config file or flags.
var errMisconfigured = errors.New("misconfigured")

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "scopegraph",
	Short:         "Scope graph indexing and name resolution",
	Long:          "Scopegraph parses Java, C# and Go sources into a scope graph stored in SQLite, and resolves type, variable and call names against it.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run, so it prints help.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: index.db from the config, relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+config.DefaultFile+" in the repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLockTimeout, "lock-timeout", "", `how long queries wait for the graph lock, e.g. "2s" or "forever"`)
	rootCmd.PersistentFlags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from disk path instead of embedded")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(watchCmd)
}

var (
	flagForce     bool
	flagLanguages string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory into the scope graph database",
	Long:  "Parses every supported source file under path with tree-sitter and stores one scope tree per file in the SQLite database. Unchanged files are skipped and deleted files are removed.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. java,csharp)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	env, err := loadEnv(targetDir)
	if err != nil {
		return err
	}
	if flagLanguages != "" {
		env.cfg.Index.Languages = splitList(flagLanguages)
		if err := env.cfg.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errMisconfigured, err)
		}
	}

	if flagForce {
		if err := os.Remove(env.dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", env.dbPath)
	}

	engine, err := env.open()
	if err != nil {
		return err
	}
	defer engine.Close()

	indexErr := engine.IndexDirectory(cmd.Context(), targetDir)
	for path, perr := range engine.ParseErrors() {
		fmt.Fprintf(os.Stderr, "warning: %s:%d:%d: %s\n", path, perr.Line, perr.Column, perr.Message)
	}
	if indexErr != nil {
		return fmt.Errorf("indexing: %w", indexErr)
	}

	st, err := engine.Store().Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Indexed %s in %s (%d files, %d scopes)\n",
		targetDir, time.Since(start).Round(time.Millisecond), st.Files, st.Scopes)
	fmt.Fprintf(os.Stderr, "Database: %s\n", env.dbPath)
	return nil
}

// env is the resolved configuration of one command run.
type env struct {
	cfg      *config.Config
	repoRoot string
	dbPath   string
	timeout  time.Duration
	logger   *slog.Logger
}

// loadEnv finds the repo root above startDir, loads its config and applies
// the persistent flags on top.
func loadEnv(startDir string) (*env, error) {
	repoRoot := findRepoRoot(startDir)

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = filepath.Join(repoRoot, config.DefaultFile)
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMisconfigured, err)
	}
	if flagLockTimeout != "" {
		cfg.Query.LockTimeout = flagLockTimeout
	}
	timeout, err := cfg.Query.Timeout()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMisconfigured, err)
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return &env{
		cfg:      cfg,
		repoRoot: repoRoot,
		dbPath:   resolveDBPath(repoRoot, cfg.Index.DB),
		timeout:  timeout,
		logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}, nil
}

// open creates the Engine, making the database directory if needed.
func (e *env) open() (*scopegraph.Engine, error) {
	if err := os.MkdirAll(filepath.Dir(e.dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(e.dbPath), err)
	}

	opts := []scopegraph.Option{
		scopegraph.WithLanguages(e.cfg.Index.Languages...),
		scopegraph.WithWorkers(e.cfg.Index.Workers),
		scopegraph.WithParallel(!e.cfg.Index.Serial),
		scopegraph.WithLockTimeout(e.timeout),
		scopegraph.WithAsyncWorkers(e.cfg.Query.AsyncWorkers),
		scopegraph.WithLogger(e.logger),
	}
	// Script source: --scripts-dir overrides embedded FS.
	if flagScriptsDir != "" {
		opts = append(opts, scopegraph.WithScriptsDir(flagScriptsDir))
	} else {
		opts = append(opts, scopegraph.WithScriptsFS(scripts.FS))
	}

	engine, err := scopegraph.New(e.dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag, or else the
// configured one. Relative paths are taken from the repo root.
func resolveDBPath(repoRoot, configured string) string {
	p := configured
	if flagDB != "" {
		p = flagDB
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
