package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/scopegraph"
)

var (
	flagWithin   string
	flagDepth    int
	flagLanguage string
	flagArgs     []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the scope graph",
	Long: `Run queries against an indexed codebase. Scope names are dotted paths from
the global scope, such as com.acme.Widget.run. All line and column numbers are
0-based.`,
}

var scopeCmd = &cobra.Command{
	Use:   "scope <qualified-name>",
	Short: "Find namespaces and types by qualified name",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine("scope", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		found, err := e.Query().FindScopes(args[0])
		return listResult("scope", found), err
	}),
}

var typeCmd = &cobra.Command{
	Use:   "type <expr>",
	Short: "Resolve a type expression as written inside a scope",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine("type", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		found, err := e.Query().FindTypesAsync(ctx, args[0], flagWithin).Wait()
		return listResult("type", found), err
	}),
}

var variableCmd = &cobra.Command{
	Use:   "variable <name>",
	Short: "Resolve a variable, field or parameter name inside a scope",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine("variable", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		vars, err := e.Query().ResolveVariable(args[0], flagWithin)
		return listResult("variable", vars), err
	}),
}

var callsCmd = &cobra.Command{
	Use:   "calls <qualified-name>",
	Short: "Resolve the call sites inside a scope and its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine("calls", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		calls, err := e.Query().ResolveCalls(args[0])
		return listResult("calls", calls), err
	}),
}

var treeCmd = &cobra.Command{
	Use:   "tree [qualified-name]",
	Short: "Print the scope tree below a scope",
	Args:  cobra.MaximumNArgs(1),
	RunE: withEngine("tree", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		trees, err := e.Query().Tree(name, flagDepth)
		return listResult("tree", trees), err
	}),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count the contents of the scope graph",
	Args:  cobra.NoArgs,
	RunE: withEngine("stats", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		st, err := e.Query().Stats()
		if err != nil {
			return CLIResult{Command: "stats"}, err
		}
		return CLIResult{Command: "stats", Results: statsToCLI(st)}, nil
	}),
}

var unresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "List type references and calls that resolve to nothing",
	Args:  cobra.NoArgs,
	RunE: withEngine("unresolved", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		uses, err := e.Query().Unresolved(flagLanguage)
		return listResult("unresolved", uses), err
	}),
}

var scriptCmd = &cobra.Command{
	Use:   "script <path>",
	Short: "Run a Risor script against the scope graph",
	Long: `Runs a Risor script while holding the graph lock. A path naming a file on
disk is run as is; otherwise it is looked up among the embedded scripts, or
under --scripts-dir. Use --arg name=value to define script variables.`,
	Args: cobra.ExactArgs(1),
	RunE: withEngine("script", func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error) {
		extras, err := parseScriptArgs(flagArgs)
		if err != nil {
			return CLIResult{Command: "script"}, err
		}
		var result any
		if src, readErr := os.ReadFile(args[0]); readErr == nil {
			result, err = e.RunSource(ctx, string(src), extras)
		} else {
			result, err = e.RunScript(ctx, args[0], extras)
		}
		return CLIResult{Command: "script", Results: result}, err
	}),
}

func init() {
	typeCmd.Flags().StringVar(&flagWithin, "in", "", "scope the expression is read in (default: global)")
	variableCmd.Flags().StringVar(&flagWithin, "in", "", "scope the name is read in")
	_ = variableCmd.MarkFlagRequired("in")
	treeCmd.Flags().IntVar(&flagDepth, "depth", 1, "levels below the scope to include; -1 for all")
	unresolvedCmd.Flags().StringVar(&flagLanguage, "language", "", "only report uses in this language")
	scriptCmd.Flags().StringArrayVar(&flagArgs, "arg", nil, "script variable as name=value (repeatable)")

	queryCmd.AddCommand(scopeCmd)
	queryCmd.AddCommand(typeCmd)
	queryCmd.AddCommand(variableCmd)
	queryCmd.AddCommand(callsCmd)
	queryCmd.AddCommand(treeCmd)
	queryCmd.AddCommand(statsCmd)
	queryCmd.AddCommand(unresolvedCmd)
	queryCmd.AddCommand(scriptCmd)
}

// --- Helpers ---

type queryFunc func(ctx context.Context, e *scopegraph.Engine, args []string) (CLIResult, error)

// withEngine opens the database found from the working directory, loads the
// graph and runs fn, writing its result or error in the selected format.
func withEngine(command string, fn queryFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(cmd.Context())
		if err != nil {
			return outputError(command, err)
		}
		defer engine.Close()

		result, err := fn(cmd.Context(), engine, args)
		if err != nil {
			return outputError(command, err)
		}
		return outputResult(result)
	}
}

// openEngine opens the existing database and loads the graph from it.
func openEngine(ctx context.Context) (*scopegraph.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	env, err := loadEnv(cwd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(env.dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'scopegraph index' first)", env.dbPath)
	}
	engine, err := env.open()
	if err != nil {
		return nil, err
	}
	if err := engine.Load(ctx); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

// parseScriptArgs turns name=value pairs into script variables.
func parseScriptArgs(pairs []string) (map[string]any, error) {
	extras := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --arg %q: want name=value", p)
		}
		extras[strings.TrimSpace(name)] = value
	}
	return extras, nil
}

// describeError prefixes the failure kinds a caller may want to tell apart.
func describeError(err error) string {
	switch {
	case errors.Is(err, scopegraph.ErrLockTimeout):
		return "timed out waiting for the scope graph: " + err.Error()
	case errors.Is(err, scopegraph.ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled: " + err.Error()
	case errors.Is(err, errMisconfigured):
		return err.Error()
	case errors.Is(err, scopegraph.ErrNoRepository):
		return "misconfigured: " + err.Error()
	default:
		return err.Error()
	}
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	msg := describeError(err)
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   msg,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}
