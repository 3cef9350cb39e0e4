package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/jward/scopegraph"
)

// formatLocation renders a location as "file:line:col", or "-" when unknown.
func formatLocation(loc scopegraph.Location) string {
	if loc.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.StartLine, loc.StartCol)
}

func primaryLocation(locs []scopegraph.Location) string {
	if len(locs) == 0 {
		return "-"
	}
	return formatLocation(locs[0])
}

// formatScopesText formats scope results as aligned columns.
func formatScopesText(w io.Writer, scopes []scopegraph.ScopeInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLANGUAGE\tLOCATION")
	for _, s := range scopes {
		name := s.FullName
		if s.Builtin {
			name += " (builtin)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, s.Kind, s.Language, primaryLocation(s.Locations))
	}
	tw.Flush()
}

// formatVariablesText formats variable results as aligned columns.
func formatVariablesText(w io.Writer, vars []scopegraph.VariableInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tRESOLVED\tSCOPE\tLOCATION")
	for _, v := range vars {
		resolved := v.TypeFullName
		if resolved == "" {
			resolved = "-"
		}
		name := v.Name
		if v.Parameter {
			name += " (param)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, v.Type, resolved, v.Scope, formatLocation(v.Location))
	}
	tw.Flush()
}

// formatCallsText formats call results as aligned columns.
func formatCallsText(w io.Writer, calls []scopegraph.CallInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tCALL\tTARGETS\tLOCATION")
	for _, c := range calls {
		call := c.Name
		if c.Receiver != "" {
			call = c.Receiver + "." + call
		}
		call = fmt.Sprintf("%s/%d", call, c.Arguments)
		if c.Constructor {
			call = "new " + call
		}
		targets := "-"
		if len(c.Targets) > 0 {
			targets = strings.Join(c.Targets, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Caller, call, targets, formatLocation(c.Location))
	}
	tw.Flush()
}

// formatUnresolvedText formats unresolved uses as aligned columns.
func formatUnresolvedText(w io.Writer, uses []scopegraph.UnresolvedUse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tSCOPE\tLOCATION")
	for _, u := range uses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Kind, u.Name, u.Scope, formatLocation(u.Location))
	}
	tw.Flush()
}

// formatTreeText prints each tree indented by depth, variables under their
// scope.
func formatTreeText(w io.Writer, trees []*scopegraph.TreeNode) {
	var walk func(n *scopegraph.TreeNode, depth int)
	walk = func(n *scopegraph.TreeNode, depth int) {
		indent := strings.Repeat("  ", depth)
		name := n.Name
		if name == "" {
			name = "(global)"
		}
		fmt.Fprintf(w, "%s%s %s\n", indent, n.Kind, name)
		for _, v := range n.Variables {
			kind := "var"
			if v.Parameter {
				kind = "param"
			}
			fmt.Fprintf(w, "%s  %s %s %s\n", indent, kind, v.Name, v.Type)
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, t := range trees {
		walk(t, 0)
	}
}

// formatStatsText formats CLIStats as readable text.
func formatStatsText(w io.Writer, st CLIStats) {
	fmt.Fprintln(w, "Scope Graph")
	fmt.Fprintln(w, "===========")
	fmt.Fprintf(w, "Files: %d\n", st.Files)
	fmt.Fprintf(w, "Variables: %d\n", st.Variables)
	fmt.Fprintf(w, "Parameters: %d\n", st.Parameters)
	fmt.Fprintf(w, "Method calls: %d\n", st.MethodCalls)
	fmt.Fprintln(w)

	printCounts(w, "Scopes:", st.Scopes)
	printCounts(w, "Languages:", st.Languages)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
	fmt.Fprintln(w)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	if result.TotalCount != nil && *result.TotalCount == 0 {
		fmt.Fprintln(w, "no results")
		return nil
	}

	switch v := result.Results.(type) {
	case []scopegraph.ScopeInfo:
		formatScopesText(w, v)
	case []scopegraph.VariableInfo:
		formatVariablesText(w, v)
	case []scopegraph.CallInfo:
		formatCallsText(w, v)
	case []scopegraph.UnresolvedUse:
		formatUnresolvedText(w, v)
	case []*scopegraph.TreeNode:
		formatTreeText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case nil:
		fmt.Fprintln(w, "no results")
	default:
		// Script results are arbitrary values.
		fmt.Fprintf(w, "%v\n", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
