package main

import "github.com/jward/scopegraph"

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIStats is the stats command's result.
type CLIStats struct {
	Scopes      map[string]int `json:"scopes"`
	Variables   int            `json:"variables"`
	Parameters  int            `json:"parameters"`
	MethodCalls int            `json:"method_calls"`
	Files       int            `json:"files"`
	Languages   map[string]int `json:"languages,omitempty"`
	StoredRows  int            `json:"stored_scopes"`
}

func statsToCLI(st *scopegraph.Stats) CLIStats {
	out := CLIStats{
		Scopes:      st.Scopes,
		Variables:   st.Variables,
		Parameters:  st.Parameters,
		MethodCalls: st.MethodCalls,
		Files:       st.Files,
	}
	if st.Stored != nil {
		out.Languages = st.Stored.Languages
		out.StoredRows = st.Stored.Scopes
	}
	return out
}

// listResult wraps a slice result with its count.
func listResult[T any](command string, items []T) CLIResult {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return CLIResult{Command: command, Results: items, TotalCount: &n}
}
