package store

import "time"

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Stats summarises the database contents.
type Stats struct {
	Files       int
	Scopes      int
	Variables   int
	MethodCalls int
	Aliases     int
	Languages   map[string]int
}
