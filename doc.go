// Package scopegraph builds a scope graph of a multi-language codebase and
// answers name-resolution queries against it.
//
// The graph is a tree of scopes: the global scope, namespaces, types,
// methods and blocks, each carrying its variables, parameters and call
// sites. Uses of names (qualified scope names, type expressions, variables
// and method calls) resolve by walking the enclosing scopes outward and then
// the namespaces made visible by the file's imports.
//
// # Pipeline
//
//  1. Parse: each Java, C# or Go file is parsed with tree-sitter into a
//     scope tree of its own.
//  2. Store: the tree is written to SQLite, replacing the file's previous
//     contents, so later runs can rebuild the graph without reparsing.
//  3. Merge: the tree is merged into the live graph. Namespaces declared by
//     several files become one scope; types keep one scope per declaration.
//
// # Usage
//
//	e, err := scopegraph.New(".scopegraph/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.Load(ctx)
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	types, err := q.FindTypes("List<Widget>", "com.acme.Gadget")
//
// # Locking
//
// Every read and write of the graph happens under one exclusive lock owned
// by the Engine's repository. Queries wait for it according to
// WithLockTimeout and fail with ErrLockTimeout when they give up.
// Asynchronous queries additionally check their context before and after
// taking the lock and fail with ErrCancelled. Custom queries of up to five
// parameters are built with [NewQuery0] through [NewQuery5]; their bodies
// resolve names with the scope package.
//
// # Scripts
//
// [Engine.RunScript] runs a Risor script as a query body. Scripts see the
// graph through host functions such as find_scope, find_type, children and
// variables; see the internal/runtime package for the full set.
//
// # Watching
//
// [Engine.Watch] keeps the graph current while files change, combining file
// system notifications with periodic rescans of a last-modified archive.
package scopegraph
