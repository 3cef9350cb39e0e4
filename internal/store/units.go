package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jward/scopegraph/scope"
)

// SaveUnit replaces everything stored for f.Path with the contents of u.
// f.ID and the ID of every saved scope are set on success.
func (s *Store) SaveUnit(f *File, u *scope.Unit) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prior int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&prior)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("lookup file: %w", err)
	default:
		if err := deleteFileData(tx, prior); err != nil {
			return err
		}
	}

	res, err := tx.Exec(
		"INSERT INTO files (path, language, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if u != nil && u.Root != nil {
		for _, c := range u.Root.Children() {
			if err := insertScope(tx, f.ID, nil, c); err != nil {
				return err
			}
		}
		for _, a := range u.Aliases {
			if err := insertAlias(tx, f.ID, a); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// insertScope writes sc and its subtree in pre-order, so a parent row always
// has a smaller id than its children.
func insertScope(tx *sql.Tx, fileID int64, parentID *int64, sc *scope.Scope) error {
	res, err := tx.Exec(
		`INSERT INTO scopes (file_id, parent_scope_id, name, kind, language, accessibility, type_params)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fileID, parentID, sc.Name, sc.Kind.String(), sc.Language, sc.Accessibility, marshalStrings(sc.TypeParams),
	)
	if err != nil {
		return fmt.Errorf("insert scope %s: %w", sc.Name, err)
	}
	if sc.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	for _, loc := range sc.Locations() {
		if _, err := tx.Exec(
			"INSERT INTO scope_locations (scope_id, start_line, start_col, end_line, end_col) VALUES (?, ?, ?, ?, ?)",
			sc.ID, loc.StartLine, loc.StartCol, loc.EndLine, loc.EndCol,
		); err != nil {
			return fmt.Errorf("insert scope location: %w", err)
		}
	}
	for _, p := range sc.Parameters() {
		if err := insertVariable(tx, sc.ID, p, true); err != nil {
			return err
		}
	}
	for _, v := range sc.Variables() {
		if err := insertVariable(tx, sc.ID, v, false); err != nil {
			return err
		}
	}
	for _, c := range sc.MethodCalls() {
		l := c.Location
		if _, err := tx.Exec(
			`INSERT INTO method_calls (scope_id, name, arguments, calling_object, is_constructor,
				start_line, start_col, end_line, end_col)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, c.Name, c.Arguments, c.CallingObject, c.IsConstructor,
			l.StartLine, l.StartCol, l.EndLine, l.EndCol,
		); err != nil {
			return fmt.Errorf("insert method call %s: %w", c.Name, err)
		}
	}

	id := sc.ID
	for _, child := range sc.Children() {
		if err := insertScope(tx, fileID, &id, child); err != nil {
			return err
		}
	}
	return nil
}

func insertVariable(tx *sql.Tx, scopeID int64, v *scope.Variable, isParam bool) error {
	var typeExpr string
	if v.Type != nil {
		typeExpr = v.Type.String()
	}
	l := v.Location
	_, err := tx.Exec(
		`INSERT INTO variables (scope_id, name, type_expr, accessibility, is_parameter,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scopeID, v.Name, typeExpr, v.Accessibility, isParam,
		l.StartLine, l.StartCol, l.EndLine, l.EndCol,
	)
	if err != nil {
		return fmt.Errorf("insert variable %s: %w", v.Name, err)
	}
	return nil
}

func insertAlias(tx *sql.Tx, fileID int64, a *scope.Alias) error {
	l := a.Location
	_, err := tx.Exec(
		`INSERT INTO aliases (file_id, target, local_name, is_namespace, language,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, strings.Join(a.Target, "."), a.LocalName, a.Namespace, a.Language,
		l.StartLine, l.StartCol, l.EndLine, l.EndCol,
	)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

// LoadUnit rebuilds the unit saved for f. Uses are rebound to their scopes
// and offered the file's aliases, exactly as after a fresh parse.
func (s *Store) LoadUnit(f *File) (*scope.Unit, error) {
	u := &scope.Unit{Path: f.Path, Language: f.Language, Root: scope.NewGlobal()}

	byID, err := s.loadScopes(f, u.Root)
	if err != nil {
		return nil, err
	}
	if err := s.loadLocations(f, byID); err != nil {
		return nil, err
	}
	if err := s.loadVariables(f, byID); err != nil {
		return nil, err
	}
	if err := s.loadMethodCalls(f, byID); err != nil {
		return nil, err
	}
	if u.Aliases, err = s.loadAliases(f); err != nil {
		return nil, err
	}
	scope.ApplyAliases(u.Root, u.Aliases)
	return u, nil
}

// LoadAll loads the unit of every stored file.
func (s *Store) LoadAll() ([]*scope.Unit, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	units := make([]*scope.Unit, 0, len(files))
	for _, f := range files {
		u, err := s.LoadUnit(f)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f.Path, err)
		}
		units = append(units, u)
	}
	return units, nil
}

const scopesOfFile = "(SELECT id FROM scopes WHERE file_id = ?)"

func (s *Store) loadScopes(f *File, root *scope.Scope) (map[int64]*scope.Scope, error) {
	rows, err := s.db.Query(
		`SELECT id, parent_scope_id, name, kind, language, accessibility, type_params
		 FROM scopes WHERE file_id = ? ORDER BY id`, f.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*scope.Scope)
	for rows.Next() {
		var (
			id                          int64
			parentID                    sql.NullInt64
			name, kind                  string
			lang, access, typeParamJSON sql.NullString
		)
		if err := rows.Scan(&id, &parentID, &name, &kind, &lang, &access, &typeParamJSON); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		k, err := scope.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		sc := scope.New(name, k, lang.String)
		sc.ID = id
		sc.Accessibility = access.String
		sc.TypeParams = unmarshalStrings(typeParamJSON.String)

		parent := root
		if parentID.Valid {
			p, ok := byID[parentID.Int64]
			if !ok {
				return nil, fmt.Errorf("scope %d: parent %d not loaded", id, parentID.Int64)
			}
			parent = p
		}
		parent.AddChild(sc)
		byID[id] = sc
	}
	return byID, rows.Err()
}

func (s *Store) loadLocations(f *File, byID map[int64]*scope.Scope) error {
	rows, err := s.db.Query(
		`SELECT scope_id, start_line, start_col, end_line, end_col
		 FROM scope_locations WHERE scope_id IN `+scopesOfFile+` ORDER BY id`, f.ID,
	)
	if err != nil {
		return fmt.Errorf("query scope locations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var scopeID int64
		loc := scope.Location{File: f.Path}
		if err := rows.Scan(&scopeID, &loc.StartLine, &loc.StartCol, &loc.EndLine, &loc.EndCol); err != nil {
			return fmt.Errorf("scan scope location: %w", err)
		}
		if sc := byID[scopeID]; sc != nil {
			sc.AddLocation(loc)
		}
	}
	return rows.Err()
}

func (s *Store) loadVariables(f *File, byID map[int64]*scope.Scope) error {
	rows, err := s.db.Query(
		`SELECT scope_id, name, type_expr, accessibility, is_parameter, start_line, start_col, end_line, end_col
		 FROM variables WHERE scope_id IN `+scopesOfFile+` ORDER BY id`, f.ID,
	)
	if err != nil {
		return fmt.Errorf("query variables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			scopeID          int64
			typeExpr, access sql.NullString
			isParam          bool
		)
		v := &scope.Variable{Location: scope.Location{File: f.Path}}
		l := &v.Location
		if err := rows.Scan(&scopeID, &v.Name, &typeExpr, &access, &isParam,
			&l.StartLine, &l.StartCol, &l.EndLine, &l.EndCol); err != nil {
			return fmt.Errorf("scan variable: %w", err)
		}
		v.Accessibility = access.String
		if typeExpr.String != "" {
			t, err := scope.ParseTypeName(typeExpr.String, f.Language)
			if err != nil {
				// Stored expressions were rendered by TypeUse.String, so this
				// only happens for hand-edited rows.
				t = scope.NewTypeUse(typeExpr.String, f.Language)
			}
			t.Location = v.Location
			v.Type = t
		}
		sc := byID[scopeID]
		if sc == nil {
			continue
		}
		if isParam {
			sc.AddParameter(v)
		} else {
			sc.AddVariable(v)
		}
	}
	return rows.Err()
}

func (s *Store) loadMethodCalls(f *File, byID map[int64]*scope.Scope) error {
	rows, err := s.db.Query(
		`SELECT scope_id, name, arguments, calling_object, is_constructor, start_line, start_col, end_line, end_col
		 FROM method_calls WHERE scope_id IN `+scopesOfFile+` ORDER BY id`, f.ID,
	)
	if err != nil {
		return fmt.Errorf("query method calls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			scopeID  int64
			name     string
			args     int
			receiver sql.NullString
			ctor     bool
		)
		loc := scope.Location{File: f.Path}
		if err := rows.Scan(&scopeID, &name, &args, &receiver, &ctor,
			&loc.StartLine, &loc.StartCol, &loc.EndLine, &loc.EndCol); err != nil {
			return fmt.Errorf("scan method call: %w", err)
		}
		c := scope.NewMethodCall(name, args, f.Language)
		c.CallingObject = receiver.String
		c.IsConstructor = ctor
		c.Location = loc
		if sc := byID[scopeID]; sc != nil {
			sc.AddMethodCall(c)
		}
	}
	return rows.Err()
}

func (s *Store) loadAliases(f *File) ([]*scope.Alias, error) {
	rows, err := s.db.Query(
		`SELECT target, local_name, is_namespace, language, start_line, start_col, end_line, end_col
		 FROM aliases WHERE file_id = ? ORDER BY id`, f.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()
	var aliases []*scope.Alias
	for rows.Next() {
		var (
			target          string
			localName, lang sql.NullString
		)
		a := &scope.Alias{Location: scope.Location{File: f.Path}}
		l := &a.Location
		if err := rows.Scan(&target, &localName, &a.Namespace, &lang,
			&l.StartLine, &l.StartCol, &l.EndLine, &l.EndCol); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		if target != "" {
			a.Target = strings.Split(target, ".")
		}
		a.LocalName = localName.String
		a.Language = lang.String
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}
