package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewFile describes content read from path, ready to be saved.
func NewFile(path, language string, content []byte) (*File, error) {
	hash, err := HashContent(content)
	if err != nil {
		return nil, err
	}
	return &File{
		Path:        path,
		Language:    language,
		Hash:        hash,
		LineCount:   countLines(content),
		LastIndexed: time.Now().UTC().Truncate(time.Second),
	}, nil
}

const fileCols = "id, path, language, hash, line_count, last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var hash sql.NullString
	var lines sql.NullInt64
	var indexed sql.NullTime
	if err := scanner.Scan(&f.ID, &f.Path, &f.Language, &hash, &lines, &indexed); err != nil {
		return nil, err
	}
	f.Hash = hash.String
	f.LineCount = int(lines.Int64)
	f.LastIndexed = indexed.Time
	return f, nil
}

// FileByPath returns the file stored under path, or nil when there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every stored file ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	return s.queryFiles("SELECT "+fileCols+" FROM files WHERE language = ? ORDER BY path", language)
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes path and everything saved with it. Deleting an unknown
// path is not an error; the result reports whether anything was removed.
func (s *Store) DeleteFile(path string) (bool, error) {
	f, err := s.FileByPath(path)
	if err != nil || f == nil {
		return false, err
	}
	if err := s.DeleteFileData(f.ID); err != nil {
		return false, err
	}
	return true, nil
}

// --- Metadata ---

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var v sql.NullString
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return v.String, nil
}

func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// Stats counts rows across the schema.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{Languages: make(map[string]int)}
	for _, c := range []struct {
		table string
		dst   *int
	}{
		{"files", &st.Files},
		{"scopes", &st.Scopes},
		{"variables", &st.Variables},
		{"method_calls", &st.MethodCalls},
		{"aliases", &st.Aliases},
	} {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	rows, err := s.db.Query("SELECT language, COUNT(*) FROM files GROUP BY language")
	if err != nil {
		return nil, fmt.Errorf("count languages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("scan language count: %w", err)
		}
		st.Languages[lang] = n
	}
	return st, rows.Err()
}
