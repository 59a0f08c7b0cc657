package synctx

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/notesync/core/internal/sqlkit"
)

// fakeStore is an in-memory stand-in for the MySQL schema synctx writes
// against. It is not a SQL engine: it dispatches on the literal query
// text synctx issues (which this package owns) rather than parsing
// arbitrary SQL. This lets scenarios_test.go and friends exercise the
// real push/pull/partition logic without a live database.
type fakeStore struct {
	workspaces       []map[string]any
	notes            []map[string]any
	folders          []map[string]any
	tags             []map[string]any
	snapshots        []map[string]any
	noteTagRelations []map[string]any
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) table(name string) *[]map[string]any {
	switch name {
	case "workspaces":
		return &s.workspaces
	case "notes":
		return &s.notes
	case "folders":
		return &s.folders
	case "tags":
		return &s.tags
	case "note_snapshots":
		return &s.snapshots
	case "note_tag_relations":
		return &s.noteTagRelations
	}
	return nil
}

func tableOf(query string) string {
	for _, t := range []string{"workspaces", "notes", "folders", "tags", "note_snapshots", "note_tag_relations"} {
		if strings.Contains(query, " "+t+" ") || strings.HasSuffix(strings.TrimSpace(query), t) ||
			strings.Contains(query, "INTO "+t) || strings.Contains(query, "FROM "+t) {
			return t
		}
	}
	return ""
}

// fakeDB adapts fakeStore to sqlkit.DB. BeginTx returns the same store
// wrapped as a Tx; Commit/Rollback are no-ops since the fake has no
// isolation to undo (tests are not run against concurrent mutation).
type fakeDB struct{ store *fakeStore }

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return f.store.exec(query, args)
}
func (f *fakeDB) QueryRowContext(ctx context.Context, query string, args ...any) sqlkit.RowScanner {
	return f.store.queryRow(query, args)
}
func (f *fakeDB) QueryContext(ctx context.Context, query string, args ...any) (sqlkit.RowsScanner, error) {
	return f.store.queryRows(query, args), nil
}
func (f *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlkit.Tx, error) {
	return &fakeTx{fakeDB: f}, nil
}

type fakeTx struct{ *fakeDB }

func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

// fakeResult implements sql.Result.
type fakeResult struct{ rowsAffected int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// fakeRow implements sqlkit.RowScanner over a fixed column->value map, or
// carries sql.ErrNoRows when nothing matched.
type fakeRow struct {
	cols []string
	row  map[string]any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.cols) {
		return errors.New("fakeRow: column count mismatch")
	}
	for i, col := range r.cols {
		if err := assign(dest[i], r.row[col]); err != nil {
			return err
		}
	}
	return nil
}

// fakeRows implements sqlkit.RowsScanner over a list of rows projected to
// a fixed column list.
type fakeRows struct {
	cols []string
	rows []map[string]any
	i    int
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	for i, col := range r.cols {
		if err := assign(dest[i], row[col]); err != nil {
			return err
		}
	}
	return nil
}
func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

func assign(dest any, val any) error {
	switch d := dest.(type) {
	case *string:
		*d = asString(val)
	case **string:
		*d = asStringPtr(val)
	case *int:
		*d = int(asInt64(val))
	case *int64:
		*d = asInt64(val)
	case **int64:
		*d = asInt64Ptr(val)
	case *bool:
		*d = asBool(val)
	default:
		return errors.New("fakeRow: unsupported scan dest type")
	}
	return nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if p, ok := v.(*string); ok && p != nil {
		return *p
	}
	return ""
}

func asStringPtr(v any) *string {
	if v == nil {
		return nil
	}
	switch p := v.(type) {
	case *string:
		return p
	case string:
		return &p
	}
	return nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case *int64:
		if n != nil {
			return *n
		}
	}
	return 0
}

func asInt64Ptr(v any) *int64 {
	if v == nil {
		return nil
	}
	switch n := v.(type) {
	case *int64:
		return n
	case int64:
		return &n
	}
	return nil
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func (s *fakeStore) exec(query string, args []any) (sql.Result, error) {
	t := tableOf(query)
	rows := s.table(t)

	switch {
	case strings.Contains(query, "DELETE FROM note_snapshots WHERE note_id"):
		noteID, userID := args[0].(string), args[1].(string)
		inStart := strings.Index(query, "IN (")
		inEnd := strings.Index(query[inStart:], ")")
		numIDs := strings.Count(query[inStart:inStart+inEnd], "?")
		ids := make([]string, numIDs)
		for i := 0; i < numIDs; i++ {
			ids[i] = args[2+i].(string)
		}
		var ws *string
		if strings.Contains(query, "AND workspace_id = ?") {
			ws = asStringPtrArg(args[2+numIDs])
		}
		idSet := map[string]bool{}
		for _, id := range ids {
			idSet[id] = true
		}
		kept := (*rows)[:0]
		for _, r := range *rows {
			if r["note_id"] == noteID && r["user_id"] == userID && sameWS(r["workspace_id"], ws) && idSet[r["id"].(string)] {
				continue
			}
			kept = append(kept, r)
		}
		*rows = kept
		return fakeResult{}, nil

	case strings.Contains(query, "DELETE FROM note_snapshots WHERE id"):
		id := args[0].(string)
		kept := (*rows)[:0]
		for _, r := range *rows {
			if r["id"] != id {
				kept = append(kept, r)
			}
		}
		*rows = kept
		return fakeResult{}, nil

	case strings.Contains(query, "ON DUPLICATE KEY UPDATE"):
		id := args[0].(string)
		for i, r := range *rows {
			if r["id"] == id {
				(*rows)[i] = rowFor(t, args)
				return fakeResult{rowsAffected: 1}, nil
			}
		}
		*rows = append(*rows, rowFor(t, args))
		return fakeResult{rowsAffected: 1}, nil

	case strings.Contains(query, "INSERT IGNORE INTO note_tag_relations"):
		noteID, tagID := args[0].(string), args[1].(string)
		for _, r := range *rows {
			if r["note_id"] == noteID && r["tag_id"] == tagID {
				return fakeResult{rowsAffected: 0}, nil
			}
		}
		*rows = append(*rows, rowFor(t, args))
		return fakeResult{rowsAffected: 1}, nil

	case strings.Contains(query, "INSERT INTO notes"):
		// conflict-copy insert, no ON DUPLICATE
		*rows = append(*rows, rowFor(t, args))
		return fakeResult{rowsAffected: 1}, nil
	}

	return nil, errors.New("fakeStore: unhandled exec: " + query)
}

func asStringPtrArg(v any) *string {
	if v == nil {
		return nil
	}
	switch p := v.(type) {
	case *string:
		return p
	case string:
		return &p
	}
	return nil
}

func sameWS(have any, want *string) bool {
	switch h := have.(type) {
	case nil:
		return want == nil
	case *string:
		if h == nil {
			return want == nil
		}
		return want != nil && *h == *want
	case string:
		return want != nil && h == *want
	}
	return false
}

func rowFor(table string, args []any) map[string]any {
	var cols []string
	switch table {
	case "workspaces":
		cols = []string{"id", "user_id", "name", "description", "icon", "color", "is_default", "sort_order",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "notes":
		cols = []string{"id", "user_id", "workspace_id", "title", "content", "excerpt", "markdown_cache", "folder_id",
			"is_favorite", "is_pinned", "author", "word_count", "read_time_minutes",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "folders":
		cols = []string{"id", "user_id", "workspace_id", "name", "parent_id", "icon", "color", "sort_order",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "tags":
		cols = []string{"id", "user_id", "workspace_id", "name", "color",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "note_snapshots":
		cols = []string{"id", "user_id", "workspace_id", "note_id", "title", "content", "snapshot_name",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "note_tag_relations":
		cols = []string{"note_id", "tag_id", "user_id", "workspace_id", "is_deleted", "deleted_at", "created_at", "updated_at"}
	}
	row := make(map[string]any, len(cols))
	for i, c := range cols {
		if i < len(args) {
			row[c] = args[i]
		}
	}
	return row
}

func (s *fakeStore) queryRow(query string, args []any) sqlkit.RowScanner {
	t := tableOf(query)
	rows := s.table(t)

	switch {
	case strings.Contains(query, "SELECT is_deleted FROM workspaces WHERE id"):
		id, userID := args[0].(string), args[1].(string)
		for _, r := range *rows {
			if r["id"] == id && r["user_id"] == userID {
				return fakeRow{cols: []string{"is_deleted"}, row: r}
			}
		}
		return fakeRow{err: sql.ErrNoRows}

	case strings.Contains(query, "is_default = TRUE"):
		userID := args[0].(string)
		for _, r := range *rows {
			if r["user_id"] == userID && asBool(r["is_default"]) && !asBool(r["is_deleted"]) {
				return fakeRow{cols: []string{"id"}, row: r}
			}
		}
		return fakeRow{err: sql.ErrNoRows}

	case strings.Contains(query, "SELECT server_ver FROM"):
		id, userID := args[0].(string), args[1].(string)
		var ws *string
		if len(args) > 2 {
			ws = asStringPtrArg(args[2])
		}
		scoped := strings.Contains(query, "workspace_id")
		for _, r := range *rows {
			if r["id"] != id || r["user_id"] != userID {
				continue
			}
			if scoped && !sameWS(r["workspace_id"], ws) {
				continue
			}
			return fakeRow{cols: []string{"server_ver"}, row: r}
		}
		return fakeRow{err: sql.ErrNoRows}

	case strings.Contains(query, "SELECT title FROM notes"):
		id, userID := args[0].(string), args[1].(string)
		var ws *string
		if len(args) > 2 {
			ws = asStringPtrArg(args[2])
		}
		scoped := strings.Contains(query, "workspace_id")
		for _, r := range *rows {
			if r["id"] != id || r["user_id"] != userID {
				continue
			}
			if scoped && !sameWS(r["workspace_id"], ws) {
				continue
			}
			return fakeRow{cols: []string{"title"}, row: r}
		}
		return fakeRow{err: sql.ErrNoRows}

	case strings.Contains(query, "SELECT 1 FROM folders"):
		id, userID := args[0].(string), args[1].(string)
		var ws *string
		if len(args) > 2 {
			ws = asStringPtrArg(args[2])
		}
		for _, r := range *rows {
			if r["id"] == id && r["user_id"] == userID && sameWS(r["workspace_id"], ws) {
				return fakeRow{cols: []string{"1"}, row: map[string]any{"1": int64(1)}}
			}
		}
		return fakeRow{err: sql.ErrNoRows}

	case strings.Contains(query, "SELECT COUNT(*) FROM note_snapshots"):
		noteID, userID := args[0].(string), args[1].(string)
		var ws *string
		if len(args) > 2 {
			ws = asStringPtrArg(args[2])
		}
		n := int64(0)
		for _, r := range *rows {
			if r["note_id"] == noteID && r["user_id"] == userID && sameWS(r["workspace_id"], ws) {
				n++
			}
		}
		return fakeRow{cols: []string{"count"}, row: map[string]any{"count": n}}
	}

	return fakeRow{err: errors.New("fakeStore: unhandled query row: " + query)}
}

func (s *fakeStore) queryRows(query string, args []any) sqlkit.RowsScanner {
	t := tableOf(query)
	rows := s.table(t)

	if strings.Contains(query, "ORDER BY created_at ASC LIMIT") {
		noteID, userID := args[0].(string), args[1].(string)
		var ws *string
		limit := 0
		if strings.Contains(query, "workspace_id = ?") {
			ws = asStringPtrArg(args[2])
			limit = int(asInt64(args[3]))
		} else {
			limit = int(asInt64(args[2]))
		}
		var matched []map[string]any
		for _, r := range *rows {
			if r["note_id"] == noteID && r["user_id"] == userID && sameWS(r["workspace_id"], ws) {
				matched = append(matched, r)
			}
		}
		sort.Slice(matched, func(i, j int) bool { return asInt64(matched[i]["created_at"]) < asInt64(matched[j]["created_at"]) })
		if len(matched) > limit {
			matched = matched[:limit]
		}
		return &fakeRows{cols: []string{"id"}, rows: matched}
	}

	if t == "workspaces" {
		userID := args[0].(string)
		var id *string
		cutoff := asInt64(args[len(args)-1])
		if len(args) == 3 {
			id = asStringPtrArg(args[1])
		}
		var matched []map[string]any
		for _, r := range *rows {
			if r["user_id"] != userID {
				continue
			}
			if id != nil && r["id"] != *id {
				continue
			}
			if asInt64(r["updated_at"]) <= cutoff {
				continue
			}
			matched = append(matched, r)
		}
		return &fakeRows{cols: pullColumns("workspaces"), rows: matched}
	}

	// Pull-window queries: all share "WHERE user_id = ? [AND workspace_id = ?/IS NULL] AND <col> > ?"
	userID := args[0].(string)
	var ws *string
	var cutoff int64
	if strings.Contains(query, "workspace_id = ?") {
		ws = asStringPtrArg(args[1])
		cutoff = asInt64(args[2])
	} else {
		cutoff = asInt64(args[len(args)-1])
	}
	cmpCol := "updated_at"
	if strings.Contains(query, "created_at > ?") {
		cmpCol = "created_at"
	}

	var matched []map[string]any
	for _, r := range *rows {
		if r["user_id"] != userID {
			continue
		}
		if strings.Contains(query, "workspace_id IS NULL") && r["workspace_id"] != nil {
			continue
		}
		if ws != nil && !sameWS(r["workspace_id"], ws) {
			continue
		}
		if asInt64(r[cmpCol]) <= cutoff {
			continue
		}
		matched = append(matched, r)
	}

	cols := pullColumns(t)
	return &fakeRows{cols: cols, rows: matched}
}

func pullColumns(table string) []string {
	switch table {
	case "workspaces":
		return []string{"id", "user_id", "name", "description", "icon", "color", "is_default", "sort_order",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "notes":
		return []string{"id", "user_id", "workspace_id", "title", "content", "excerpt", "markdown_cache", "folder_id",
			"is_favorite", "is_pinned", "author", "word_count", "read_time_minutes",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "folders":
		return []string{"id", "user_id", "workspace_id", "name", "parent_id", "icon", "color", "sort_order",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "tags":
		return []string{"id", "user_id", "workspace_id", "name", "color",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "note_snapshots":
		return []string{"id", "user_id", "workspace_id", "note_id", "title", "content", "snapshot_name",
			"is_deleted", "deleted_at", "created_at", "updated_at", "server_ver", "device_id", "updated_by_device"}
	case "note_tag_relations":
		return []string{"note_id", "tag_id", "user_id", "workspace_id", "created_at", "updated_at", "is_deleted", "deleted_at"}
	}
	return nil
}
