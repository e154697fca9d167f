package store

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// dialect renders statements and converts values for one SQL backend.
type dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	types       dialectTypes
	// textValues stores JSON and timestamps as TEXT (SQLite).
	textValues bool
	now        func() time.Time
}

var (
	sqliteDialect   = dialect{name: "sqlite", placeholder: sq.Question, types: sqliteTypes, textValues: true, now: utcNow}
	postgresDialect = dialect{name: "postgres", placeholder: sq.Dollar, types: postgresTypes, now: utcNow}
)

func utcNow() time.Time { return time.Now().UTC() }

func (d dialect) sb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}

// encode converts a Go value into a driver argument for a column of kind k.
func (d dialect) encode(k kind, v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	switch k {
	case kJSON:
		switch val := v.(type) {
		case json.RawMessage:
			return string(val), nil
		case []byte:
			return string(val), nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, eris.Wrap(err, "store: encode json")
		}
		return string(b), nil
	case kTime:
		switch val := v.(type) {
		case time.Time:
			return d.encodeTime(val), nil
		case *time.Time:
			return d.encodeTime(*val), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, val)
			if err != nil {
				return nil, eris.Wrapf(err, "store: parse time %q", val)
			}
			return d.encodeTime(t), nil
		}
		return nil, eris.Errorf("store: unsupported time value %T", v)
	}
	return d.arg(v), nil
}

func (d dialect) encodeTime(t time.Time) any {
	if d.textValues {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

// arg normalizes filter and column arguments: named basic types become their
// underlying type and times follow the dialect's storage format.
func (d dialect) arg(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64, []byte:
		return v
	case time.Time:
		return d.encodeTime(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return d.encodeTime(*val)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return d.arg(rv.Elem().Interface())
	}
	return v
}

func (d dialect) args(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = d.arg(v)
	}
	return out
}

// decode converts a value read from the driver into its Go form.
func (d dialect) decode(k kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch k {
	case kJSON:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		if s == "" {
			return nil, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, eris.Wrap(err, "store: decode json")
		}
		return out, nil
	case kTime:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, eris.Wrapf(err, "store: decode time %q", s)
		}
		return t, nil
	case kBool:
		switch n := v.(type) {
		case int64:
			return n != 0, nil
		case int:
			return n != 0, nil
		}
	}
	return v, nil
}

func (d dialect) decodeRow(t *tableSpec, names []string, values []any) (Record, error) {
	rec := make(Record, len(names))
	for i, name := range names {
		v, err := d.decode(t.kindOf(name), values[i])
		if err != nil {
			return nil, eris.Wrapf(err, "store: column %s.%s", t.name, name)
		}
		rec[name] = v
	}
	return rec, nil
}

// prepareRow fills the id and timestamps, validates columns and encodes
// values. Columns are returned sorted for stable SQL.
func (d dialect) prepareRow(t *tableSpec, rec Record) (string, []string, []any, error) {
	row := make(Record, len(rec)+3)
	for k, v := range rec {
		row[k] = v
	}

	var id string
	if t.primaryKey == "id" {
		if s, ok := row["id"].(string); ok && s != "" {
			id = s
		} else {
			id = uuid.New().String()
			row["id"] = id
		}
	}
	now := d.now()
	for _, ts := range []string{"created_at", "updated_at"} {
		if t.has(ts) && isNil(row[ts]) {
			row[ts] = now
		}
	}

	columns := make([]string, 0, len(row))
	for c := range row {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	if _, err := lookup(t.name, columns...); err != nil {
		return "", nil, nil, err
	}

	values := make([]any, len(columns))
	for i, c := range columns {
		v, err := d.encode(t.kindOf(c), row[c])
		if err != nil {
			return "", nil, nil, eris.Wrapf(err, "store: column %s.%s", t.name, c)
		}
		values[i] = v
	}
	return id, columns, values, nil
}

func (d dialect) selectSQL(table string, f Filter) (*tableSpec, string, []any, error) {
	t, err := lookup(table)
	if err != nil {
		return nil, "", nil, err
	}
	q := d.sb().Select("*").From(table)
	if f.Where != nil {
		q = q.Where(f.Where)
	}
	for _, o := range f.OrderBy {
		if err := validOrder(t, o); err != nil {
			return nil, "", nil, err
		}
		q = q.OrderBy(o)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, "", nil, eris.Wrapf(err, "store: build select %s", table)
	}
	return t, query, d.args(args), nil
}

func (d dialect) insertSQL(table string, rec Record) (string, string, []any, error) {
	t, err := lookup(table)
	if err != nil {
		return "", "", nil, err
	}
	id, columns, values, err := d.prepareRow(t, rec)
	if err != nil {
		return "", "", nil, err
	}
	query, args, err := d.sb().Insert(table).Columns(columns...).Values(values...).ToSql()
	if err != nil {
		return "", "", nil, eris.Wrapf(err, "store: build insert %s", table)
	}
	return id, query, args, nil
}

// upsertSQL renders INSERT ... ON CONFLICT (keys) DO UPDATE. The id and
// created_at of an existing row are preserved. The statement returns the
// stored row's primary key.
func (d dialect) upsertSQL(table string, rec Record, conflictKeys []string) (string, []any, error) {
	if len(conflictKeys) == 0 {
		return "", nil, eris.Errorf("store: upsert %s: no conflict keys", table)
	}
	t, err := lookup(table, conflictKeys...)
	if err != nil {
		return "", nil, err
	}
	_, columns, values, err := d.prepareRow(t, rec)
	if err != nil {
		return "", nil, err
	}

	skip := map[string]bool{t.primaryKey: true, "created_at": true}
	for _, k := range conflictKeys {
		skip[k] = true
	}
	var sets []string
	for _, c := range columns {
		if !skip[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	if len(sets) == 0 {
		// A no-op update still lets RETURNING yield the existing row.
		sets = append(sets, conflictKeys[0]+" = excluded."+conflictKeys[0])
	}

	suffix := "ON CONFLICT (" + strings.Join(conflictKeys, ", ") + ") DO UPDATE SET " +
		strings.Join(sets, ", ") + " RETURNING " + t.primaryKey

	query, args, err := d.sb().Insert(table).Columns(columns...).Values(values...).Suffix(suffix).ToSql()
	if err != nil {
		return "", nil, eris.Wrapf(err, "store: build upsert %s", table)
	}
	return query, args, nil
}

func (d dialect) updateSQL(table string, f Filter, patch Record) (string, []any, error) {
	if f.Where == nil {
		return "", nil, eris.Errorf("store: update %s without filter", table)
	}
	if len(patch) == 0 {
		return "", nil, eris.Errorf("store: update %s with empty patch", table)
	}
	t, err := lookup(table)
	if err != nil {
		return "", nil, err
	}

	set := make(map[string]any, len(patch)+1)
	for c, v := range patch {
		if !t.has(c) {
			return "", nil, eris.Errorf("store: unknown column %s.%s", table, c)
		}
		enc, err := d.encode(t.kindOf(c), v)
		if err != nil {
			return "", nil, eris.Wrapf(err, "store: column %s.%s", table, c)
		}
		set[c] = enc
	}
	if t.has("updated_at") {
		if _, ok := set["updated_at"]; !ok {
			set["updated_at"] = d.encodeTime(d.now())
		}
	}

	query, args, err := d.sb().Update(table).SetMap(set).Where(f.Where).ToSql()
	if err != nil {
		return "", nil, eris.Wrapf(err, "store: build update %s", table)
	}
	return query, d.args(args), nil
}

func (d dialect) deleteSQL(table string, f Filter) (string, []any, error) {
	if f.Where == nil {
		return "", nil, eris.Errorf("store: delete %s without filter", table)
	}
	if _, err := lookup(table); err != nil {
		return "", nil, err
	}
	query, args, err := d.sb().Delete(table).Where(f.Where).ToSql()
	if err != nil {
		return "", nil, eris.Wrapf(err, "store: build delete %s", table)
	}
	return query, d.args(args), nil
}

// manyRows prepares a batch for a multi-row write. Every row gets the union
// of all columns, with NULL where a record lacks one.
func (d dialect) manyRows(table string, recs []Record) (*tableSpec, []string, [][]any, error) {
	t, err := lookup(table)
	if err != nil {
		return nil, nil, nil, err
	}
	prepared := make([]map[string]any, len(recs))
	colSet := map[string]bool{}
	for i, rec := range recs {
		_, columns, values, err := d.prepareRow(t, rec)
		if err != nil {
			return nil, nil, nil, err
		}
		m := make(map[string]any, len(columns))
		for j, c := range columns {
			m[c] = values[j]
			colSet[c] = true
		}
		prepared[i] = m
	}
	columns := make([]string, 0, len(colSet))
	for c := range colSet {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	rows := make([][]any, len(prepared))
	for i, m := range prepared {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = m[c]
		}
		rows[i] = row
	}
	return t, columns, rows, nil
}

func validOrder(t *tableSpec, order string) error {
	parts := strings.Fields(order)
	if len(parts) == 0 || len(parts) > 2 || !t.has(parts[0]) {
		return eris.Errorf("store: invalid order %q for %s", order, t.name)
	}
	if len(parts) == 2 {
		dir := strings.ToUpper(parts[1])
		if dir != "ASC" && dir != "DESC" {
			return eris.Errorf("store: invalid order %q for %s", order, t.name)
		}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
