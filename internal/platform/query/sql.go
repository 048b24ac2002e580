package query

import (
	"fmt"
	"strings"
)

// Mapping describes how one entity's field names lower to a SQL table.
type Mapping struct {
	Table     string
	PK        string            // primary key column, "id" when empty
	Columns   map[string]string // field name -> column name
	Relations map[string]*RelationMapping
}

// RelationMapping joins a related table into EXISTS subqueries. Exactly one
// of ForeignKey (child column referencing the parent PK — collections) or
// LocalKey (parent column referencing the child PK — owning side) is set.
type RelationMapping struct {
	*Mapping
	ForeignKey string
	LocalKey   string
}

func (m *Mapping) pk() string {
	if m.PK == "" {
		return "id"
	}
	return m.PK
}

// column resolves a field name, falling back to the field name itself so an
// incomplete mapping degrades predictably rather than panicking.
func (m *Mapping) column(field string) string {
	if col, ok := m.Columns[field]; ok {
		return col
	}
	return field
}

// SQLQuery lowers an Expression to WHERE/ORDER BY fragments with positional
// arguments, in the same style the repositories build their search SQL.
type SQLQuery struct {
	mapping *Mapping
	where   string
	orderBy string
	args    []interface{}
	idx     int
	page    PageSpec
}

// NewSQL creates a lowering context for the given entity mapping.
func NewSQL(mapping *Mapping) *SQLQuery {
	return &SQLQuery{mapping: mapping, idx: 1, page: PageSpec{Page: 1, Limit: defaultLimit}}
}

// Apply lowers the expression's predicate tree, sort spec and window.
func (q *SQLQuery) Apply(expr *Expression) error {
	clause, err := q.lower(expr.Where, q.mapping, q.mapping.Table)
	if err != nil {
		return err
	}
	if clause != "" {
		q.where = " AND " + clause
	}
	q.orderBy = q.lowerSort(expr.Sort)
	q.page = expr.Page
	return nil
}

// CountSQL returns the count query.
func (q *SQLQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.mapping.Table, q.where)
}

// CountArgs returns the arguments for the count query.
func (q *SQLQuery) CountArgs() []interface{} { return q.args }

// DataSQL returns the fetch query for the given column list.
func (q *SQLQuery) DataSQL(cols string) string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", cols, q.mapping.Table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the fetch arguments: predicate args plus limit and skip.
func (q *SQLQuery) DataArgs() []interface{} {
	out := make([]interface{}, len(q.args)+2)
	copy(out, q.args)
	out[len(q.args)] = q.page.Limit
	out[len(q.args)+1] = q.page.Skip
	return out
}

// SelectColumns maps a projection onto mapped column names; a nil projection
// returns fallback (the repo's full column list).
func (q *SQLQuery) SelectColumns(expr *Expression, fallback string) string {
	if len(expr.Select) == 0 {
		return fallback
	}
	cols := make([]string, 0, len(expr.Select))
	for _, field := range expr.Select {
		cols = append(cols, q.mapping.column(field))
	}
	return strings.Join(cols, ", ")
}

func (q *SQLQuery) lower(p Predicate, m *Mapping, tableRef string) (string, error) {
	switch v := p.(type) {
	case nil:
		return "", nil
	case *And:
		if v == nil {
			return "", nil
		}
		return q.lowerList(v.Preds, m, tableRef, " AND ")
	case And:
		return q.lowerList(v.Preds, m, tableRef, " AND ")
	case Or:
		clause, err := q.lowerList(v.Preds, m, tableRef, " OR ")
		if err != nil || clause == "" {
			return clause, err
		}
		return "(" + clause + ")", nil
	case Field:
		return q.lowerField(v, m, tableRef)
	case Relation:
		return q.lowerRelation(v.Name, v.Pred, m, tableRef)
	case RelationSome:
		return q.lowerRelation(v.Name, v.Pred, m, tableRef)
	default:
		return "", fmt.Errorf("query: unknown predicate %T", p)
	}
}

func (q *SQLQuery) lowerList(preds []Predicate, m *Mapping, tableRef, sep string) (string, error) {
	var parts []string
	for _, child := range preds {
		clause, err := q.lower(child, m, tableRef)
		if err != nil {
			return "", err
		}
		if clause != "" {
			parts = append(parts, clause)
		}
	}
	return strings.Join(parts, sep), nil
}

// lowerRelation emits an EXISTS subquery for a relation hop. Collection and
// owning hops differ only in join direction.
func (q *SQLQuery) lowerRelation(name string, inner Predicate, m *Mapping, tableRef string) (string, error) {
	rel, ok := m.Relations[name]
	if !ok {
		return "", fmt.Errorf("query: unmapped relation %q on %s", name, m.Table)
	}
	alias := fmt.Sprintf("%s_%d", rel.Table, q.idx)
	var join string
	switch {
	case rel.ForeignKey != "":
		join = fmt.Sprintf("%s.%s = %s.%s", alias, rel.ForeignKey, tableRef, m.pk())
	case rel.LocalKey != "":
		join = fmt.Sprintf("%s.%s = %s.%s", alias, rel.pk(), tableRef, rel.LocalKey)
	default:
		return "", fmt.Errorf("query: relation %q on %s has no join key", name, m.Table)
	}
	innerClause, err := q.lower(inner, rel.Mapping, alias)
	if err != nil {
		return "", err
	}
	if innerClause != "" {
		innerClause = " AND " + innerClause
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s%s)", rel.Table, alias, join, innerClause), nil
}

func (q *SQLQuery) lowerField(f Field, m *Mapping, tableRef string) (string, error) {
	col := fmt.Sprintf("%s.%s", tableRef, m.column(f.Name))
	switch f.Op {
	case OpEquals:
		return q.bind(col+" = $%d", f.Value), nil
	case OpNot:
		return q.bind(col+" != $%d", f.Value), nil
	case OpLT:
		return q.bind(col+" < $%d", f.Value), nil
	case OpLTE:
		return q.bind(col+" <= $%d", f.Value), nil
	case OpGT:
		return q.bind(col+" > $%d", f.Value), nil
	case OpGTE:
		return q.bind(col+" >= $%d", f.Value), nil
	case OpContains:
		return q.bindLike(col, f.Insensitive, "'%%' || $%d || '%%'", f.Value), nil
	case OpStartsWith:
		return q.bindLike(col, f.Insensitive, "$%d || '%%'", f.Value), nil
	case OpEndsWith:
		return q.bindLike(col, f.Insensitive, "'%%' || $%d", f.Value), nil
	case OpIn, OpNotIn:
		return q.lowerIn(col, f)
	default:
		return "", fmt.Errorf("query: unknown operator %q", f.Op)
	}
}

func (q *SQLQuery) bind(format string, value interface{}) string {
	clause := fmt.Sprintf(format, q.idx)
	q.args = append(q.args, value)
	q.idx++
	return clause
}

func (q *SQLQuery) bindLike(col string, insensitive bool, pattern string, value interface{}) string {
	op := "LIKE"
	if insensitive {
		op = "ILIKE"
	}
	clause := fmt.Sprintf("%s %s %s", col, op, fmt.Sprintf(pattern, q.idx))
	q.args = append(q.args, value)
	q.idx++
	return clause
}

func (q *SQLQuery) lowerIn(col string, f Field) (string, error) {
	values, ok := f.Value.([]interface{})
	if !ok || len(values) == 0 {
		// An empty IN matches nothing; NOT IN over nothing matches everything.
		if f.Op == OpIn {
			return "FALSE", nil
		}
		return "", nil
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = fmt.Sprintf("$%d", q.idx)
		q.args = append(q.args, v)
		q.idx++
	}
	op := "IN"
	if f.Op == OpNotIn {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")), nil
}

// lowerSort resolves the sort path: direct column, or a correlated subquery
// for 1-2 relation hops. Unmapped paths fall back to created_at.
func (q *SQLQuery) lowerSort(sort SortSpec) string {
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	switch len(sort.Path) {
	case 1:
		return q.mapping.column(sort.Path[0]) + " " + dir
	case 2:
		rel, ok := q.mapping.Relations[sort.Path[0]]
		if !ok {
			return q.mapping.column("createdAt") + " " + dir
		}
		return fmt.Sprintf("(%s) %s", q.relationColumnSubquery(rel, q.mapping, q.mapping.Table, rel.column(sort.Path[1])), dir)
	case 3:
		rel, ok := q.mapping.Relations[sort.Path[0]]
		if !ok {
			return q.mapping.column("createdAt") + " " + dir
		}
		inner, ok := rel.Relations[sort.Path[1]]
		if !ok {
			return q.mapping.column("createdAt") + " " + dir
		}
		outerAlias := rel.Table + "_s"
		innerSub := q.relationColumnSubquery(inner, rel.Mapping, outerAlias, inner.column(sort.Path[2]))
		join := q.relationJoin(rel, q.mapping, q.mapping.Table, outerAlias)
		return fmt.Sprintf("(SELECT (%s) FROM %s %s WHERE %s LIMIT 1) %s", innerSub, rel.Table, outerAlias, join, dir)
	default:
		return q.mapping.column("createdAt") + " " + dir
	}
}

func (q *SQLQuery) relationColumnSubquery(rel *RelationMapping, parent *Mapping, parentRef, col string) string {
	alias := rel.Table + "_o"
	join := q.relationJoin(rel, parent, parentRef, alias)
	return fmt.Sprintf("SELECT %s.%s FROM %s %s WHERE %s LIMIT 1", alias, col, rel.Table, alias, join)
}

func (q *SQLQuery) relationJoin(rel *RelationMapping, parent *Mapping, parentRef, alias string) string {
	if rel.ForeignKey != "" {
		return fmt.Sprintf("%s.%s = %s.%s", alias, rel.ForeignKey, parentRef, parent.pk())
	}
	return fmt.Sprintf("%s.%s = %s.%s", alias, rel.pk(), parentRef, rel.LocalKey)
}
