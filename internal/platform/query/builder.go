package query

import (
	"strconv"
	"strings"
)

// Config restricts which field paths a caller may search or filter on.
// A field path is a direct field name, "relation.field", or
// "collectionRelation.nestedRelation.field".
type Config struct {
	SearchableFields []string
	FilterableFields []string
}

// reservedParams are control parameters, never treated as filters.
var reservedParams = map[string]bool{
	"searchTerm": true, "page": true, "limit": true, "sortBy": true,
	"sortOrder": true, "fields": true, "include": true,
}

const defaultLimit = 10

// Builder assembles a query Expression from request parameters. Every
// predicate-writing call mirrors the write into a separate count expression
// so that totals always describe the same logical query as the fetched page.
// Malformed input is coerced or dropped, never an error.
type Builder struct {
	params Params
	config Config

	expr      *Expression
	countExpr *Expression
}

func NewBuilder(params Params, config Config) *Builder {
	if params == nil {
		params = Params{}
	}
	return &Builder{
		params:    params,
		config:    config,
		expr:      NewExpression(),
		countExpr: NewExpression(),
	}
}

// addBoth writes a predicate into the fetch and count expressions.
func (b *Builder) addBoth(p Predicate) {
	b.expr.add(p)
	b.countExpr.add(clonePredicate(p))
}

// Search adds an OR of case-insensitive contains predicates over the
// configured searchable field paths when searchTerm is present.
func (b *Builder) Search() *Builder {
	term, ok := str(b.params["searchTerm"])
	if !ok || term == "" || len(b.config.SearchableFields) == 0 {
		return b
	}
	or := Or{}
	for _, field := range b.config.SearchableFields {
		contains := Field{Name: lastSegment(field), Op: OpContains, Value: term, Insensitive: true}
		if p, ok := expandPath(field, contains); ok {
			or.Preds = append(or.Preds, p)
		}
	}
	if len(or.Preds) > 0 {
		b.addBoth(or)
	}
	return b
}

// Filter converts every non-reserved parameter into a predicate, subject to
// the FilterableFields allow-list. Dotted paths must be listed explicitly;
// direct fields are checked only when the list is non-empty.
func (b *Builder) Filter() *Builder {
	for key, raw := range b.params {
		if reservedParams[key] {
			continue
		}
		if s, isStr := str(raw); isStr && s == "" {
			continue
		}
		if raw == nil {
			continue
		}

		if strings.Contains(key, ".") {
			if !contains(b.config.FilterableFields, key) {
				continue
			}
			leaf := Field{Name: lastSegment(key), Op: OpEquals, Value: nil}
			if m, isMap := raw.(map[string]string); isMap {
				if rangePred, ok := rangePredicate(lastSegment(key), m); ok {
					if p, ok := expandPathPred(key, rangePred); ok {
						b.addBoth(p)
					}
				}
				continue
			}
			leaf.Value = coerceValue(raw)
			if arr, isIn := leaf.Value.(inValue); isIn {
				leaf.Op = OpIn
				leaf.Value = []interface{}(arr)
			}
			if p, ok := expandPath(key, leaf); ok {
				b.addBoth(p)
			}
			continue
		}

		if len(b.config.FilterableFields) > 0 && !contains(b.config.FilterableFields, key) {
			continue
		}

		if m, isMap := raw.(map[string]string); isMap {
			if p, ok := rangePredicate(key, m); ok {
				b.addBoth(p)
			}
			continue
		}

		coerced := coerceValue(raw)
		if arr, isIn := coerced.(inValue); isIn {
			b.addBoth(Field{Name: key, Op: OpIn, Value: []interface{}(arr)})
			continue
		}
		b.addBoth(Field{Name: key, Op: OpEquals, Value: coerced})
	}
	return b
}

// Paginate reads page and limit, defaulting to page 1 and 10 rows.
func (b *Builder) Paginate() *Builder {
	page := intParam(b.params, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := intParam(b.params, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	b.expr.Page = PageSpec{Page: page, Limit: limit, Skip: (page - 1) * limit}
	b.countExpr.Page = b.expr.Page
	return b
}

// Sort reads sortBy/sortOrder. sortOrder is ascending only on the exact
// literal "asc". Dotted sortBy orders through 1 or 2 relation hops.
func (b *Builder) Sort() *Builder {
	sortBy, _ := str(b.params["sortBy"])
	if sortBy == "" {
		sortBy = "createdAt"
	}
	order, _ := str(b.params["sortOrder"])

	path := strings.Split(sortBy, ".")
	if len(path) > 3 {
		path = []string{sortBy}
	}
	b.expr.Sort = SortSpec{Path: path, Desc: order != "asc"}
	return b
}

// Fields activates a projection from the comma-separated fields parameter.
// An active projection discards relation inclusion entirely.
func (b *Builder) Fields() *Builder {
	raw, ok := str(b.params["fields"])
	if !ok || raw == "" {
		return b
	}
	var selected []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			selected = append(selected, f)
		}
	}
	if len(selected) > 0 {
		b.expr.Select = selected
		b.expr.Include = nil
	}
	return b
}

// Include unconditionally adds relation names. No-op under a projection.
func (b *Builder) Include(relations ...string) *Builder {
	if b.expr.Select != nil {
		return b
	}
	for _, rel := range relations {
		if !contains(b.expr.Include, rel) {
			b.expr.Include = append(b.expr.Include, rel)
		}
	}
	return b
}

// DynamicInclude unions the default inclusion set with caller-requested
// relation names that exist in the allowed set; unknown names are ignored.
func (b *Builder) DynamicInclude(allowed map[string]bool, defaults ...string) *Builder {
	if b.expr.Select != nil {
		return b
	}
	for _, rel := range defaults {
		if allowed[rel] {
			b.Include(rel)
		}
	}
	if raw, ok := str(b.params["include"]); ok && raw != "" {
		for _, rel := range strings.Split(raw, ",") {
			rel = strings.TrimSpace(rel)
			if allowed[rel] {
				b.Include(rel)
			}
		}
	}
	return b
}

// Where merges a caller-supplied base predicate into both expressions.
func (b *Builder) Where(p Predicate) *Builder {
	if p != nil {
		b.addBoth(p)
	}
	return b
}

// Expression returns the fetch expression.
func (b *Builder) Expression() *Expression { return b.expr }

// CountExpression returns the count expression; its predicate tree is kept
// structurally identical to the fetch expression's.
func (b *Builder) CountExpression() *Expression { return b.countExpr }

// -- helpers --

// expandPath wraps a leaf Field according to the path depth: one hop becomes
// a Relation node, two hops an existential RelationSome over the first.
func expandPath(path string, leaf Field) (Predicate, bool) {
	return expandPathPred(path, leaf)
}

func expandPathPred(path string, leaf Predicate) (Predicate, bool) {
	parts := strings.Split(path, ".")
	switch len(parts) {
	case 1:
		return leaf, true
	case 2:
		return Relation{Name: parts[0], Pred: leaf}, true
	case 3:
		return RelationSome{Name: parts[0], Pred: Relation{Name: parts[1], Pred: leaf}}, true
	default:
		return nil, false
	}
}

// rangePredicate builds the predicate for an operator map value. Unrecognized
// operators are dropped; in/notIn always coerce to arrays.
func rangePredicate(field string, ops map[string]string) (Predicate, bool) {
	var preds []Predicate
	for op, raw := range ops {
		o := Op(op)
		if !knownOps[o] {
			continue
		}
		value := coerceScalar(raw)
		if o == OpIn || o == OpNotIn {
			preds = append(preds, Field{Name: field, Op: o, Value: []interface{}{value}})
			continue
		}
		preds = append(preds, Field{Name: field, Op: o, Value: value})
	}
	switch len(preds) {
	case 0:
		return nil, false
	case 1:
		return preds[0], true
	default:
		return And{Preds: preds}, true
	}
}

// inValue marks a coerced array destined for an IN predicate.
type inValue []interface{}

// coerceValue applies scalar coercion; []string becomes an inValue with
// element-wise coercion.
func coerceValue(raw interface{}) interface{} {
	switch v := raw.(type) {
	case string:
		return coerceScalar(v)
	case []string:
		out := make(inValue, 0, len(v))
		for _, item := range v {
			out = append(out, coerceScalar(item))
		}
		return out
	default:
		return raw
	}
}

// coerceScalar maps "true"/"false" to bool and numeric strings to float64;
// anything else passes through unchanged.
func coerceScalar(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if s != "" {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return s
}

func intParam(params Params, key string, fallback int) int {
	s, ok := str(params[key])
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n == 0 {
		return fallback
	}
	return n
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func lastSegment(path string) string {
	parts := strings.Split(path, ".")
	return parts[len(parts)-1]
}

// clonePredicate deep-copies a predicate so the count expression never
// aliases nodes the fetch expression may later merge into.
func clonePredicate(p Predicate) Predicate {
	switch v := p.(type) {
	case Field:
		return v
	case And:
		out := And{Preds: make([]Predicate, len(v.Preds))}
		for i, child := range v.Preds {
			out.Preds[i] = clonePredicate(child)
		}
		return out
	case Or:
		out := Or{Preds: make([]Predicate, len(v.Preds))}
		for i, child := range v.Preds {
			out.Preds[i] = clonePredicate(child)
		}
		return out
	case Relation:
		return Relation{Name: v.Name, Pred: clonePredicate(v.Pred)}
	case RelationSome:
		return RelationSome{Name: v.Name, Pred: clonePredicate(v.Pred)}
	default:
		return p
	}
}
