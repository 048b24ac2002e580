// Package query turns flat, string-keyed request parameters into a typed,
// store-agnostic query expression: a predicate tree plus sort, pagination,
// projection and relation-inclusion specs. Repositories lower the expression
// to SQL with a Mapping (see sql.go) and run it through the Executor.
package query

// Op identifies a comparison operator on a field predicate.
type Op string

const (
	OpEquals     Op = "equals"
	OpNot        Op = "not"
	OpLT         Op = "lt"
	OpLTE        Op = "lte"
	OpGT         Op = "gt"
	OpGTE        Op = "gte"
	OpContains   Op = "contains"
	OpStartsWith Op = "startsWith"
	OpEndsWith   Op = "endsWith"
	OpIn         Op = "in"
	OpNotIn      Op = "notIn"
)

var knownOps = map[Op]bool{
	OpEquals: true, OpNot: true, OpLT: true, OpLTE: true, OpGT: true,
	OpGTE: true, OpContains: true, OpStartsWith: true, OpEndsWith: true,
	OpIn: true, OpNotIn: true,
}

// Predicate is one node of the predicate tree.
type Predicate interface{ isPredicate() }

// Field compares a direct column against a value.
type Field struct {
	Name        string
	Op          Op
	Value       interface{}
	Insensitive bool
}

// And is the conjunction of its children.
type And struct{ Preds []Predicate }

// Or is the disjunction of its children.
type Or struct{ Preds []Predicate }

// Relation applies Pred to a single related record (1:1 or owning side).
type Relation struct {
	Name string
	Pred Predicate
}

// RelationSome is satisfied when at least one element of a collection
// relation satisfies Pred.
type RelationSome struct {
	Name string
	Pred Predicate
}

func (Field) isPredicate()        {}
func (And) isPredicate()          {}
func (Or) isPredicate()           {}
func (Relation) isPredicate()     {}
func (RelationSome) isPredicate() {}

// SortSpec orders results by a field path of 1-3 segments; intermediate
// segments name relations.
type SortSpec struct {
	Path []string
	Desc bool
}

// PageSpec is the pagination window.
type PageSpec struct {
	Page  int
	Limit int
	Skip  int
}

// Expression is a complete query against one entity.
type Expression struct {
	Where   *And
	Sort    SortSpec
	Page    PageSpec
	Select  []string
	Include []string
}

// NewExpression returns an expression with the default window and ordering.
func NewExpression() *Expression {
	return &Expression{
		Where: &And{},
		Sort:  SortSpec{Path: []string{"createdAt"}, Desc: true},
		Page:  PageSpec{Page: 1, Limit: 10},
	}
}

// add appends a predicate to the root conjunction, deep-merging into an
// existing Relation/RelationSome node of the same name so that
// user.name=x&user.email=y produce one relation subtree, matching the
// object-merge behavior of dynamic predicate maps.
func (e *Expression) add(p Predicate) {
	e.Where.Preds = mergeInto(e.Where.Preds, p)
}

func mergeInto(preds []Predicate, p Predicate) []Predicate {
	switch np := p.(type) {
	case Relation:
		for i, existing := range preds {
			if rel, ok := existing.(Relation); ok && rel.Name == np.Name {
				rel.Pred = mergePair(rel.Pred, np.Pred)
				preds[i] = rel
				return preds
			}
		}
	case RelationSome:
		for i, existing := range preds {
			if rel, ok := existing.(RelationSome); ok && rel.Name == np.Name {
				rel.Pred = mergePair(rel.Pred, np.Pred)
				preds[i] = rel
				return preds
			}
		}
	}
	return append(preds, p)
}

// mergePair combines two predicates under one relation node. Relation nodes
// with the same name merge recursively; everything else joins under And.
func mergePair(a, b Predicate) Predicate {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if ra, ok := a.(Relation); ok {
		if rb, ok := b.(Relation); ok && ra.Name == rb.Name {
			ra.Pred = mergePair(ra.Pred, rb.Pred)
			return ra
		}
	}
	if ra, ok := a.(RelationSome); ok {
		if rb, ok := b.(RelationSome); ok && ra.Name == rb.Name {
			ra.Pred = mergePair(ra.Pred, rb.Pred)
			return ra
		}
	}
	if anda, ok := a.(And); ok {
		anda.Preds = mergeInto(anda.Preds, b)
		return anda
	}
	return And{Preds: []Predicate{a, b}}
}
