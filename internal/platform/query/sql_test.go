package query

import (
	"reflect"
	"strings"
	"testing"
)

func doctorMapping() *Mapping {
	return &Mapping{
		Table: "doctors",
		Columns: map[string]string{
			"appointmentFee": "appointment_fee",
			"createdAt":      "created_at",
			"isDeleted":      "is_deleted",
		},
		Relations: map[string]*RelationMapping{
			"user": {
				Mapping: &Mapping{
					Table:   "users",
					Columns: map[string]string{"createdAt": "created_at"},
				},
				LocalKey: "user_id",
			},
			"specialties": {
				Mapping: &Mapping{
					Table: "doctor_specialties",
					Relations: map[string]*RelationMapping{
						"specialty": {
							Mapping:  &Mapping{Table: "specialties"},
							LocalKey: "specialty_id",
						},
					},
				},
				ForeignKey: "doctor_id",
			},
		},
	}
}

func lowered(t *testing.T, expr *Expression) *SQLQuery {
	t.Helper()
	q := NewSQL(doctorMapping())
	if err := q.Apply(expr); err != nil {
		t.Fatal(err)
	}
	return q
}

func TestSQL_FieldOperators(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		wantSQL  string
		wantArgs []interface{}
	}{
		{"equals", Field{Name: "isDeleted", Op: OpEquals, Value: false},
			"doctors.is_deleted = $1", []interface{}{false}},
		{"not", Field{Name: "status", Op: OpNot, Value: "CANCELED"},
			"doctors.status != $1", []interface{}{"CANCELED"}},
		{"lt", Field{Name: "appointmentFee", Op: OpLT, Value: 100.0},
			"doctors.appointment_fee < $1", []interface{}{100.0}},
		{"gte", Field{Name: "appointmentFee", Op: OpGTE, Value: 50.0},
			"doctors.appointment_fee >= $1", []interface{}{50.0}},
		{"contains insensitive", Field{Name: "name", Op: OpContains, Value: "smith", Insensitive: true},
			"doctors.name ILIKE '%' || $1 || '%'", []interface{}{"smith"}},
		{"startsWith", Field{Name: "name", Op: OpStartsWith, Value: "Dr"},
			"doctors.name LIKE $1 || '%'", []interface{}{"Dr"}},
		{"endsWith", Field{Name: "name", Op: OpEndsWith, Value: "MD"},
			"doctors.name LIKE '%' || $1", []interface{}{"MD"}},
		{"in", Field{Name: "status", Op: OpIn, Value: []interface{}{"A", "B"}},
			"doctors.status IN ($1, $2)", []interface{}{"A", "B"}},
		{"notIn", Field{Name: "status", Op: OpNotIn, Value: []interface{}{"A"}},
			"doctors.status NOT IN ($1)", []interface{}{"A"}},
		{"empty in", Field{Name: "status", Op: OpIn, Value: []interface{}{}},
			"FALSE", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := NewExpression()
			expr.add(tt.field)
			q := lowered(t, expr)
			want := "SELECT COUNT(*) FROM doctors WHERE 1=1 AND " + tt.wantSQL
			if tt.wantSQL == "" {
				want = "SELECT COUNT(*) FROM doctors WHERE 1=1"
			}
			if got := q.CountSQL(); got != want {
				t.Errorf("sql:\n got %q\nwant %q", got, want)
			}
			if !reflect.DeepEqual(q.CountArgs(), tt.wantArgs) {
				t.Errorf("args: got %#v, want %#v", q.CountArgs(), tt.wantArgs)
			}
		})
	}
}

func TestSQL_EmptyNotInMatchesEverything(t *testing.T) {
	expr := NewExpression()
	expr.add(Field{Name: "status", Op: OpNotIn, Value: []interface{}{}})
	q := lowered(t, expr)
	if got := q.CountSQL(); got != "SELECT COUNT(*) FROM doctors WHERE 1=1" {
		t.Errorf("empty NOT IN must be a no-op, got %q", got)
	}
}

func TestSQL_OwningRelationHop(t *testing.T) {
	expr := NewExpression()
	expr.add(Relation{Name: "user", Pred: Field{Name: "email", Op: OpEquals, Value: "j@x.com"}})
	q := lowered(t, expr)

	sql := q.CountSQL()
	if !strings.Contains(sql, "EXISTS (SELECT 1 FROM users users_1 WHERE users_1.id = doctors.user_id AND users_1.email = $1)") {
		t.Errorf("owning hop must join child pk to parent local key:\n%s", sql)
	}
	if !reflect.DeepEqual(q.CountArgs(), []interface{}{"j@x.com"}) {
		t.Errorf("unexpected args: %#v", q.CountArgs())
	}
}

func TestSQL_CollectionRelationHop(t *testing.T) {
	expr := NewExpression()
	expr.add(RelationSome{Name: "specialties", Pred: Relation{
		Name: "specialty",
		Pred: Field{Name: "title", Op: OpContains, Value: "cardio", Insensitive: true},
	}})
	q := lowered(t, expr)

	sql := q.CountSQL()
	if !strings.Contains(sql, "doctor_specialties_1.doctor_id = doctors.id") {
		t.Errorf("collection hop must join foreign key to parent pk:\n%s", sql)
	}
	if !strings.Contains(sql, "ILIKE '%' || $1 || '%'") {
		t.Errorf("nested predicate missing:\n%s", sql)
	}
}

func TestSQL_UnmappedRelationErrors(t *testing.T) {
	expr := NewExpression()
	expr.add(Relation{Name: "ghost", Pred: Field{Name: "x", Op: OpEquals, Value: 1}})
	q := NewSQL(doctorMapping())
	if err := q.Apply(expr); err == nil {
		t.Fatal("expected error for unmapped relation")
	}
}

func TestSQL_DataQueryAppendsWindow(t *testing.T) {
	expr := NewExpression()
	expr.add(Field{Name: "isDeleted", Op: OpEquals, Value: false})
	expr.Page = PageSpec{Page: 3, Limit: 20, Skip: 40}
	q := lowered(t, expr)

	want := "SELECT id, name FROM doctors WHERE 1=1 AND doctors.is_deleted = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	if got := q.DataSQL("id, name"); got != want {
		t.Errorf("sql:\n got %q\nwant %q", got, want)
	}
	if !reflect.DeepEqual(q.DataArgs(), []interface{}{false, 20, 40}) {
		t.Errorf("args: got %#v", q.DataArgs())
	}
}

func TestSQL_SortThroughRelations(t *testing.T) {
	tests := []struct {
		name string
		sort SortSpec
		want string
	}{
		{"direct", SortSpec{Path: []string{"appointmentFee"}, Desc: false}, "ORDER BY appointment_fee ASC"},
		{"one hop", SortSpec{Path: []string{"user", "name"}, Desc: true},
			"ORDER BY (SELECT users_o.name FROM users users_o WHERE users_o.id = doctors.user_id LIMIT 1) DESC"},
		{"unmapped falls back", SortSpec{Path: []string{"ghost", "name"}}, "ORDER BY created_at ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := NewExpression()
			expr.Sort = tt.sort
			q := lowered(t, expr)
			if got := q.DataSQL("id"); !strings.Contains(got, tt.want) {
				t.Errorf("missing %q in:\n%s", tt.want, got)
			}
		})
	}
}

func TestSQL_SelectColumns(t *testing.T) {
	q := NewSQL(doctorMapping())
	expr := NewExpression()
	if got := q.SelectColumns(expr, "id, name, appointment_fee"); got != "id, name, appointment_fee" {
		t.Errorf("nil projection must use fallback, got %q", got)
	}
	expr.Select = []string{"id", "appointmentFee"}
	if got := q.SelectColumns(expr, "x"); got != "id, appointment_fee" {
		t.Errorf("projection must map field names, got %q", got)
	}
}
