package catalog

import (
	"context"
	"strings"
)

type Field string

const (
	FieldID        Field = "id"
	FieldName      Field = "name"
	FieldCategory  Field = "category"
	FieldBrand     Field = "brand"
	FieldPrice     Field = "price"
	FieldCreatedAt Field = "created_at"
)

// ParseFacet accepts only the fields that carry filter choice lists.
func ParseFacet(s string) (Field, error) {
	switch f := Field(strings.ToLower(s)); f {
	case FieldCategory, FieldBrand:
		return f, nil
	default:
		return "", rejected("unknown facet %q", s)
	}
}

type Op string

const (
	OpILike Op = "ilike"
	OpEq    Op = "eq"
	OpGTE   Op = "gte"
	OpLTE   Op = "lte"
)

// Predicate is one conjunctive condition. Value is a string for ilike/eq and a
// decimal.Decimal for gte/lte.
type Predicate struct {
	Op    Op
	Field Field
	Value any
}

type Order struct {
	Field Field
	Desc  bool
}

type SelectQuery struct {
	Filters []Predicate
	Order   Order
	Offset  int
	Limit   int
}

// Source is the remote product table. CountAndSelect returns the requested
// row range together with the number of rows matching Filters, ignoring the
// range. Failures must come back as errors, never as zero rows.
type Source interface {
	CountAndSelect(ctx context.Context, q SelectQuery) ([]Product, int, error)
	Distinct(ctx context.Context, field Field) ([]*string, error)
	Ping(ctx context.Context) error
}

// Writer is the mutation side used by the admin console. Update keeps the
// stored CreatedAt and returns the row as saved.
type Writer interface {
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ilike pattern matching s anywhere, with the
// wildcard characters of s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
