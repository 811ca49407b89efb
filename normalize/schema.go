package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/catalogit/core"
)

// Field identifies a CatalogRecord attribute resolved from a raw row.
type Field string

const (
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldBrand       Field = "brand"
	FieldCategories  Field = "categories"
	FieldPrice       Field = "price"
	FieldImageURL    Field = "image_url"
	FieldRating      Field = "rating"
	FieldReviewCount Field = "review_count"
)

// Fields lists every resolvable field.
var Fields = []Field{
	FieldID, FieldTitle, FieldDescription, FieldBrand, FieldCategories,
	FieldPrice, FieldImageURL, FieldRating, FieldReviewCount,
}

// Validator decides whether a raw cell value is usable for a field.
type Validator func(value string) bool

// Present accepts any value that is not a null sentinel.
func Present(value string) bool {
	return !IsNullSentinel(value)
}

// PriceLike accepts values from which a price can be parsed.
func PriceLike(value string) bool {
	return ParsePrice(value) != nil
}

// Candidate is one (column, validator) step of a fallback chain.
type Candidate struct {
	Column string
	Valid  Validator
}

// FieldRule is the ordered fallback chain for one field.
type FieldRule struct {
	Field      Field
	Candidates []Candidate
}

// Schema holds the fallback rules used to map raw rows onto CatalogRecords.
type Schema struct {
	Rules []FieldRule

	// PlaceholderPrefix builds the synthetic id for rows with no usable identifier.
	PlaceholderPrefix string
}

// DefaultPlaceholderPrefix prefixes the row index of synthetic identifiers.
const DefaultPlaceholderPrefix = "ASIN_"

// defaultColumns is the column layout of the public product catalog exports.
var defaultColumns = map[Field][]string{
	FieldID:          {"asin", "input_asin"},
	FieldTitle:       {"title"},
	FieldDescription: {"description"},
	FieldBrand:       {"brand", "manufacturer"},
	FieldCategories:  {"categories"},
	FieldPrice:       {"final_price", "initial_price"},
	FieldImageURL:    {"image_url"},
	FieldRating:      {"rating"},
	FieldReviewCount: {"reviews_count"},
}

// validatorFor returns the candidate validator used for a field's columns.
func validatorFor(field Field) Validator {
	if field == FieldPrice {
		return PriceLike
	}
	return Present
}

// DefaultSchema returns the schema for the standard catalog export layout.
func DefaultSchema() Schema {
	schema, _ := SchemaFromColumns(nil) // the built-in layout is always valid
	return schema
}

// SchemaFromColumns builds a schema from the default layout with the given
// per-field column chains substituted. Keys are Field names.
func SchemaFromColumns(overrides map[string][]string) (Schema, error) {
	columns := make(map[Field][]string, len(defaultColumns))
	for field, cols := range defaultColumns {
		columns[field] = slices.Clone(cols)
	}

	for name, cols := range overrides {
		field := Field(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(Fields, field) {
			return Schema{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		chain := make([]string, 0, len(cols))
		for _, col := range cols {
			if col = strings.TrimSpace(col); col != "" {
				chain = append(chain, col)
			}
		}
		if len(chain) == 0 {
			return Schema{}, fmt.Errorf("%w: %q", ErrEmptyColumnChain, name)
		}
		columns[field] = chain
	}

	schema := Schema{PlaceholderPrefix: DefaultPlaceholderPrefix}
	for _, field := range Fields {
		rule := FieldRule{Field: field}
		for _, col := range columns[field] {
			rule.Candidates = append(rule.Candidates, Candidate{Column: col, Valid: validatorFor(field)})
		}
		schema.Rules = append(schema.Rules, rule)
	}
	return schema, nil
}

// Rule returns the fallback chain for field.
func (s Schema) Rule(field Field) (FieldRule, bool) {
	for _, rule := range s.Rules {
		if rule.Field == field {
			return rule, true
		}
	}
	return FieldRule{}, false
}

// Resolve walks the field's chain and returns the first valid value.
func (s Schema) Resolve(row core.RawRow, field Field) (string, bool) {
	rule, ok := s.Rule(field)
	if !ok {
		return "", false
	}
	for _, c := range rule.Candidates {
		value, present := row.Get(c.Column)
		if !present {
			continue
		}
		valid := c.Valid
		if valid == nil {
			valid = Present
		}
		if valid(value) {
			return value, true
		}
	}
	return "", false
}

// Placeholder returns the synthetic identifier for the row at index.
func (s Schema) Placeholder(index int) string {
	prefix := s.PlaceholderPrefix
	if prefix == "" {
		prefix = DefaultPlaceholderPrefix
	}
	return fmt.Sprintf("%s%d", prefix, index)
}
