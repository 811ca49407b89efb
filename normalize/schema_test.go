package normalize

import (
	"testing"

	"github.com/poiesic/catalogit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(index int, fields map[string]string) core.RawRow {
	return core.RawRow{Index: index, Fields: fields}
}

func TestDefaultSchema_CoversEveryField(t *testing.T) {
	schema := DefaultSchema()

	for _, field := range Fields {
		rule, ok := schema.Rule(field)
		require.True(t, ok, "missing rule for %s", field)
		assert.NotEmpty(t, rule.Candidates)
	}
	assert.Equal(t, "ASIN_7", schema.Placeholder(7))
}

func TestSchemaResolve_FallbackChain(t *testing.T) {
	schema := DefaultSchema()

	t.Run("primary column wins", func(t *testing.T) {
		v, ok := schema.Resolve(row(0, map[string]string{"brand": "Logitech", "manufacturer": "Logi Inc"}), FieldBrand)
		require.True(t, ok)
		assert.Equal(t, "Logitech", v)
	})

	t.Run("null primary falls back", func(t *testing.T) {
		v, ok := schema.Resolve(row(0, map[string]string{"brand": "nan", "manufacturer": "Logi Inc"}), FieldBrand)
		require.True(t, ok)
		assert.Equal(t, "Logi Inc", v)
	})

	t.Run("missing primary column falls back", func(t *testing.T) {
		v, ok := schema.Resolve(row(0, map[string]string{"input_asin": "B0FALLBACK"}), FieldID)
		require.True(t, ok)
		assert.Equal(t, "B0FALLBACK", v)
	})

	t.Run("unparseable price falls back", func(t *testing.T) {
		v, ok := schema.Resolve(row(0, map[string]string{"final_price": "call us", "initial_price": "$12.00"}), FieldPrice)
		require.True(t, ok)
		assert.Equal(t, "$12.00", v)
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, ok := schema.Resolve(row(0, map[string]string{"brand": ""}), FieldBrand)
		assert.False(t, ok)
	})
}

func TestSchemaFromColumns(t *testing.T) {
	t.Run("override replaces chain", func(t *testing.T) {
		schema, err := SchemaFromColumns(map[string][]string{"brand": {"alt_brand", " vendor "}})
		require.NoError(t, err)

		rule, ok := schema.Rule(FieldBrand)
		require.True(t, ok)
		require.Len(t, rule.Candidates, 2)
		assert.Equal(t, "alt_brand", rule.Candidates[0].Column)
		assert.Equal(t, "vendor", rule.Candidates[1].Column)

		// untouched fields keep defaults
		rule, _ = schema.Rule(FieldID)
		assert.Equal(t, "asin", rule.Candidates[0].Column)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := SchemaFromColumns(map[string][]string{"colour": {"color"}})
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("empty chain", func(t *testing.T) {
		_, err := SchemaFromColumns(map[string][]string{"title": {" "}})
		assert.ErrorIs(t, err, ErrEmptyColumnChain)
	})
}
