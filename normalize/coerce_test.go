package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNullSentinel(t *testing.T) {
	for _, v := range []string{"", "   ", "nan", "NaN", "None", "null", "NULL", "N/A", "<NA>", " nan "} {
		assert.True(t, IsNullSentinel(v), "expected %q to be null", v)
	}
	for _, v := range []string{"0", "Nancy", "nano", "Sony", "-"} {
		assert.False(t, IsNullSentinel(v), "expected %q to be a value", v)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"$1,299.99", ptr(1299.99)},
		{"19.99", ptr(19.99)},
		{"USD 45", ptr(45)},
		{"€ 7.50", ptr(7.5)},
		{"0", ptr(0)},
		{"", nil},
		{"nan", nil},
		{"free", nil},
		{"1.2.3", nil},
		{".", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParsePrice(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"4.5", ptr(4.5)},
		{"7.5", ptr(5.0)},
		{"-1", ptr(0.0)},
		{" 3 ", ptr(3.0)},
		{"5", ptr(5.0)},
		{"", nil},
		{"NaN", nil},
		{"Inf", nil},
		{"4.5 out of 5 stars", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseRating(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
			assert.GreaterOrEqual(t, *got, 0.0)
			assert.LessOrEqual(t, *got, 5.0)
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"1.2K", 1200},
		{"1.2k", 1200},
		{"2M", 2000000},
		{"2.5m", 2500000},
		{"1,234", 1234},
		{"87", 87},
		{"", 0},
		{"nan", 0},
		{"many", 0},
		{"-5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReviewCount(tt.raw))
		})
	}
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "hierarchy",
			raw:  "Electronics > Audio > Headphones",
			want: []string{"Electronics", "Audio", "Headphones"},
		},
		{
			name: "pipe separated",
			raw:  "Home|Kitchen|Cookware",
			want: []string{"Home", "Kitchen", "Cookware"},
		},
		{
			name: "bracketed list",
			raw:  `["Electronics", "Computers", 'Mice']`,
			want: []string{"Electronics", "Computers", "Mice"},
		},
		{
			name: "truncated to five",
			raw:  "a,b,c,d,e,f,g",
			want: []string{"a", "b", "c", "d", "e"},
		},
		{
			name: "empty tokens dropped",
			raw:  "Toys, , ,Games,",
			want: []string{"Toys", "Games"},
		},
		{
			name: "null",
			raw:  "nan",
			want: []string{},
		},
		{
			name: "empty brackets",
			raw:  "[]",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCategories(tt.raw)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptr(v float64) *float64 {
	return &v
}
