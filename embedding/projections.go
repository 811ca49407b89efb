package embedding

import (
	"strings"

	"github.com/poiesic/catalogit/core"
)

// TitleText is the title projection of a record.
func TitleText(r *core.CatalogRecord) string {
	return r.Title
}

// DescriptionText is the description projection; it falls back to the title
// when the record has no description.
func DescriptionText(r *core.CatalogRecord) string {
	if strings.TrimSpace(r.Description) == "" {
		return r.Title
	}
	return r.Description
}

// CombinedText joins title, description and brand.
func CombinedText(r *core.CatalogRecord) string {
	return strings.TrimSpace(r.Title + " " + r.Description + " " + r.Brand)
}

// Projections holds the three parallel text views of a batch of records.
type Projections struct {
	Titles       []string
	Descriptions []string
	Combined     []string
}

// BuildProjections derives the text views for records, index-aligned with the input.
func BuildProjections(records []*core.CatalogRecord) Projections {
	p := Projections{
		Titles:       make([]string, len(records)),
		Descriptions: make([]string, len(records)),
		Combined:     make([]string, len(records)),
	}
	for i, r := range records {
		p.Titles[i] = TitleText(r)
		p.Descriptions[i] = DescriptionText(r)
		p.Combined[i] = CombinedText(r)
	}
	return p
}

// Texts returns the projection for col.
func (p Projections) Texts(col core.VectorColumn) []string {
	switch col {
	case core.VectorTitle:
		return p.Titles
	case core.VectorDescription:
		return p.Descriptions
	case core.VectorCombined:
		return p.Combined
	}
	return nil
}
