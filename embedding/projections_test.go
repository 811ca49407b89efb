package embedding

import (
	"testing"

	"github.com/poiesic/catalogit/core"
	"github.com/stretchr/testify/assert"
)

func TestBuildProjections(t *testing.T) {
	records := []*core.CatalogRecord{
		{ID: "1", Title: "Wireless Mouse", Description: "Ergonomic", Brand: "Logi"},
		{ID: "2", Title: "Steel Bottle", Brand: ""},
		{ID: "3", Title: "Desk Lamp", Description: "  ", Brand: "Lumo"},
	}

	p := BuildProjections(records)

	assert.Equal(t, []string{"Wireless Mouse", "Steel Bottle", "Desk Lamp"}, p.Titles)
	assert.Equal(t, []string{"Ergonomic", "Steel Bottle", "Desk Lamp"}, p.Descriptions)
	assert.Equal(t, "Wireless Mouse Ergonomic Logi", p.Combined[0])
	assert.Equal(t, "Steel Bottle", p.Combined[1])
	assert.Equal(t, "Desk Lamp    Lumo", p.Combined[2])

	assert.Equal(t, p.Titles, p.Texts(core.VectorTitle))
	assert.Equal(t, p.Descriptions, p.Texts(core.VectorDescription))
	assert.Equal(t, p.Combined, p.Texts(core.VectorCombined))
	assert.Nil(t, p.Texts("bogus"))
}
