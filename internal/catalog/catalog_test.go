package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 48, c.Len())
	for _, l := range Lanes() {
		assert.Len(t, c.ByLane(l), 6, "lane %s", l)
	}

	s, ok := c.ByID("pa-01")
	require.True(t, ok)
	assert.Equal(t, Partnerships, s.LaneID)
	assert.True(t, c.IsValidID("de-06"))
	assert.False(t, c.IsValidID("zz-99"))
}

func TestLanes(t *testing.T) {
	ls := Lanes()
	require.Len(t, ls, LaneCount)
	assert.Equal(t, 8, LaneCount)
	for i, l := range ls {
		assert.True(t, l.Valid())
		assert.Equal(t, i, l.Index())
	}
	assert.False(t, Lane("astronaut").Valid())
	assert.Equal(t, -1, Lane("astronaut").Index())

	// Mutating the returned slice must not leak into the catalog order.
	ls[0] = "mutated"
	assert.Equal(t, Partnerships, Lanes()[0])
}

func TestNewRejectsInvalidStatements(t *testing.T) {
	tests := []struct {
		name string
		in   []Statement
	}{
		{"empty id", []Statement{{ID: "", Text: "x", LaneID: Content}}},
		{"unknown lane", []Statement{{ID: "a", Text: "x", LaneID: "astronaut"}}},
		{"empty text", []Statement{{ID: "a", LaneID: Content}}},
		{"too few per lane", []Statement{{ID: "a", Text: "x", LaneID: Content}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	stmts := fullLaneSet()
	stmts = append(stmts, stmts[0])
	_, err := New(stmts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestUnseenAndFirstUnseen(t *testing.T) {
	c, err := New(fullLaneSet())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, s := range c.All()[:3] {
		seen[s.ID] = true
	}
	unseen := c.Unseen(seen)
	assert.Len(t, unseen, c.Len()-3)

	first, ok := c.FirstUnseen(seen)
	require.True(t, ok)
	assert.Equal(t, c.All()[3].ID, first.ID)

	for _, s := range c.All() {
		seen[s.ID] = true
	}
	_, ok = c.FirstUnseen(seen)
	assert.False(t, ok)
	assert.Empty(t, c.Unseen(seen))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, defaultCatalogYAML, 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48, c.Len())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("statements: [unterminated"))
	assert.Error(t, err)
}

func fullLaneSet() []Statement {
	var out []Statement
	for _, l := range Lanes() {
		for i := 0; i < MinStatementsPerLane; i++ {
			out = append(out, Statement{
				ID:     string(l) + "-" + string(rune('a'+i)),
				Text:   "statement for " + string(l),
				LaneID: l,
			})
		}
	}
	return out
}
