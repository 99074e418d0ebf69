package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed statements.yaml
var defaultCatalogYAML []byte

// MinStatementsPerLane is the smallest lane size a catalog may have; the
// selector's coverage phase needs two statements per lane.
const MinStatementsPerLane = 2

// #region catalog
// Catalog is the immutable, ordered statement collection.
type Catalog struct {
	statements []Statement
	byID       map[string]int
}

// New builds a catalog from statements, validating ids and lanes.
func New(statements []Statement) (*Catalog, error) {
	c := &Catalog{
		statements: make([]Statement, 0, len(statements)),
		byID:       make(map[string]int, len(statements)),
	}
	perLane := make(map[Lane]int, LaneCount)
	var errs []error
	for i, s := range statements {
		switch {
		case s.ID == "":
			errs = append(errs, fmt.Errorf("statement %d: empty id", i))
			continue
		case !s.LaneID.Valid():
			errs = append(errs, fmt.Errorf("statement %s: unknown lane %q", s.ID, s.LaneID))
			continue
		case s.Text == "":
			errs = append(errs, fmt.Errorf("statement %s: empty text", s.ID))
			continue
		}
		if _, dup := c.byID[s.ID]; dup {
			errs = append(errs, fmt.Errorf("statement %s: duplicate id", s.ID))
			continue
		}
		c.byID[s.ID] = len(c.statements)
		c.statements = append(c.statements, s)
		perLane[s.LaneID]++
	}
	for _, l := range lanes {
		if perLane[l] < MinStatementsPerLane {
			errs = append(errs, fmt.Errorf("lane %s: %d statements, need at least %d", l, perLane[l], MinStatementsPerLane))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return c, nil
}

// Default returns the embedded statement catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML document of the form {statements: [{id, text, lane}]}.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Statements []Statement `yaml:"statements"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Statements)
}

// #endregion catalog

// #region lookups
// All returns every statement in catalog order.
func (c *Catalog) All() []Statement {
	out := make([]Statement, len(c.statements))
	copy(out, c.statements)
	return out
}

// Len returns the number of statements.
func (c *Catalog) Len() int {
	return len(c.statements)
}

// ByID returns the statement with the given id.
func (c *Catalog) ByID(id string) (Statement, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Statement{}, false
	}
	return c.statements[i], true
}

// IsValidID reports whether id resolves to a catalog statement.
func (c *Catalog) IsValidID(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// ByLane returns the statements of one lane in catalog order.
func (c *Catalog) ByLane(l Lane) []Statement {
	var out []Statement
	for _, s := range c.statements {
		if s.LaneID == l {
			out = append(out, s)
		}
	}
	return out
}

// Unseen returns, in catalog order, the statements whose ids are not in seen.
func (c *Catalog) Unseen(seen map[string]bool) []Statement {
	out := make([]Statement, 0, len(c.statements))
	for _, s := range c.statements {
		if !seen[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// FirstUnseen returns the first statement in catalog order that is not in seen.
func (c *Catalog) FirstUnseen(seen map[string]bool) (Statement, bool) {
	for _, s := range c.statements {
		if !seen[s.ID] {
			return s, true
		}
	}
	return Statement{}, false
}

// #endregion lookups
