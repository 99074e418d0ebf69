package catalog

// #region lane
// Lane identifies one of the fixed career lanes a statement can belong to.
type Lane string

const (
	Partnerships Lane = "partnerships"
	Content      Lane = "content"
	Community    Lane = "community"
	Product      Lane = "product"
	Operations   Lane = "operations"
	Data         Lane = "data"
	Engineering  Lane = "engineering"
	Design       Lane = "design"
)

// lanes is the canonical lane order. Rankings break rating ties by this order.
var lanes = [...]Lane{
	Partnerships,
	Content,
	Community,
	Product,
	Operations,
	Data,
	Engineering,
	Design,
}

// LaneCount is the number of known lanes.
const LaneCount = len(lanes)

// Lanes returns the known lanes in canonical order.
func Lanes() []Lane {
	out := make([]Lane, len(lanes))
	copy(out, lanes[:])
	return out
}

// Valid reports whether l is one of the known lanes.
func (l Lane) Valid() bool {
	for _, k := range lanes {
		if k == l {
			return true
		}
	}
	return false
}

// Index returns the canonical position of l, or -1 for unknown lanes.
func (l Lane) Index() int {
	for i, k := range lanes {
		if k == l {
			return i
		}
	}
	return -1
}

// #endregion lane

// #region statement
// Statement is a single first-person preference prompt tagged to one lane.
type Statement struct {
	ID     string `yaml:"id" json:"id"`
	Text   string `yaml:"text" json:"text"`
	LaneID Lane   `yaml:"lane" json:"lane_id"`
}

// #endregion statement
