package matching

import (
	"fmt"
	"strings"

	"github.com/banshee-data/featurebench/internal/features"
)

// Backend selects the nearest-neighbour search structure.
type Backend string

const (
	// BackendBF is exhaustive exact search.
	BackendBF Backend = "MAT_BF"
	// BackendFLANN is an approximate locality-sensitive hashing index.
	BackendFLANN Backend = "MAT_FLANN"
)

var backends = map[string]Backend{
	"MAT_BF":    BackendBF,
	"BF":        BackendBF,
	"MAT_FLANN": BackendFLANN,
	"FLANN":     BackendFLANN,
}

// ParseBackend maps a name to a Backend.
func ParseBackend(s string) (Backend, error) {
	b, ok := backends[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("matcher %q: %w", s, features.ErrUnknownKind)
	}
	return b, nil
}

func (b Backend) String() string { return string(b) }

// Selector decides which candidates become matches.
type Selector string

const (
	// SelectNN keeps the single closest reference row.
	SelectNN Selector = "SEL_NN"
	// SelectKNN keeps the closest row only when it passes the ratio test
	// against the second closest.
	SelectKNN Selector = "SEL_KNN"
)

var selectors = map[string]Selector{
	"SEL_NN":  SelectNN,
	"NN":      SelectNN,
	"SEL_KNN": SelectKNN,
	"KNN":     SelectKNN,
}

// ParseSelector maps a name to a Selector.
func ParseSelector(s string) (Selector, error) {
	sel, ok := selectors[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("selector %q: %w", s, features.ErrUnknownKind)
	}
	return sel, nil
}

func (s Selector) String() string { return string(s) }
