package isomorphism

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/fightrank/internal/domain/model"
)

var (
	// ErrConflict is returned when one aux id would map to several canon ids.
	ErrConflict = errors.New("isomorphism: conflicting mappings")

	// ErrInvalidIterations is returned for a non-positive iteration budget.
	ErrInvalidIterations = errors.New("isomorphism: iterations must be positive")
)

// Match is one piece of evidence: an aux row paired with the canon row it
// was matched against.
type Match struct {
	Phase string
	Aux   model.Row
	Canon model.Row
}

// Conflict lists every canon id proposed for one aux id, with the rows
// behind each proposal.
type Conflict struct {
	AuxID    string
	AuxName  string
	Targets  []string
	Evidence []Match
}

// ConflictError aborts a resolution run. It carries enough detail to write
// an override entry by hand.
type ConflictError struct {
	Conflicts []Conflict
}

const maxReported = 10

func (e *ConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d aux id(s) map to more than one canon id", len(e.Conflicts))
	for i, c := range e.Conflicts {
		if i == maxReported {
			fmt.Fprintf(&b, "; and %d more", len(e.Conflicts)-maxReported)
			break
		}
		fmt.Fprintf(&b, "; %s (%q) -> %s", c.AuxID, c.AuxName, strings.Join(c.Targets, ", "))
		for _, m := range c.Evidence {
			fmt.Fprintf(&b, " [%s %s %s vs %s = %s vs %s]", m.Phase, m.Aux.Date.Format(time.DateOnly),
				m.Aux.SelfName, m.Aux.OtherName, m.Canon.SelfID, m.Canon.OtherID)
		}
	}
	return b.String()
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
