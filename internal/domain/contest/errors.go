package contest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/fightrank/internal/domain/model"
)

// Sentinel kinds for contest table errors.
var (
	ErrDoubling = errors.New("doubling invariant violated")
)

// Violation describes one contest id that does not appear as exactly one
// mirrored pair of rows.
type Violation struct {
	ContestID string
	Reason    string
	Rows      []model.Row
}

// DoublingError carries every offending contest id with its rows.
type DoublingError struct {
	Violations []Violation
}

func (e *DoublingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d contest id(s)", ErrDoubling, len(e.Violations))
	for i, v := range e.Violations {
		if i == maxReported {
			fmt.Fprintf(&b, "; ... %d more", len(e.Violations)-maxReported)
			break
		}
		fmt.Fprintf(&b, "; %s (%s", v.ContestID, v.Reason)
		for _, r := range v.Rows {
			fmt.Fprintf(&b, " [%s %s vs %s]", r.Date.Format(dateLayout), r.SelfID, r.OtherID)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *DoublingError) Unwrap() error { return ErrDoubling }

const maxReported = 10
