package tablefile

import (
	"fmt"
	"io"

	"github.com/okian/fightrank/internal/domain/model"
)

// Doubled table columns.
const (
	colContestID = "contest_id"
	colSelfID    = "self_id"
	colOtherID   = "other_id"
	colSelfName  = "self_name"
	colOtherName = "other_name"
)

var tableFixed = map[string]bool{
	colContestID: true, colSelfID: true, colOtherID: true, colSelfName: true,
	colOtherName: true, colDate: true, colPromotion: true,
}

// ReadTable reads a doubled table. Doubling is not checked here.
func ReadTable(r io.Reader) (model.Table, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require(colContestID, colSelfID, colOtherID, colDate); err != nil {
		return nil, err
	}

	var out model.Table
	err = eachRecord(cr, func(line int, rec []string) error {
		date, err := parseDate(h.get(rec, colDate))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		row := model.Row{
			ContestID: h.get(rec, colContestID),
			SelfID:    h.get(rec, colSelfID),
			OtherID:   h.get(rec, colOtherID),
			SelfName:  h.get(rec, colSelfName),
			OtherName: h.get(rec, colOtherName),
			Date:      date,
			Promotion: h.get(rec, colPromotion),
			Values:    map[string]float64{},
		}
		for col := range h {
			if tableFixed[col] {
				continue
			}
			v, ok, err := parseFloat(h.get(rec, col))
			if err != nil {
				return fmt.Errorf("line %d, column %s: %w", line, col, err)
			}
			if ok {
				row.Values[col] = v
			}
		}
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteTable writes a doubled table with its sorted value columns.
func WriteTable(w io.Writer, t model.Table) error {
	cols := t.Columns()
	head := append([]string{colContestID, colSelfID, colOtherID, colSelfName, colOtherName, colDate, colPromotion}, cols...)
	rows := make([][]string, 0, len(t))
	for i := range t {
		r := &t[i]
		rec := []string{r.ContestID, r.SelfID, r.OtherID, r.SelfName, r.OtherName, formatDate(r.Date), r.Promotion}
		for _, c := range cols {
			rec = append(rec, cell(r.Values, c))
		}
		rows = append(rows, rec)
	}
	return writeAll(w, head, rows)
}
