package tablefile

import (
	"fmt"
	"io"
	"strings"

	"github.com/okian/fightrank/internal/domain/model"
)

// Contest file columns. Any a_<stat> / b_<stat> column is a per-side
// statistic; every other column is a contest-level value.
const (
	colDate      = "date"
	colPromotion = "promotion"
	colAID       = "a_id"
	colAName     = "a_name"
	colBID       = "b_id"
	colBName     = "b_name"
	colResult    = "result"

	prefixA = "a_"
	prefixB = "b_"
)

var contestFixed = map[string]bool{
	colDate: true, colPromotion: true, colAID: true, colAName: true,
	colBID: true, colBName: true, colResult: true,
}

// ReadContests reads undoubled contests.
func ReadContests(r io.Reader) ([]model.Contest, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require(colDate, colAID, colBID); err != nil {
		return nil, err
	}

	var out []model.Contest
	err = eachRecord(cr, func(line int, rec []string) error {
		date, err := parseDate(h.get(rec, colDate))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		c := model.Contest{
			Date:      date,
			Promotion: h.get(rec, colPromotion),
			A:         model.Side{ID: h.get(rec, colAID), Name: h.get(rec, colAName), Stats: map[string]float64{}},
			B:         model.Side{ID: h.get(rec, colBID), Name: h.get(rec, colBName), Stats: map[string]float64{}},
			Result:    model.ParseResult(h.get(rec, colResult)),
			Values:    map[string]float64{},
		}
		if c.A.ID == "" || c.B.ID == "" {
			return fmt.Errorf("line %d: %w: empty entity id", line, ErrMalformed)
		}
		for col := range h {
			if contestFixed[col] {
				continue
			}
			v, ok, err := parseFloat(h.get(rec, col))
			if err != nil {
				return fmt.Errorf("line %d, column %s: %w", line, col, err)
			}
			if !ok {
				continue
			}
			switch {
			case strings.HasPrefix(col, prefixA):
				c.A.Stats[strings.TrimPrefix(col, prefixA)] = v
			case strings.HasPrefix(col, prefixB):
				c.B.Stats[strings.TrimPrefix(col, prefixB)] = v
			default:
				c.Values[col] = v
			}
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteContests writes contests with the union of their stat and value
// columns.
func WriteContests(w io.Writer, contests []model.Contest) error {
	stats := map[string]struct{}{}
	values := map[string]struct{}{}
	for i := range contests {
		for k := range contests[i].A.Stats {
			stats[k] = struct{}{}
		}
		for k := range contests[i].B.Stats {
			stats[k] = struct{}{}
		}
		for k := range contests[i].Values {
			values[k] = struct{}{}
		}
	}
	statCols := sortedKeys(stats)
	valueCols := sortedKeys(values)

	head := []string{colDate, colPromotion, colAID, colAName, colBID, colBName, colResult}
	for _, s := range statCols {
		head = append(head, prefixA+s)
	}
	for _, s := range statCols {
		head = append(head, prefixB+s)
	}
	head = append(head, valueCols...)

	rows := make([][]string, 0, len(contests))
	for i := range contests {
		c := &contests[i]
		rec := []string{formatDate(c.Date), c.Promotion, c.A.ID, c.A.Name, c.B.ID, c.B.Name, c.Result.String()}
		for _, s := range statCols {
			rec = append(rec, cell(c.A.Stats, s))
		}
		for _, s := range statCols {
			rec = append(rec, cell(c.B.Stats, s))
		}
		for _, v := range valueCols {
			rec = append(rec, cell(c.Values, v))
		}
		rows = append(rows, rec)
	}
	return writeAll(w, head, rows)
}

func cell(m map[string]float64, k string) string {
	if v, ok := m[k]; ok {
		return formatFloat(v)
	}
	return ""
}
