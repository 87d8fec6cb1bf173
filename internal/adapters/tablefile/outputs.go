package tablefile

import (
	"fmt"
	"io"
	"strconv"

	"github.com/okian/fightrank/internal/domain/backtest"
	"github.com/okian/fightrank/internal/domain/isomorphism"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/portfolio"
	"github.com/okian/fightrank/internal/domain/rating"
)

const (
	colAuxID   = "aux_id"
	colCanonID = "canon_id"
)

// ReadCrosswalk reads aux_id,canon_id pairs. A repeated aux id with a
// different canon id is malformed.
func ReadCrosswalk(r io.Reader) (map[string]string, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require(colAuxID, colCanonID); err != nil {
		return nil, err
	}
	out := map[string]string{}
	err = eachRecord(cr, func(line int, rec []string) error {
		aux, canon := h.get(rec, colAuxID), h.get(rec, colCanonID)
		if aux == "" || canon == "" {
			return fmt.Errorf("line %d: %w: empty id", line, ErrMalformed)
		}
		if prev, ok := out[aux]; ok && prev != canon {
			return fmt.Errorf("line %d: %w: %s maps to %s and %s", line, ErrMalformed, aux, prev, canon)
		}
		out[aux] = canon
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteCrosswalk writes entries in the given order.
func WriteCrosswalk(w io.Writer, entries []model.CrosswalkEntry) error {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.AuxID, e.CanonID}
	}
	return writeAll(w, []string{colAuxID, colCanonID}, rows)
}

// WriteStrays writes every unresolved aux id with the index of its
// cluster. Cluster 0 is the largest.
func WriteStrays(w io.Writer, res *isomorphism.Result) error {
	cluster := make(map[string]int, len(res.Strays))
	for i, c := range res.StrayClusters {
		for _, id := range c {
			cluster[id] = i
		}
	}
	rows := make([][]string, 0, len(res.Strays))
	for _, id := range res.Strays {
		c := ""
		if i, ok := cluster[id]; ok {
			c = strconv.Itoa(i)
		}
		rows = append(rows, []string{id, c})
	}
	return writeAll(w, []string{colAuxID, "cluster"}, rows)
}

// WriteSnapshot writes the audit rows of a fit. Offense and defense
// columns are only written for count_ratio.
func WriteSnapshot(w io.Writer, snap *rating.Snapshot) error {
	split := snap.Kind == rating.CountRatio
	head := []string{colContestID, colSelfID, colOtherID, colDate,
		"self_before", "other_before", "self_after", "other_after"}
	if split {
		head = append(head, "self_offense_before", "self_defense_before", "other_offense_before", "other_defense_before")
	}
	head = append(head, "predicted", "expected", "observed")

	rows := make([][]string, 0, len(snap.Rows))
	for i := range snap.Rows {
		r := &snap.Rows[i]
		rec := []string{r.ContestID, r.SelfID, r.OtherID, formatDate(r.Date),
			formatFloat(r.SelfBefore.Value), formatFloat(r.OtherBefore.Value),
			formatFloat(r.SelfAfter.Value), formatFloat(r.OtherAfter.Value)}
		if split {
			rec = append(rec,
				formatFloat(r.SelfBefore.Offense), formatFloat(r.SelfBefore.Defense),
				formatFloat(r.OtherBefore.Offense), formatFloat(r.OtherBefore.Defense))
		}
		rec = append(rec, formatFloat(r.Predicted), optional(r.Expected, r.HasExpected), optional(r.Observed, r.HasObserved))
		rows = append(rows, rec)
	}
	return writeAll(w, head, rows)
}

// WriteBacktest writes one line per fold followed by a pooled line.
func WriteBacktest(w io.Writer, rep *backtest.Report) error {
	head := []string{"fold", "start", "end", "train", "scored", "log_loss", "accuracy", "market_n", "market_log_loss", "edge"}
	rows := make([][]string, 0, len(rep.Folds)+1)
	for _, f := range rep.Folds {
		rows = append(rows, []string{
			strconv.Itoa(f.Window.Index), formatDate(f.Window.Start), formatDate(f.Window.End),
			strconv.Itoa(f.Train), strconv.Itoa(f.Report.N),
			formatFloat(f.Report.LogLoss), formatFloat(f.Report.Accuracy),
			strconv.Itoa(f.Report.MarketN), formatFloat(f.Report.MarketLogLoss), formatFloat(f.Report.Edge),
		})
	}
	p := rep.Pooled
	rows = append(rows, []string{"pooled", "", "", "", strconv.Itoa(p.N),
		formatFloat(p.LogLoss), formatFloat(p.Accuracy),
		strconv.Itoa(p.MarketN), formatFloat(p.MarketLogLoss), formatFloat(p.Edge)})
	return writeAll(w, head, rows)
}

// WriteLedger writes one line per bet. Money columns keep two decimals.
func WriteLedger(w io.Writer, res *portfolio.Result) error {
	head := []string{colContestID, colDate, "entity_id", "prob", "odds", "fraction", "stake", "profit", "status", "settled"}
	rows := make([][]string, 0, len(res.Ledger))
	for _, b := range res.Ledger {
		rows = append(rows, []string{
			b.ContestID, formatDate(b.Date), b.EntityID,
			formatFloat(b.Prob), formatFloat(b.Odds), formatFloat(b.Fraction),
			b.Stake.StringFixed(2), b.Profit.StringFixed(2), string(b.Status), formatDate(b.Settled),
		})
	}
	return writeAll(w, head, rows)
}

// WriteCurve writes the equity curve.
func WriteCurve(w io.Writer, res *portfolio.Result) error {
	rows := make([][]string, 0, len(res.Curve))
	for _, p := range res.Curve {
		rows = append(rows, []string{formatDate(p.Date), p.Bankroll.StringFixed(2), p.Drawdown.StringFixed(4)})
	}
	return writeAll(w, []string{colDate, "bankroll", "drawdown"}, rows)
}

func optional(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return formatFloat(v)
}
