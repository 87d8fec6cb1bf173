package features_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/features"
	"github.com/okian/fightrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func weighed(date, promo, a, b string, wa, wb, minutes float64) model.Contest {
	return model.Contest{
		Date:      day(date),
		Promotion: promo,
		A:         model.Side{ID: a, Stats: map[string]float64{"weight": wa}},
		B:         model.Side{ID: b, Stats: map[string]float64{"weight": wb}},
		Result:    model.ResultAWin,
		Values:    map[string]float64{"minutes": minutes},
	}
}

func find(rows []features.Row, date, self, other string) features.Row {
	for _, r := range rows {
		if r.SelfID == self && r.OtherID == other && r.Date.Equal(day(date)) {
			return r
		}
	}
	panic("missing row")
}

func TestExtract(t *testing.T) {
	Convey("Given an extractor with a top tier and a weight column", t, func() {
		ctx := context.Background()
		ext := features.New(
			features.WithTopTier("UFC"),
			features.WithWeightColumn("weight"),
			features.WithMinutesColumn("minutes"),
			features.WithDaysCeiling(365),
		)
		table := contest.Double([]model.Contest{
			weighed("2020-01-01", "UFC", "A", "B", 170, 185, 15),
			weighed("2020-03-01", "LFA", "A", "C", 185, 185, 5),
			weighed("2020-03-01", "LFA", "A", "D", 185, 170, 3),
			weighed("2022-06-01", "UFC", "A", "B", 155, 185, 10),
		})
		rows, err := ext.Extract(ctx, table)
		So(err, ShouldBeNil)
		So(len(rows), ShouldEqual, len(table))

		Convey("Then a debut reads zero counters and the clipped sentinel", func() {
			r := find(rows, "2020-01-01", "A", "B")
			So(r.Self.Contests, ShouldEqual, 0)
			So(r.Self.DaysSinceLast, ShouldEqual, 365)
			So(r.Self.DaysSinceFirst, ShouldEqual, 0)
			So(r.Self.WeightKnown, ShouldBeFalse)
			So(math.IsNaN(r.Self.Vector()[5]), ShouldBeTrue)
		})

		Convey("Then both same-day rows see the counters from before that day", func() {
			c := find(rows, "2020-03-01", "A", "C")
			d := find(rows, "2020-03-01", "A", "D")
			So(c.Self, ShouldResemble, d.Self)
			So(c.Self.Contests, ShouldEqual, 1)
			So(c.Self.TopTier, ShouldEqual, 1)
			So(c.Self.DaysSinceLast, ShouldEqual, 60)
			So(c.Self.WeightPrev, ShouldEqual, 170)
			So(c.Self.Minutes, ShouldEqual, 15)
		})

		Convey("Then later rows include every earlier day and clip long layoffs", func() {
			r := find(rows, "2022-06-01", "A", "B")
			So(r.Self.Contests, ShouldEqual, 3)
			So(r.Self.TopTier, ShouldEqual, 1)
			So(r.Self.DaysSinceLast, ShouldEqual, 365)
			So(r.Self.DaysSinceFirst, ShouldEqual, 882)
			So(r.Self.WeightMin, ShouldEqual, 170)
			So(r.Self.WeightMax, ShouldEqual, 185)
			So(r.Self.WeightPrev, ShouldEqual, 185)
			So(r.Other.Contests, ShouldEqual, 1)
		})

		Convey("Then Diff subtracts the opponent", func() {
			r := find(rows, "2022-06-01", "A", "B")
			diff := r.Diff()
			So(len(diff), ShouldEqual, len(features.Names()))
			So(diff[0], ShouldEqual, 2)
		})
	})

	Convey("Given a table that breaks doubling", t, func() {
		table := contest.Double([]model.Contest{weighed("2020-01-01", "", "A", "B", 1, 1, 1)})[:1]
		_, err := features.New().Extract(context.Background(), table)
		So(errors.Is(err, contest.ErrDoubling), ShouldBeTrue)
	})
}
