package contest_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestID(t *testing.T) {
	Convey("Given two entity ids and a date", t, func() {
		d := day("2020-01-01")

		Convey("Then the id ignores argument order and time of day", func() {
			So(contest.ID("a", "b", d), ShouldEqual, contest.ID("b", "a", d.Add(13*time.Hour)))
			So(len(contest.ID("a", "b", d)), ShouldEqual, 16)
		})

		Convey("Then a different day or pair yields a different id", func() {
			So(contest.ID("a", "b", d), ShouldNotEqual, contest.ID("a", "b", d.AddDate(0, 0, 1)))
			So(contest.ID("a", "b", d), ShouldNotEqual, contest.ID("a", "c", d))
		})
	})
}

func TestDouble(t *testing.T) {
	Convey("Given one contest with per-side statistics", t, func() {
		c := model.Contest{
			Date:      day("2020-01-01").Add(20 * time.Hour),
			Promotion: "UFC",
			A:         model.Side{ID: "a", Name: "Alpha", Stats: map[string]float64{"landed": 16, "attempted": 40}},
			B:         model.Side{ID: "b", Name: "Bravo", Stats: map[string]float64{"landed": 9, "attempted": 30}},
			Result:    model.ResultAWin,
			Values:    map[string]float64{"minutes": 15},
		}

		table := contest.Double([]model.Contest{c}, contest.WithSqrtDiff("sqrt_landed_diff", "landed"))

		Convey("Then two mirrored rows share one contest id", func() {
			So(len(table), ShouldEqual, 2)
			So(table[0].ContestID, ShouldEqual, table[1].ContestID)
			So(table[0].SelfID, ShouldEqual, "a")
			So(table[1].SelfID, ShouldEqual, "b")
			So(table[0].Date, ShouldEqual, day("2020-01-01"))
			So(contest.Validate(table), ShouldBeNil)
		})

		Convey("Then statistics are mirrored with the opp_ prefix", func() {
			So(table[0].Values["landed"], ShouldEqual, 16)
			So(table[0].Values["opp_landed"], ShouldEqual, 9)
			So(table[1].Values["landed"], ShouldEqual, 9)
			So(table[1].Values["minutes"], ShouldEqual, 15)
		})

		Convey("Then the outcome and the sqrt difference are antisymmetric", func() {
			So(table[0].Values["win"], ShouldEqual, 1)
			So(table[1].Values["win"], ShouldEqual, 0)
			So(table[0].Values["sqrt_landed_diff"], ShouldAlmostEqual, 1.0, 1e-12)
			So(table[1].Values["sqrt_landed_diff"], ShouldAlmostEqual, -1.0, 1e-12)
		})

		Convey("When the result is unknown", func() {
			c.Result = model.ResultUnknown
			table := contest.Double([]model.Contest{c})

			Convey("Then the outcome column is absent", func() {
				_, ok := table[0].Value("win")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the contest is a draw", func() {
			c.Result = model.ResultDraw
			table := contest.Double([]model.Contest{c}, contest.WithOutcomeColumn("y"))
			So(table[0].Values["y"], ShouldEqual, 0.5)
			So(table[1].Values["y"], ShouldEqual, 0.5)
		})

		Convey("When a statistic is missing on one side", func() {
			c.B.Stats = map[string]float64{"landed": math.NaN()}
			table := contest.Double([]model.Contest{c}, contest.WithSqrtDiff("d", "landed"))
			_, ok := table[0].Value("d")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a doubled table", t, func() {
		table := contest.Double([]model.Contest{
			{Date: day("2020-01-01"), A: model.Side{ID: "a"}, B: model.Side{ID: "b"}, Result: model.ResultAWin},
			{Date: day("2020-01-02"), A: model.Side{ID: "c"}, B: model.Side{ID: "d"}, Result: model.ResultBWin},
		})

		Convey("When a mirror row is missing", func() {
			err := contest.Validate(table[:3])

			Convey("Then a DoublingError names the offending contest", func() {
				So(errors.Is(err, contest.ErrDoubling), ShouldBeTrue)
				var de *contest.DoublingError
				So(errors.As(err, &de), ShouldBeTrue)
				So(len(de.Violations), ShouldEqual, 1)
				So(de.Violations[0].ContestID, ShouldEqual, table[2].ContestID)
				So(len(de.Violations[0].Rows), ShouldEqual, 1)
				So(err.Error(), ShouldContainSubstring, "c vs d")
			})
		})

		Convey("When a row is duplicated", func() {
			bad := append(model.Table{}, table...)
			bad = append(bad, table[0])
			err := contest.Validate(bad)
			So(errors.Is(err, contest.ErrDoubling), ShouldBeTrue)
		})

		Convey("When both rows share the same orientation", func() {
			bad := append(model.Table{}, table...)
			bad[1] = bad[0]
			var de *contest.DoublingError
			So(errors.As(contest.Validate(bad), &de), ShouldBeTrue)
			So(de.Violations[0].Reason, ShouldEqual, "rows are not mirrored")
		})
	})
}

func TestSortedAndBatches(t *testing.T) {
	Convey("Given an unordered table", t, func() {
		table := model.Table{
			{SelfID: "c", OtherID: "d", Date: day("2020-01-02")},
			{SelfID: "b", OtherID: "a", Date: day("2020-01-01")},
			{SelfID: "a", OtherID: "b", Date: day("2020-01-01")},
			{SelfID: "d", OtherID: "c", Date: day("2020-01-02").Add(3 * time.Hour)},
		}

		sorted := contest.Sorted(table)
		batches := contest.Batches(sorted)

		Convey("Then rows are ordered by date, self, other", func() {
			So(sorted[0].SelfID, ShouldEqual, "a")
			So(sorted[1].SelfID, ShouldEqual, "b")
			So(sorted[2].SelfID, ShouldEqual, "c")
			So(sorted[3].SelfID, ShouldEqual, "d")
			So(table[0].SelfID, ShouldEqual, "c")
		})

		Convey("Then rows are grouped by calendar day", func() {
			So(len(batches), ShouldEqual, 2)
			So(batches[0], ShouldResemble, contest.Batch{Date: day("2020-01-01"), Start: 0, End: 2})
			So(batches[1].Start, ShouldEqual, 2)
			So(batches[1].End, ShouldEqual, 4)
		})
	})
}
