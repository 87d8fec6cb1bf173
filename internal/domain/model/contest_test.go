package model_test

import (
	"math"
	"testing"
	"time"

	model "github.com/okian/fightrank/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestRowValue(t *testing.T) {
	convey.Convey("Given a doubled row", t, func() {
		row := model.Row{
			SelfID:  "a",
			OtherID: "b",
			Date:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			Values:  map[string]float64{"win": 1, "landed": math.NaN()},
		}

		convey.Convey("When reading a present column", func() {
			v, ok := row.Value("win")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 1)
		})

		convey.Convey("When reading a NaN or missing column", func() {
			_, ok := row.Value("landed")
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = row.Value("attempted")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When listing columns", func() {
			convey.So(row.Columns(), convey.ShouldResemble, []string{"landed", "win"})
		})
	})
}

func TestTableHelpers(t *testing.T) {
	convey.Convey("Given a small table", t, func() {
		table := model.Table{
			{SelfID: "b", OtherID: "a", Values: map[string]float64{"x": 1}},
			{SelfID: "a", OtherID: "b", Values: map[string]float64{"y": 1}},
			{SelfID: "c", OtherID: "a"},
		}

		convey.Convey("Then entity ids and columns are sorted and distinct", func() {
			convey.So(table.EntityIDs(), convey.ShouldResemble, []string{"a", "b", "c"})
			convey.So(table.Columns(), convey.ShouldResemble, []string{"x", "y"})
		})
	})
}

func TestParseResult(t *testing.T) {
	convey.Convey("Given result codes", t, func() {
		convey.So(model.ParseResult("a"), convey.ShouldEqual, model.ResultAWin)
		convey.So(model.ParseResult(" B "), convey.ShouldEqual, model.ResultBWin)
		convey.So(model.ParseResult("D"), convey.ShouldEqual, model.ResultDraw)
		convey.So(model.ParseResult(""), convey.ShouldEqual, model.ResultUnknown)
		convey.So(model.ResultDraw.String(), convey.ShouldEqual, "D")
	})
}
