package rating_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/rating"
	"github.com/okian/fightrank/internal/domain/registry"
	. "github.com/smartystreets/goconvey/convey"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func bout(date, a, b string, r model.Result) model.Contest {
	return model.Contest{Date: day(date), A: model.Side{ID: a, Name: a}, B: model.Side{ID: b, Name: b}, Result: r}
}

func countBout(date, a, b string, aLanded, aAtt, bLanded, bAtt float64) model.Contest {
	side := func(id string, landed, att float64) model.Side {
		stats := map[string]float64{}
		if !math.IsNaN(att) {
			stats["landed"] = landed
			stats["attempted"] = att
		}
		return model.Side{ID: id, Name: id, Stats: stats}
	}
	return model.Contest{Date: day(date), A: side(a, aLanded, aAtt), B: side(b, bLanded, bAtt)}
}

func rowOf(snap *rating.Snapshot, self, other string) rating.Row {
	for _, r := range snap.Rows {
		if r.SelfID == self && r.OtherID == other {
			return r
		}
	}
	panic("row not found: " + self + " vs " + other)
}

func TestBinaryFit(t *testing.T) {
	Convey("Given a binary estimator with alpha 0.4", t, func() {
		ctx := context.Background()
		alpha := 0.4
		est, err := rating.New(rating.Binary, rating.WithLearningRate(alpha))
		So(err, ShouldBeNil)
		So(est.State(), ShouldEqual, rating.StateUnfit)

		Convey("When A beats B in a single contest", func() {
			table := contest.Double([]model.Contest{bout("2020-01-01", "A", "B", model.ResultAWin)})
			snap, err := est.Fit(ctx, table)
			So(err, ShouldBeNil)

			Convey("Then the prediction starts at one half from zero ratings", func() {
				r := rowOf(snap, "A", "B")
				So(r.Predicted, ShouldEqual, 0.5)
				So(r.SelfBefore.Value, ShouldEqual, 0)
				So(r.OtherBefore.Value, ShouldEqual, 0)
			})

			Convey("Then A gains 0.25 alpha and B loses the same", func() {
				a, _ := snap.Final("A")
				b, _ := snap.Final("B")
				So(a.Value, ShouldAlmostEqual, 0.25*alpha, 1e-12)
				So(b.Value, ShouldAlmostEqual, -0.25*alpha, 1e-12)
				So(est.State(), ShouldEqual, rating.StateFit)
			})

			Convey("Then the update is exactly zero-sum", func() {
				r := rowOf(snap, "A", "B")
				So(r.SelfAfter.Value-r.SelfBefore.Value, ShouldEqual, -(r.OtherAfter.Value - r.OtherBefore.Value))
			})
		})

		Convey("When two disjoint contests share a date", func() {
			contests := []model.Contest{
				bout("2020-01-01", "A", "B", model.ResultAWin),
				bout("2020-01-01", "C", "D", model.ResultBWin),
				bout("2020-02-01", "A", "D", model.ResultAWin),
			}
			table := contest.Double(contests)
			reversed := make(model.Table, len(table))
			for i := range table {
				reversed[len(table)-1-i] = table[i]
			}

			s1, err := est.Fit(ctx, table)
			So(err, ShouldBeNil)
			est2, _ := rating.New(rating.Binary, rating.WithLearningRate(alpha))
			s2, err := est2.Fit(ctx, reversed)
			So(err, ShouldBeNil)

			Convey("Then row order does not change any rating", func() {
				So(len(s1.Rows), ShouldEqual, len(s2.Rows))
				for i := range s1.Rows {
					So(s1.Rows[i], ShouldResemble, s2.Rows[i])
				}
				So(s1.Finals(), ShouldResemble, s2.Finals())
			})
		})

		Convey("When one entity fights twice on the same day", func() {
			table := contest.Double([]model.Contest{
				bout("2020-01-01", "A", "B", model.ResultAWin),
				bout("2020-01-01", "A", "C", model.ResultAWin),
			})
			snap, err := est.Fit(ctx, table)
			So(err, ShouldBeNil)

			Convey("Then both rows see A's pre-day rating and the deltas accumulate", func() {
				So(rowOf(snap, "A", "B").SelfBefore.Value, ShouldEqual, 0)
				So(rowOf(snap, "A", "C").SelfBefore.Value, ShouldEqual, 0)
				a, _ := snap.Final("A")
				So(a.Value, ShouldAlmostEqual, 0.5*alpha, 1e-12)
				So(rowOf(snap, "A", "B").SelfAfter.Value, ShouldAlmostEqual, 0.5*alpha, 1e-12)
			})
		})

		Convey("When a contest has no recorded outcome", func() {
			table := contest.Double([]model.Contest{
				bout("2020-01-01", "A", "B", model.ResultUnknown),
				bout("2020-01-02", "C", "D", model.ResultAWin),
			})
			snap, err := est.Fit(ctx, table)
			So(err, ShouldBeNil)

			Convey("Then it contributes no delta", func() {
				r := rowOf(snap, "A", "B")
				So(r.HasObserved, ShouldBeFalse)
				So(r.SelfAfter, ShouldResemble, r.SelfBefore)
				So(r.OtherAfter, ShouldResemble, r.OtherBefore)
			})
		})
	})
}

func TestNoLookahead(t *testing.T) {
	Convey("Given a history and a contest on date D", t, func() {
		ctx := context.Background()
		history := []model.Contest{
			bout("2020-01-01", "A", "B", model.ResultAWin),
			bout("2020-01-05", "B", "C", model.ResultBWin),
		}
		onD := bout("2020-01-10", "A", "C", model.ResultAWin)
		later := bout("2020-02-01", "A", "C", model.ResultBWin)

		full, _ := rating.New(rating.Binary)
		fullSnap, err := full.Fit(ctx, contest.Double(append(append(append([]model.Contest{}, history...), onD), later)))
		So(err, ShouldBeNil)

		flipped := onD
		flipped.Result = model.ResultBWin
		alt, _ := rating.New(rating.Binary)
		altSnap, err := alt.Fit(ctx, contest.Double(append(append([]model.Contest{}, history...), flipped)))
		So(err, ShouldBeNil)

		Convey("Then before values on D ignore D's own result and everything after it", func() {
			a := rowOf(fullSnap, "A", "C")
			b := rowOf(altSnap, "A", "C")
			So(a.SelfBefore, ShouldResemble, b.SelfBefore)
			So(a.OtherBefore, ShouldResemble, b.OtherBefore)
			So(a.Predicted, ShouldEqual, b.Predicted)
		})

		Convey("Then AsOf(D) equals the before value recorded on D", func() {
			r := rowOf(fullSnap, "A", "C")
			So(fullSnap.AsOf("A", day("2020-01-10")), ShouldResemble, r.SelfBefore)
			So(fullSnap.AsOf("C", day("2020-01-10")), ShouldResemble, r.OtherBefore)
		})

		Convey("Then AsOf is zero before the first contest and forward-fills gaps", func() {
			So(fullSnap.AsOf("C", day("2020-01-05")), ShouldResemble, rating.Rating{})
			after5 := rowOf(fullSnap, "C", "B").SelfAfter
			So(fullSnap.AsOf("C", day("2020-01-09")), ShouldResemble, after5)
			So(fullSnap.AsOf("ghost", day("2030-01-01")), ShouldResemble, rating.Rating{})
		})
	})
}

func TestRealFit(t *testing.T) {
	Convey("Given a real-valued target built from a sqrt difference", t, func() {
		ctx := context.Background()
		c := countBout("2020-01-01", "A", "B", 16, 40, 9, 30)
		table := contest.Double([]model.Contest{c}, contest.WithSqrtDiff("sqrt_diff", "landed"))
		est, err := rating.New(rating.Real, rating.WithTarget("sqrt_diff"), rating.WithLearningRate(1))
		So(err, ShouldBeNil)

		snap, err := est.Fit(ctx, table)
		So(err, ShouldBeNil)

		Convey("Then the identity link predicts zero and both rows push the same way", func() {
			So(rowOf(snap, "A", "B").Predicted, ShouldEqual, 0)
			a, _ := snap.Final("A")
			b, _ := snap.Final("B")
			// two rows, each 0.25 * (1 - 0) on A
			So(a.Value, ShouldAlmostEqual, 0.5, 1e-12)
			So(b.Value, ShouldAlmostEqual, -0.5, 1e-12)
		})

		Convey("Then Predict returns the rating difference", func() {
			preds, err := est.Predict(ctx, table)
			So(err, ShouldBeNil)
			So(preds[0].Predicted, ShouldAlmostEqual, 1.0, 1e-12)
		})
	})
}

func TestCountRatioFit(t *testing.T) {
	Convey("Given a count_ratio estimator", t, func() {
		ctx := context.Background()
		est, err := rating.New(rating.CountRatio, rating.WithCounts("landed", "attempted"), rating.WithLearningRate(0.01))
		So(err, ShouldBeNil)

		Convey("When entity U never records an attempt", func() {
			nan := math.NaN()
			contests := []model.Contest{
				countBout("2020-01-01", "A", "B", 30, 60, 10, 50),
				countBout("2020-01-02", "U", "A", nan, nan, nan, nan),
				countBout("2020-01-03", "B", "U", nan, nan, nan, nan),
				countBout("2020-01-04", "A", "B", 20, 40, 20, 40),
			}
			snap, err := est.Fit(ctx, contest.Double(contests))
			So(err, ShouldBeNil)

			Convey("Then U's offense and defense stay pinned at zero", func() {
				off, def := snap.Pinned("U")
				So(off, ShouldBeTrue)
				So(def, ShouldBeTrue)
				So(snap.Uninformative(), ShouldResemble, []string{"U"})
				u, _ := snap.Final("U")
				So(u, ShouldResemble, rating.Rating{})
				for _, r := range snap.Rows {
					if r.SelfID == "U" {
						So(r.SelfAfter, ShouldResemble, rating.Rating{})
					}
				}
			})

			Convey("Then U's contests leave its opponents untouched", func() {
				r := rowOf(snap, "A", "U")
				So(r.SelfAfter, ShouldResemble, r.SelfBefore)
				r = rowOf(snap, "B", "U")
				So(r.SelfAfter, ShouldResemble, r.SelfBefore)
			})

			Convey("Then the intercept is the logit of the pooled rate", func() {
				p := (30.0 + 10 + 20 + 20) / (60.0 + 50 + 40 + 40)
				So(snap.Intercept, ShouldAlmostEqual, math.Log(p/(1-p)), 1e-12)
			})

			Convey("Then one contest touches four cells", func() {
				r := rowOf(snap, "A", "B")
				p := 1 / (1 + math.Exp(-snap.Intercept))
				So(r.Predicted, ShouldAlmostEqual, p, 1e-12)
				So(r.Expected, ShouldAlmostEqual, p*60, 1e-9)
				dA := 0.01 * (30 - p*60)
				dB := 0.01 * (10 - p*50)
				So(r.SelfAfter.Offense, ShouldAlmostEqual, dA, 1e-12)
				So(r.OtherAfter.Defense, ShouldAlmostEqual, -dA, 1e-12)
				So(r.OtherAfter.Offense, ShouldAlmostEqual, dB, 1e-12)
				So(r.SelfAfter.Defense, ShouldAlmostEqual, -dB, 1e-12)
				So(r.SelfAfter.Value, ShouldAlmostEqual, dA-dB, 1e-12)
			})
		})

		Convey("When entity U is attacked but never attempts", func() {
			nan := math.NaN()
			contests := []model.Contest{
				countBout("2020-01-01", "A", "B", 30, 60, 10, 50),
				countBout("2020-01-02", "U", "A", nan, nan, 20, 40),
			}
			snap, err := est.Fit(ctx, contest.Double(contests))
			So(err, ShouldBeNil)

			Convey("Then only U's offense is pinned", func() {
				off, def := snap.Pinned("U")
				So(off, ShouldBeTrue)
				So(def, ShouldBeFalse)
				So(snap.Uninformative(), ShouldBeEmpty)
			})

			Convey("Then U's defense absorbs A's attempts while its offense stays zero", func() {
				p := 1 / (1 + math.Exp(-snap.Intercept))
				offA := 0.01 * (30 - p*60)
				pred := 1 / (1 + math.Exp(-(offA + snap.Intercept)))
				dDef := -0.01 * (20 - pred*40)

				r := rowOf(snap, "A", "U")
				So(r.Predicted, ShouldAlmostEqual, pred, 1e-12)
				So(r.OtherAfter.Offense, ShouldEqual, 0)
				So(r.OtherAfter.Defense, ShouldAlmostEqual, dDef, 1e-12)
				So(r.SelfAfter.Offense, ShouldAlmostEqual, offA-dDef, 1e-12)

				u, ok := snap.Final("U")
				So(ok, ShouldBeTrue)
				So(u.Offense, ShouldEqual, 0)
				So(u.Value, ShouldAlmostEqual, dDef, 1e-12)
			})
		})

		Convey("When an entity's first contest is missing its statistic", func() {
			nan := math.NaN()
			contests := []model.Contest{
				countBout("2020-01-01", "N", "A", nan, nan, nan, nan),
				countBout("2020-01-02", "N", "B", 25, 50, 10, 50),
			}
			snap, err := est.Fit(ctx, contest.Double(contests))
			So(err, ShouldBeNil)

			Convey("Then its rating before and after that contest is exactly zero", func() {
				r := rowOf(snap, "N", "A")
				So(r.SelfBefore, ShouldResemble, rating.Rating{})
				So(r.SelfAfter, ShouldResemble, rating.Rating{})
				So(snap.AsOf("N", day("2020-01-02")), ShouldResemble, rating.Rating{})
			})

			Convey("Then the first informative contest starts from zero", func() {
				r := rowOf(snap, "N", "B")
				So(r.SelfBefore, ShouldResemble, rating.Rating{})
				So(r.SelfAfter.Offense, ShouldNotEqual, 0)
			})
		})
	})
}

func TestFitFailures(t *testing.T) {
	Convey("Given a fitted estimator", t, func() {
		ctx := context.Background()
		est, _ := rating.New(rating.Binary)
		good := contest.Double([]model.Contest{bout("2020-01-01", "A", "B", model.ResultAWin)})
		first, err := est.Fit(ctx, good)
		So(err, ShouldBeNil)

		Convey("When refitting on a table that breaks doubling", func() {
			bad := contest.Double([]model.Contest{
				bout("2020-01-01", "A", "B", model.ResultAWin),
				bout("2020-01-02", "C", "D", model.ResultAWin),
			})[:3]
			_, err := est.Fit(ctx, bad)

			Convey("Then the fit fails with the offending rows and the old fit survives", func() {
				So(errors.Is(err, contest.ErrDoubling), ShouldBeTrue)
				var de *contest.DoublingError
				So(errors.As(err, &de), ShouldBeTrue)
				So(de.Violations[0].Rows[0].SelfID, ShouldEqual, "C")
				So(est.State(), ShouldEqual, rating.StateFit)
				So(est.Snapshot(), ShouldPointTo, first)
			})
		})

		Convey("When a fresh estimator sees a broken table", func() {
			fresh, _ := rating.New(rating.Binary)
			_, err := fresh.Fit(ctx, good[:1])
			So(errors.Is(err, contest.ErrDoubling), ShouldBeTrue)
			So(fresh.State(), ShouldEqual, rating.StateUnfit)
			_, err = fresh.Predict(ctx, good)
			So(errors.Is(err, rating.ErrNotFit), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := est.Fit(cctx, good)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(est.State(), ShouldEqual, rating.StateFit)
		})
	})
}

func TestConfigErrors(t *testing.T) {
	Convey("Given invalid configurations", t, func() {
		_, err := rating.New(rating.Kind(9))
		So(errors.Is(err, rating.ErrInvalidKind), ShouldBeTrue)
		So(errors.Is(err, rating.ErrInvalidConfig), ShouldBeTrue)

		_, err = rating.New(rating.Binary, rating.WithLearningRate(0))
		So(errors.Is(err, rating.ErrLearningRate), ShouldBeTrue)

		_, err = rating.New(rating.Binary, rating.WithLearningRate(math.NaN()))
		So(errors.Is(err, rating.ErrLearningRate), ShouldBeTrue)

		_, err = rating.New(rating.Real)
		So(errors.Is(err, rating.ErrMissingColumn), ShouldBeTrue)

		_, err = rating.New(rating.CountRatio, rating.WithCounts("landed", ""))
		So(errors.Is(err, rating.ErrMissingColumn), ShouldBeTrue)

		_, err = rating.New(rating.Binary, rating.WithSideColumns([]string{"a", "b"}, []float64{1}))
		So(errors.Is(err, rating.ErrFeatureMismatch), ShouldBeTrue)

		k, err := rating.ParseKind("count_ratio")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, rating.CountRatio)
		_, err = rating.ParseKind("ordinal")
		So(errors.Is(err, rating.ErrInvalidKind), ShouldBeTrue)
	})
}

func TestSideFeatures(t *testing.T) {
	Convey("Given a side feature carrying another model's logit", t, func() {
		ctx := context.Background()
		contests := []model.Contest{bout("2020-01-01", "A", "B", model.ResultAWin)}
		table := contest.Double(contests)
		table[0].Values["prior"] = 1
		table[1].Values["prior"] = -1

		est, err := rating.New(rating.Binary, rating.WithSideColumns([]string{"prior"}, nil))
		So(err, ShouldBeNil)
		snap, err := est.Fit(ctx, table)
		So(err, ShouldBeNil)

		Convey("Then the link adds the offset and the update learns the residual", func() {
			p := 1 / (1 + math.Exp(-1))
			So(rowOf(snap, "A", "B").Predicted, ShouldAlmostEqual, p, 1e-12)
			a, _ := snap.Final("A")
			So(a.Value, ShouldAlmostEqual, 2*0.25*(1-p), 1e-12)
		})

		Convey("When an extractor returns the wrong length", func() {
			bad, err := rating.New(rating.Binary, rating.WithSideFeatures(func(*model.Row) []float64 {
				return []float64{1, 2}
			}, []float64{1}))
			So(err, ShouldBeNil)
			_, err = bad.Fit(ctx, table)
			So(errors.Is(err, rating.ErrFeatureMismatch), ShouldBeTrue)
		})
	})
}

func TestPredict(t *testing.T) {
	Convey("Given a fitted binary estimator", t, func() {
		ctx := context.Background()
		train := contest.Double([]model.Contest{
			bout("2020-01-01", "A", "B", model.ResultAWin),
			bout("2020-01-02", "B", "C", model.ResultAWin),
		})
		test := contest.Double([]model.Contest{bout("2020-03-01", "A", "C", model.ResultUnknown)})

		est, _ := rating.New(rating.Binary)
		snap, preds, err := est.FitPredict(ctx, train, test)
		So(err, ShouldBeNil)
		So(snap, ShouldNotBeNil)

		Convey("Then predictions use the final ratings", func() {
			a, _ := snap.Final("A")
			c, _ := snap.Final("C")
			So(preds[0].Self, ShouldResemble, a)
			So(preds[0].Predicted, ShouldAlmostEqual, 1/(1+math.Exp(-(a.Value-c.Value))), 1e-12)
			So(preds[0].Predicted+preds[1].Predicted, ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("Then predicting twice gives identical output", func() {
			again, err := est.Predict(ctx, test)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, preds)
			So(est.Snapshot(), ShouldPointTo, snap)
		})

		Convey("When an unknown entity appears in strict mode", func() {
			unknown := contest.Double([]model.Contest{bout("2020-03-01", "A", "Z", model.ResultUnknown)})
			_, err := est.Predict(ctx, unknown)
			So(errors.Is(err, registry.ErrUnknownEntity), ShouldBeTrue)
		})

		Convey("When an unknown entity appears in lenient mode", func() {
			lenient, _ := rating.New(rating.Binary, rating.WithUnknownPolicy(registry.Lenient))
			_, err := lenient.Fit(ctx, train)
			So(err, ShouldBeNil)
			unknown := contest.Double([]model.Contest{bout("2020-03-01", "A", "Z", model.ResultUnknown)})
			preds, err := lenient.Predict(ctx, unknown)
			So(err, ShouldBeNil)
			So(preds[0].Other, ShouldResemble, rating.Rating{})
			a, _ := lenient.Snapshot().Final("A")
			So(preds[0].Predicted, ShouldAlmostEqual, 1/(1+math.Exp(-a.Value)), 1e-12)
		})
	})
}
