package isomorphism_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/fightrank/internal/domain/isomorphism"
	"github.com/okian/fightrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func named(date, aID, aName, bID, bName string) model.Contest {
	return model.Contest{
		Date: day(date),
		A:    model.Side{ID: aID, Name: aName},
		B:    model.Side{ID: bID, Name: bName},
	}
}

func anon(date, a, b string) model.Contest {
	return named(date, a, "", b, "")
}

func TestSeedJoin(t *testing.T) {
	Convey("Given canon and aux tables describing the same contest by name", t, func() {
		ctx := context.Background()
		canon := []model.Contest{named("2020-01-01", "819", "Jon Jones", "57", "Rampage Jackson")}
		aux := []model.Contest{named("2020-01-01", "ufc-jones", "jon jones", "ufc-rampage", "  RAMPAGE   jackson ")}

		eng, err := isomorphism.New()
		So(err, ShouldBeNil)
		res, err := eng.Resolve(ctx, canon, aux)
		So(err, ShouldBeNil)

		Convey("Then both sides are mapped by the join", func() {
			So(res.Crosswalk, ShouldResemble, map[string]string{"ufc-jones": "819", "ufc-rampage": "57"})
			So(res.Stats.Joined, ShouldEqual, 2)
			So(res.Strays, ShouldBeEmpty)
			So(res.RunID, ShouldNotBeEmpty)
			So(res.Entries(), ShouldResemble, []model.CrosswalkEntry{
				{AuxID: "ufc-jones", CanonID: "819"},
				{AuxID: "ufc-rampage", CanonID: "57"},
			})
		})
	})

	Convey("Given names that differ by accents and a known alias", t, func() {
		canon := []model.Contest{named("2021-05-01", "1", "José Aldo", "2", "Khabib Nurmagomedov")}
		aux := []model.Contest{named("2021-05-01", "x", "Jose Aldo", "y", "Habib Nurmagomedov")}
		eng, _ := isomorphism.New(isomorphism.WithAliases(map[string]string{"Habib Nurmagomedov": "Khabib Nurmagomedov"}))
		res, err := eng.Resolve(context.Background(), canon, aux)
		So(err, ShouldBeNil)
		So(res.Crosswalk, ShouldResemble, map[string]string{"x": "1", "y": "2"})
	})
}

func TestPropagation(t *testing.T) {
	Convey("Given an aux contest against an already mapped opponent", t, func() {
		canon := []model.Contest{anon("2020-06-01", "Ycanon", "Zcanon")}
		aux := []model.Contest{anon("2020-06-01", "X", "Y")}
		eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"Y": "Ycanon"}))
		res, err := eng.Resolve(context.Background(), canon, aux)

		Convey("Then the shared opponent identifies X", func() {
			So(err, ShouldBeNil)
			So(res.Crosswalk["X"], ShouldEqual, "Zcanon")
			So(res.Stats.Propagated, ShouldEqual, 1)
			So(res.Stats.Seeded, ShouldEqual, 1)
		})
	})

	Convey("Given a chain of opponents reachable from one seed", t, func() {
		canon := []model.Contest{
			anon("2020-01-01", "c1", "c2"),
			anon("2020-02-01", "c2", "c3"),
			anon("2020-03-01", "c3", "c4"),
		}
		aux := []model.Contest{
			anon("2020-01-01", "a1", "a2"),
			anon("2020-02-01", "a2", "a3"),
			anon("2020-03-01", "a3", "a4"),
			anon("2020-03-01", "s1", "s2"),
			anon("2020-04-01", "s2", "s3"),
			anon("2020-04-02", "s4", "s5"),
		}

		Convey("When iterations are unbounded enough", func() {
			eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"a1": "c1"}))
			res, err := eng.Resolve(context.Background(), canon, aux)
			So(err, ShouldBeNil)

			Convey("Then every linked id resolves and the rest are strays", func() {
				So(res.Crosswalk, ShouldResemble, map[string]string{"a1": "c1", "a2": "c2", "a3": "c3", "a4": "c4"})
				So(res.Strays, ShouldResemble, []string{"s1", "s2", "s3", "s4", "s5"})
				So(res.StrayClusters, ShouldResemble, [][]string{{"s1", "s2", "s3"}, {"s4", "s5"}})
				So(res.Stats.Strays, ShouldEqual, 5)
			})
		})

		Convey("When only one iteration is allowed", func() {
			eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"a1": "c1"}), isomorphism.WithIterations(1))
			res, err := eng.Resolve(context.Background(), canon, aux)
			So(err, ShouldBeNil)
			So(res.Crosswalk, ShouldResemble, map[string]string{"a1": "c1", "a2": "c2"})
			So(res.Stats.Iterations, ShouldEqual, 1)
		})
	})
}

func TestConflicts(t *testing.T) {
	Convey("Given two contests that tie one aux id to two canon ids", t, func() {
		ctx := context.Background()
		canon := []model.Contest{
			named("2020-01-01", "S1", "John Smith", "A1", "Al"),
			named("2020-02-01", "S2", "John Smith", "B1", "Bo"),
		}
		aux := []model.Contest{
			named("2020-01-01", "X", "John Smith", "a", "Al"),
			named("2020-02-01", "X", "John Smith", "b", "Bo"),
		}

		Convey("When resolving without overrides", func() {
			eng, _ := isomorphism.New()
			res, err := eng.Resolve(ctx, canon, aux)

			Convey("Then the run fails with both targets and their rows", func() {
				So(res, ShouldBeNil)
				So(errors.Is(err, isomorphism.ErrConflict), ShouldBeTrue)
				var ce *isomorphism.ConflictError
				So(errors.As(err, &ce), ShouldBeTrue)
				So(len(ce.Conflicts), ShouldEqual, 1)
				So(ce.Conflicts[0].AuxID, ShouldEqual, "X")
				So(ce.Conflicts[0].AuxName, ShouldEqual, "John Smith")
				So(ce.Conflicts[0].Targets, ShouldResemble, []string{"S1", "S2"})
				So(len(ce.Conflicts[0].Evidence), ShouldEqual, 2)
				So(err.Error(), ShouldContainSubstring, "S1, S2")
			})
		})

		Convey("When an override settles the id", func() {
			eng, _ := isomorphism.New(isomorphism.WithOverrides(map[string]string{"X": "S1"}))
			res, err := eng.Resolve(ctx, canon, aux)
			So(err, ShouldBeNil)
			So(res.Crosswalk["X"], ShouldEqual, "S1")
			So(res.Crosswalk["a"], ShouldEqual, "A1")
			So(res.Stats.Overrides, ShouldEqual, 1)
		})
	})

	Convey("Given a seed that disagrees with the data", t, func() {
		canon := []model.Contest{named("2020-01-01", "819", "Jon Jones", "57", "Rampage Jackson")}
		aux := []model.Contest{named("2020-01-01", "ufc-jones", "Jon Jones", "ufc-rampage", "Rampage Jackson")}
		eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"ufc-jones": "999"}))
		_, err := eng.Resolve(context.Background(), canon, aux)
		var ce *isomorphism.ConflictError
		So(errors.As(err, &ce), ShouldBeTrue)
		So(ce.Conflicts[0].Targets, ShouldResemble, []string{"819", "999"})
	})

	Convey("Given propagation that contradicts an earlier mapping", t, func() {
		canon := []model.Contest{anon("2020-06-01", "Yc", "Zc")}
		aux := []model.Contest{anon("2020-06-01", "X", "Y")}
		eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"Y": "Yc", "X": "Wc"}))
		_, err := eng.Resolve(context.Background(), canon, aux)
		So(errors.Is(err, isomorphism.ErrConflict), ShouldBeTrue)
	})
}

func TestTournament(t *testing.T) {
	Convey("Given an aux entity with two opponents on one day", t, func() {
		canon := []model.Contest{
			anon("2019-11-01", "Tc", "Pc"),
			anon("2019-11-01", "Tc", "Qc"),
		}
		aux := []model.Contest{
			anon("2019-11-01", "T", "P"),
			anon("2019-11-01", "T", "Q"),
		}
		eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"P": "Pc", "Q": "Qc"}))
		res, err := eng.Resolve(context.Background(), canon, aux)

		Convey("Then it is skipped by propagation and resolved in the final pass", func() {
			So(err, ShouldBeNil)
			So(res.Crosswalk["T"], ShouldEqual, "Tc")
			So(res.Stats.Propagated, ShouldEqual, 0)
			So(res.Stats.Tournament, ShouldEqual, 1)
		})
	})

	Convey("Given a canon opponent with two same-day opponents", t, func() {
		canon := []model.Contest{
			named("2019-11-01", "T1c", "Tom", "Pc", "Pat"),
			named("2019-11-01", "T2c", "Tim", "Pc", "Pat"),
		}
		aux := []model.Contest{named("2019-11-01", "T", "tom", "P", "")}

		Convey("When the name breaks the tie", func() {
			eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"P": "Pc"}))
			res, err := eng.Resolve(context.Background(), canon, aux)
			So(err, ShouldBeNil)
			So(res.Crosswalk["T"], ShouldEqual, "T1c")
		})

		Convey("When nothing breaks the tie", func() {
			aux[0].A.Name = "Ted"
			eng, _ := isomorphism.New(isomorphism.WithSeed(map[string]string{"P": "Pc"}))
			res, err := eng.Resolve(context.Background(), canon, aux)
			So(err, ShouldBeNil)
			_, ok := res.Crosswalk["T"]
			So(ok, ShouldBeFalse)
			So(res.Strays, ShouldResemble, []string{"T"})
		})
	})
}

func TestEngineOptions(t *testing.T) {
	Convey("Given a non-positive iteration budget", t, func() {
		_, err := isomorphism.New(isomorphism.WithIterations(0))
		So(errors.Is(err, isomorphism.ErrInvalidIterations), ShouldBeTrue)
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		eng, _ := isomorphism.New()
		_, err := eng.Resolve(ctx, []model.Contest{anon("2020-01-01", "a", "b")}, []model.Contest{anon("2020-01-01", "x", "y")})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
