package registry_test

import (
	"errors"
	"testing"

	"github.com/okian/fightrank/internal/domain/registry"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	Convey("Given ids registered out of order with duplicates", t, func() {
		r := registry.New([]string{"819", "57", "", "819", "1002"})

		Convey("Then indices follow sorted order", func() {
			So(r.Len(), ShouldEqual, 3)
			So(r.IDs(), ShouldResemble, []string{"1002", "57", "819"})
			i, err := r.Index("57")
			So(err, ShouldBeNil)
			So(i, ShouldEqual, 1)
			So(r.ID(2), ShouldEqual, "819")
			So(r.ID(r.Unknown()), ShouldEqual, "")
		})

		Convey("When an unknown id is looked up in strict mode", func() {
			_, err := r.Index("ghost")

			Convey("Then it fails with the id", func() {
				So(errors.Is(err, registry.ErrUnknownEntity), ShouldBeTrue)
				var ue *registry.UnknownEntityError
				So(errors.As(err, &ue), ShouldBeTrue)
				So(ue.ID, ShouldEqual, "ghost")
			})
		})

		Convey("When the registry is lenient", func() {
			lr := registry.New([]string{"a", "b"}, registry.WithPolicy(registry.Lenient))
			i, err := lr.Index("ghost")

			Convey("Then unknown ids share the reserved slot", func() {
				So(err, ShouldBeNil)
				So(i, ShouldEqual, lr.Unknown())
				So(i, ShouldEqual, 2)
				So(lr.Contains("ghost"), ShouldBeFalse)
			})
		})
	})
}

func TestParsePolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		p, err := registry.ParsePolicy("Lenient")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, registry.Lenient)

		p, err = registry.ParsePolicy("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, registry.Strict)

		_, err = registry.ParsePolicy("forgiving")
		So(errors.Is(err, registry.ErrInvalidPolicy), ShouldBeTrue)
	})
}
