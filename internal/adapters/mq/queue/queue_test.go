package queue

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity two", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Len(), ShouldEqual, 0)

		Convey("When filling it past capacity", func() {
			So(q.Enqueue(ctx, Job{ID: "1", Target: "win"}), ShouldBeNil)
			So(q.Enqueue(ctx, Job{ID: "2", Target: "sig_strikes"}), ShouldBeNil)
			err := q.Enqueue(ctx, Job{ID: "3"})

			Convey("Then the third job is refused without blocking", func() {
				So(errors.Is(err, ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then jobs come out in order", func() {
				ch := q.Dequeue(ctx)
				So((<-ch).ID, ShouldEqual, "1")
				So((<-ch).Target, ShouldEqual, "sig_strikes")
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, Job{ID: "1"}), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails and pending jobs still drain", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(errors.Is(q.Enqueue(ctx, Job{ID: "2"}), ErrClosed), ShouldBeTrue)
				var got []string
				for j := range q.Dequeue(ctx) {
					got = append(got, j.ID)
				}
				So(got, ShouldResemble, []string{"1"})
			})
		})
	})
}
