package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func fastConfig(attempts int) Config {
	return Config{
		Attempts:     attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
	}
}

func TestDo(t *testing.T) {
	Convey("Do", t, func() {
		Convey("Should stop on first success", func() {
			calls := 0
			err := Do(context.Background(), nil, fastConfig(3), func() error {
				calls++
				return nil
			})
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 1)
		})

		Convey("Should retry failures until one succeeds", func() {
			calls := 0
			err := Do(context.Background(), nil, fastConfig(3), func() error {
				calls++
				if calls < 3 {
					return errors.New("transient")
				}
				return nil
			})
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 3)
		})

		Convey("Should give up when the attempt budget runs out", func() {
			calls := 0
			err := Do(context.Background(), nil, fastConfig(2), func() error {
				calls++
				return errors.New("always")
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "all 2 attempts failed")
			So(calls, ShouldEqual, 2)
		})

		Convey("Should not retry a permanent error", func() {
			calls := 0
			inner := errors.New("definitive")
			err := Do(context.Background(), nil, fastConfig(5), func() error {
				calls++
				return &Permanent{Err: inner}
			})
			So(err, ShouldEqual, inner)
			So(calls, ShouldEqual, 1)
		})

		Convey("Should honor context cancellation between attempts", func() {
			ctx, cancel := context.WithCancel(context.Background())
			calls := 0
			err := Do(ctx, nil, fastConfig(5), func() error {
				calls++
				cancel()
				return errors.New("transient")
			})
			So(err, ShouldEqual, context.Canceled)
			So(calls, ShouldEqual, 1)
		})

		Convey("Should treat a zero attempt budget as one attempt", func() {
			calls := 0
			_ = Do(context.Background(), nil, Config{}, func() error {
				calls++
				return nil
			})
			So(calls, ShouldEqual, 1)
		})
	})
}

func TestLimiter(t *testing.T) {
	Convey("Limiter", t, func() {
		Convey("Should halve the rate on pushback", func() {
			lim := NewLimiter(8, 1, 20)
			lim.Pushback()
			So(lim.Rate(), ShouldEqual, 4)
		})

		Convey("Should never drop below the floor", func() {
			lim := NewLimiter(2, 1, 20)
			lim.Pushback()
			lim.Pushback()
			lim.Pushback()
			So(lim.Rate(), ShouldEqual, 1)
		})

		Convey("Should not climb right after an error", func() {
			lim := NewLimiter(4, 1, 20)
			lim.Pushback()
			lim.Success()
			So(lim.Rate(), ShouldEqual, 2)
		})

		Convey("Should clamp the initial rate to the floor", func() {
			lim := NewLimiter(0, 2, 20)
			So(lim.Rate(), ShouldEqual, 2)
		})

		Convey("Should allow immediate sends within the burst", func() {
			lim := NewLimiter(5, 1, 20)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			So(lim.Wait(ctx), ShouldBeNil)
		})
	})
}
