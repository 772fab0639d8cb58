package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	worker "github.com/okian/dayflow/internal/adapters/worker"
	logging "github.com/okian/dayflow/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {
		p := worker.NewPool(4, worker.WithName("test-pool"), worker.WithLogger(logging.Nop()))
		ctx := context.Background()

		convey.So(p.Size(), convey.ShouldEqual, 4)

		convey.Convey("When a batch runs", func() {
			out := make([]int, 100)
			err := p.Run(ctx, len(out), func(_ context.Context, i int) error {
				out[i] = i * i
				return nil
			})

			convey.Convey("Then every index is processed once into its own slot", func() {
				convey.So(err, convey.ShouldBeNil)
				for i, v := range out {
					convey.So(v, convey.ShouldEqual, i*i)
				}
			})
		})

		convey.Convey("When the batch is empty", func() {
			called := false
			err := p.Run(ctx, 0, func(context.Context, int) error {
				called = true
				return nil
			})
			convey.So(err, convey.ShouldBeNil)
			convey.So(called, convey.ShouldBeFalse)
		})

		convey.Convey("When a job fails", func() {
			boom := errors.New("boom")
			var calls atomic.Int64
			err := p.Run(ctx, 1000, func(_ context.Context, i int) error {
				calls.Add(1)
				if i == 3 {
					return boom
				}
				return nil
			})

			convey.Convey("Then the error is returned with its index and the batch stops early", func() {
				convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "item 3")
				convey.So(calls.Load(), convey.ShouldBeLessThan, 1000)
			})
		})

		convey.Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := p.Run(cctx, 10, func(context.Context, int) error { return nil })
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
		})
	})
}

func TestMap(t *testing.T) {
	convey.Convey("Given a single-worker pool", t, func() {
		p := worker.NewPool(1)

		convey.Convey("When mapping indices to strings", func() {
			out, err := worker.Map(context.Background(), p, 3, func(_ context.Context, i int) (string, error) {
				return string(rune('a' + i)), nil
			})
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldResemble, []string{"a", "b", "c"})
		})

		convey.Convey("When a mapping fails", func() {
			out, err := worker.Map(context.Background(), p, 3, func(_ context.Context, i int) (int, error) {
				if i == 1 {
					return 0, errors.New("bad")
				}
				return i, nil
			})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(out, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a pool with no explicit size", t, func() {
		convey.So(worker.NewPool(0).Size(), convey.ShouldBeGreaterThan, 0)
	})
}
