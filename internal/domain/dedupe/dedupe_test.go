package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/oom/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

type receipt struct {
	ID   string
	Rows int
}

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper[receipt]()

		So(d.Size(), ShouldEqual, 0)

		Convey("When a key is claimed for the first time", func() {
			_, seen := d.Claim(ctx, "key-1")

			Convey("Then it is recorded as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a completed key is claimed again", func() {
			_, _ = d.Claim(ctx, "key-1")
			d.Complete(ctx, "key-1", receipt{ID: "r1", Rows: 3})
			claim, seen := d.Claim(ctx, "key-1")

			Convey("Then the original outcome is returned", func() {
				So(seen, ShouldBeTrue)
				got, err := claim.Wait(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, receipt{ID: "r1", Rows: 3})
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a duplicate arrives while the first attempt is in flight", func() {
			_, _ = d.Claim(ctx, "key-2")
			claim, seen := d.Claim(ctx, "key-2")
			So(seen, ShouldBeTrue)

			result := make(chan receipt, 1)
			go func() {
				r, _ := claim.Wait(ctx)
				result <- r
			}()
			d.Complete(ctx, "key-2", receipt{ID: "r2"})

			Convey("Then the duplicate receives the first attempt's outcome", func() {
				select {
				case r := <-result:
					So(r.ID, ShouldEqual, "r2")
				case <-time.After(time.Second):
					t.Fatal("waiter was not woken")
				}
			})
		})

		Convey("When the first attempt fails and is unrecorded", func() {
			_, _ = d.Claim(ctx, "key-3")
			waiter, _ := d.Claim(ctx, "key-3")
			d.Unrecord(ctx, "key-3")

			Convey("Then waiters see it was abandoned", func() {
				_, err := waiter.Wait(ctx)
				So(errors.Is(err, dedupe.ErrAbandoned), ShouldBeTrue)
			})

			Convey("Then the key can be claimed afresh", func() {
				_, seen := d.Claim(ctx, "key-3")
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When a waiter's context ends first", func() {
			_, _ = d.Claim(ctx, "key-4")
			claim, _ := d.Claim(ctx, "key-4")
			short, cancel := context.WithTimeout(ctx, time.Millisecond)
			defer cancel()

			Convey("Then Wait returns the context error", func() {
				_, err := claim.Wait(short)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestBoundedDeduper(t *testing.T) {
	Convey("Given a deduper bounded to three keys", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper[int](dedupe.WithMaxSize(3))

		Convey("When more settled keys are added than fit", func() {
			for i := 0; i < 5; i++ {
				key := fmt.Sprintf("k%d", i)
				d.Claim(ctx, key)
				d.Complete(ctx, key, i)
			}

			Convey("Then the oldest are evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, seen := d.Claim(ctx, "k0")
				So(seen, ShouldBeFalse)
				_, seen = d.Claim(ctx, "k4")
				So(seen, ShouldBeTrue)
			})
		})

		Convey("When every key is still in flight", func() {
			for i := 0; i < 4; i++ {
				d.Claim(ctx, fmt.Sprintf("k%d", i))
			}

			Convey("Then none are evicted", func() {
				So(d.Size(), ShouldEqual, 4)
				_, seen := d.Claim(ctx, "k0")
				So(seen, ShouldBeTrue)
			})
		})
	})
}

func TestUnboundedDeduper(t *testing.T) {
	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper[int](dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.Claim(ctx, fmt.Sprint(i))
		}
		So(d.Size(), ShouldEqual, 1000)
	})
}

func TestConcurrentClaims(t *testing.T) {
	Convey("Given many goroutines claiming the same key", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper[int]()

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			first int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, seen := d.Claim(ctx, "same"); !seen {
					mu.Lock()
					first++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one is the first", func() {
			So(first, ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
