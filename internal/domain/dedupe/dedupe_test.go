package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/vodcut/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Seen(ctx, "clip-1"), ShouldBeFalse)
		})

		Convey("When an identity is recorded", func() {
			first := d.SeenAndRecord(ctx, "clip-1")
			second := d.SeenAndRecord(ctx, "clip-1")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Seen(ctx, "clip-1"), ShouldBeTrue)
			})

			Convey("And surrounding whitespace is ignored", func() {
				So(d.SeenAndRecord(ctx, "  clip-1 "), ShouldBeTrue)
			})

			Convey("And identities differing in case stay distinct", func() {
				So(d.Seen(ctx, "CLIP-1"), ShouldBeFalse)
			})
		})

		Convey("When only checking", func() {
			d.Seen(ctx, "clip-2")

			Convey("Then nothing is recorded", func() {
				So(d.SeenAndRecord(ctx, "clip-2"), ShouldBeFalse)
			})
		})
	})

	Convey("Given concurrent recorders", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("id-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then every identity is fresh exactly once", func() {
			So(fresh, ShouldEqual, 100)
			for i := 0; i < 100; i++ {
				So(d.Seen(ctx, fmt.Sprintf("id-%d", i)), ShouldBeTrue)
			}
		})
	})
}
