package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/adapters/repository"
	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
	"github.com/okian/oom/internal/domain/reconcile"
	"github.com/okian/oom/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func fixedClock() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }

func startService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithClock(fixedClock),
	}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func gross(member string, v int) model.RawResult {
	return model.RawResult{MemberID: member, StrokeplayGross: model.IntPtr(v)}
}

// seedSociety adds members A, B and C and a strokeplay event with the given
// classification.
func seedSociety(ctx context.Context, svc *service.Service, eventID string, class model.Classification) {
	for _, id := range []string{"A", "B", "C"} {
		_, err := svc.AddMember(ctx, model.Member{ID: id, SocietyID: "soc", DisplayName: "Member " + id})
		So(err, ShouldBeNil)
	}
	_, err := svc.CreateEvent(ctx, model.Event{
		ID: eventID, SocietyID: "soc", Name: "Spring Medal", Date: "2025-04-12",
		Classification: class, Format: model.FormatStrokeplay,
	})
	So(err, ShouldBeNil)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("Stats before starting report it stopped", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Publishing before Start is refused", func() {
			_, err := svc.Publish(context.Background(), "e1", "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started with a context that is later cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			cancel()
			defer svc.Stop()

			Convey("Then it keeps running until Stop", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["reconcileMode"], ShouldEqual, "per_event")
				So(stats["pendingPublishes"], ShouldEqual, 0)
			})
		})

		Convey("When stopped", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given an unknown reconcile mode", t, func() {
		svc := service.New(service.WithReconcileMode("newest"))

		Convey("Start fails", func() {
			So(errors.Is(svc.Start(context.Background()), reconcile.ErrUnknownMode), ShouldBeTrue)
		})
	})
}

func TestService_EventsAndDrafts(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService()
		defer svc.Stop()

		Convey("An event without an ID gets one and starts with no results", func() {
			e, err := svc.CreateEvent(ctx, model.Event{SocietyID: "soc", Date: "2025-05-01", Format: model.FormatStableford, ResultsStatus: model.StatusPublished})
			So(err, ShouldBeNil)
			So(e.ID, ShouldNotBeEmpty)
			So(e.ResultsStatus, ShouldEqual, model.StatusNone)
			So(e.Classification, ShouldEqual, model.ClassificationGeneral)
		})

		Convey("An event with an unparsable date is invalid input", func() {
			_, err := svc.CreateEvent(ctx, model.Event{SocietyID: "soc", Date: "someday", Format: model.FormatStableford})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("An event with an unknown format is invalid input", func() {
			_, err := svc.CreateEvent(ctx, model.Event{SocietyID: "soc", Date: "2025-05-01", Format: "skins"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("A member without an ID is invalid input", func() {
			_, err := svc.AddMember(ctx, model.Member{SocietyID: "soc"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a draft is saved", func() {
			seedSociety(ctx, svc, "e1", model.ClassificationOOM)
			e, err := svc.SaveDraft(ctx, "e1", []model.RawResult{gross("A", 72), gross("B", 75), gross("C", 72)})
			So(err, ShouldBeNil)
			So(e.ResultsStatus, ShouldEqual, model.StatusDraft)

			Convey("Then a preview shows the provisional tie for first", func() {
				p, err := svc.PreviewEvent(ctx, "e1")
				So(err, ShouldBeNil)
				So(p.Provisional, ShouldBeTrue)
				So(p.Leaders, ShouldResemble, []string{"A", "C"})
				So(p.Resolution.Placings[0].Points, ShouldEqual, 21.5)
			})

			Convey("Then the draft does not count toward standings", func() {
				report, err := svc.SeasonStandings(ctx, service.StandingsQuery{SocietyID: "soc", Season: 2025})
				So(err, ShouldBeNil)
				So(report.Standings, ShouldBeEmpty)
			})
		})

		Convey("A draft for an unknown event is not found", func() {
			_, err := svc.SaveDraft(ctx, "nope", nil)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("The points table is exposed", func() {
			table := svc.PointsTable()
			So(len(table), ShouldEqual, 10)
			So(table[0].Points, ShouldEqual, 25)
		})
	})
}

func TestService_Publish(t *testing.T) {
	Convey("Given a drafted oom event", t, func() {
		ctx := context.Background()
		var reported []error
		svc := startService(service.WithErrorReporter(func(err error) { reported = append(reported, err) }))
		defer svc.Stop()
		seedSociety(ctx, svc, "e1", model.ClassificationOOM)
		_, err := svc.SaveDraft(ctx, "e1", []model.RawResult{gross("A", 72), gross("B", 75), gross("C", 72)})
		So(err, ShouldBeNil)

		Convey("When it is published", func() {
			receipt, err := svc.Publish(ctx, "e1", "key-1")
			So(err, ShouldBeNil)

			Convey("Then the receipt carries the resolved rows", func() {
				So(receipt.ID, ShouldNotBeEmpty)
				So(receipt.EventID, ShouldEqual, "e1")
				So(receipt.PublishedAt, ShouldEqual, fixedClock())
				So(len(receipt.Rows), ShouldEqual, 3)
				So(receipt.Replayed, ShouldBeFalse)
			})

			Convey("Then the season standings count it", func() {
				report, err := svc.SeasonStandings(ctx, service.StandingsQuery{SocietyID: "soc"})
				So(err, ShouldBeNil)
				So(report.SeasonYear, ShouldEqual, 2025)
				So(len(report.Standings), ShouldEqual, 3)
				So(report.Standings[0].MemberID, ShouldEqual, "A")
				So(report.Standings[0].TotalPoints, ShouldEqual, 21.5)
				So(report.Standings[0].DisplayName, ShouldEqual, "Member A")
				So(report.Standings[1].MemberID, ShouldEqual, "C")
				So(report.Standings[2].TotalPoints, ShouldEqual, 15)
				So(report.Events[0].Source, ShouldEqual, reconcile.SourceLog)
			})

			Convey("Then retrying with the same key replays the receipt", func() {
				again, err := svc.Publish(ctx, "e1", "key-1")
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, receipt.ID)
				So(again.Replayed, ShouldBeTrue)
			})

			Convey("Then publishing again without the key conflicts", func() {
				_, err := svc.Publish(ctx, "e1", "")
				So(errors.Is(err, publication.ErrAlreadyPublished), ShouldBeTrue)
			})

			Convey("Then further drafts are locked", func() {
				_, err := svc.SaveDraft(ctx, "e1", []model.RawResult{gross("A", 60)})
				So(errors.Is(err, publication.ErrLocked), ShouldBeTrue)
				So(reported, ShouldBeEmpty)
			})
		})

		Convey("When an event with no scores is published", func() {
			_, err := svc.CreateEvent(ctx, model.Event{ID: "e2", SocietyID: "soc", Date: "2025-05-01", Format: model.FormatStrokeplay})
			So(err, ShouldBeNil)
			_, err = svc.Publish(ctx, "e2", "key-2")

			Convey("Then it is refused and the key may be reused", func() {
				So(errors.Is(err, publication.ErrNoScores), ShouldBeTrue)
				_, err = svc.SaveDraft(ctx, "e2", []model.RawResult{gross("A", 70)})
				So(err, ShouldBeNil)
				_, err = svc.Publish(ctx, "e2", "key-2")
				So(err, ShouldBeNil)
			})
		})

		Convey("When a listed entrant has no usable score", func() {
			_, err := svc.CreateEvent(ctx, model.Event{ID: "e3", SocietyID: "soc", Date: "2025-05-08",
				Format: model.FormatStrokeplay, Entrants: []string{"A", "B"}})
			So(err, ShouldBeNil)
			_, err = svc.SaveDraft(ctx, "e3", []model.RawResult{gross("A", 70), {MemberID: "B"}})
			So(err, ShouldBeNil)
			_, err = svc.Publish(ctx, "e3", "")

			Convey("Then publish reports the missing entrant", func() {
				So(errors.Is(err, publication.ErrIncompleteScores), ShouldBeTrue)
				var incomplete *publication.IncompleteError
				So(errors.As(err, &incomplete), ShouldBeTrue)
				So(incomplete.Missing, ShouldResemble, []string{"B"})
			})
		})

		Convey("When the same event is published concurrently", func() {
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				ok       int
				conflict int
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.Publish(ctx, "e1", "")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, publication.ErrAlreadyPublished):
						conflict++
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one succeeds", func() {
				So(ok, ShouldEqual, 1)
				So(conflict, ShouldEqual, 9)
			})
		})

		Convey("When the same key is retried concurrently", func() {
			receipts := make([]service.Receipt, 8)
			var wg sync.WaitGroup
			for i := range receipts {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					receipts[i], _ = svc.Publish(ctx, "e1", "shared")
				}(i)
			}
			wg.Wait()

			Convey("Then every caller gets the same receipt", func() {
				for _, r := range receipts {
					So(r.ID, ShouldEqual, receipts[0].ID)
					So(r.ID, ShouldNotBeEmpty)
				}
			})
		})

		Convey("Publishing an unknown event is not found", func() {
			_, err := svc.Publish(ctx, "missing", "")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Standings(t *testing.T) {
	Convey("Given a season mixing logged, legacy and draft events", t, func() {
		ctx := context.Background()
		svc := startService()
		defer svc.Stop()

		seedSociety(ctx, svc, "oom1", model.ClassificationOOM)
		_, err := svc.SaveDraft(ctx, "oom1", []model.RawResult{gross("A", 72), gross("B", 75), gross("C", 72)})
		So(err, ShouldBeNil)
		_, err = svc.Publish(ctx, "oom1", "")
		So(err, ShouldBeNil)

		So(svc.ImportEvent(ctx, model.Event{
			ID: "legacy-major", SocietyID: "soc", Date: "2025-07-19", Classification: model.ClassificationMajor,
			Format: model.FormatStrokeplay, ResultsStatus: model.StatusPublished,
		}, []model.RawResult{gross("A", 80), gross("B", 70), gross("C", 74)}), ShouldBeNil)

		_, err = svc.CreateEvent(ctx, model.Event{ID: "draft1", SocietyID: "soc", Date: "2025-08-01", Format: model.FormatStrokeplay})
		So(err, ShouldBeNil)
		_, err = svc.SaveDraft(ctx, "draft1", []model.RawResult{gross("C", 60)})
		So(err, ShouldBeNil)

		Convey("When every classification counts", func() {
			report, err := svc.SeasonStandings(ctx, service.StandingsQuery{SocietyID: "soc", Season: 2025})
			So(err, ShouldBeNil)

			Convey("Then the legacy event resolves inline and the draft is ignored", func() {
				So(report.Standings[0].MemberID, ShouldEqual, "B")
				So(report.Standings[0].TotalPoints, ShouldEqual, 40)
				sources := map[string]reconcile.Source{}
				for _, e := range report.Events {
					sources[e.EventID] = e.Source
				}
				So(sources, ShouldResemble, map[string]reconcile.Source{"oom1": reconcile.SourceLog, "legacy-major": reconcile.SourceInline})
			})
		})

		Convey("When only oom events count", func() {
			report, err := svc.SeasonStandings(ctx, service.StandingsQuery{SocietyID: "soc", Season: 2025, OOMOnly: true})
			So(err, ShouldBeNil)

			Convey("Then the major is excluded", func() {
				So(report.Standings[0].TotalPoints, ShouldEqual, 21.5)
				So(len(report.Excluded), ShouldEqual, 2)
			})
		})

		Convey("When another season is requested", func() {
			report, err := svc.SeasonStandings(ctx, service.StandingsQuery{SocietyID: "soc", Season: 2024})
			So(err, ShouldBeNil)
			So(report.Standings, ShouldBeEmpty)
		})

		Convey("When the society is missing", func() {
			_, err := svc.SeasonStandings(ctx, service.StandingsQuery{Season: 2025})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given an event with more finishers than scoring places", t, func() {
		ctx := context.Background()
		svc := startService()
		defer svc.Stop()

		_, err := svc.CreateEvent(ctx, model.Event{ID: "big", SocietyID: "big", Date: "2025-03-01", Format: model.FormatStableford})
		So(err, ShouldBeNil)
		var raws []model.RawResult
		for i := 0; i < 12; i++ {
			raws = append(raws, model.RawResult{MemberID: fmt.Sprintf("m%02d", i), Stableford: model.IntPtr(40 - i)})
		}
		_, err = svc.SaveDraft(ctx, "big", raws)
		So(err, ShouldBeNil)
		_, err = svc.Publish(ctx, "big", "")
		So(err, ShouldBeNil)

		Convey("Zero-point finishers are hidden unless asked for", func() {
			visible, err := svc.SeasonStandings(ctx, service.StandingsQuery{SocietyID: "big", Season: 2025})
			So(err, ShouldBeNil)
			So(len(visible.Standings), ShouldEqual, 10)

			all, err := svc.SeasonStandings(ctx, service.StandingsQuery{SocietyID: "big", Season: 2025, IncludeZero: true})
			So(err, ShouldBeNil)
			So(len(all.Standings), ShouldEqual, 12)
			So(all.Standings[11].Rank, ShouldEqual, 12)
		})
	})
}
