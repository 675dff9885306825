package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
	. "github.com/smartystreets/goconvey/convey"
)

func resolveAll(event model.Event, raws []model.RawResult) ([]model.ResolvedResult, error) {
	out := make([]model.ResolvedResult, 0, len(raws))
	for i, r := range raws {
		out = append(out, model.ResolvedResult{EventID: event.ID, MemberID: r.MemberID, Position: i + 1, Points: 1})
	}
	return out, nil
}

func TestMemoryStoreMembers(t *testing.T) {
	Convey("Given a store capped at two members per society", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithMaxMembers(2))

		So(s.UpsertMember(ctx, model.Member{ID: "b", SocietyID: "soc", DisplayName: "Bob"}), ShouldBeNil)
		So(s.UpsertMember(ctx, model.Member{ID: "a", SocietyID: "soc", DisplayName: "Ann"}), ShouldBeNil)

		Convey("Members are listed by ID", func() {
			got, err := s.Members(ctx, "soc")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].ID, ShouldEqual, "a")
		})

		Convey("An existing member can still be renamed", func() {
			So(s.UpsertMember(ctx, model.Member{ID: "a", SocietyID: "soc", DisplayName: "Anne"}), ShouldBeNil)
			got, _ := s.Members(ctx, "soc")
			So(got[0].DisplayName, ShouldEqual, "Anne")
		})

		Convey("A third member is refused", func() {
			err := s.UpsertMember(ctx, model.Member{ID: "c", SocietyID: "soc"})
			So(errors.Is(err, ErrSocietyFull), ShouldBeTrue)
		})

		Convey("Another society is unaffected", func() {
			So(s.UpsertMember(ctx, model.Member{ID: "c", SocietyID: "other"}), ShouldBeNil)
		})

		Convey("A member without an ID is invalid", func() {
			So(errors.Is(s.UpsertMember(ctx, model.Member{SocietyID: "soc"}), ErrInvalid), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreEvents(t *testing.T) {
	Convey("Given a store with one event", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		ev := model.Event{ID: "e1", SocietyID: "soc", Date: "2025-05-01", Format: model.FormatStableford, Entrants: []string{"a"}}
		So(s.CreateEvent(ctx, ev), ShouldBeNil)

		Convey("Defaults are filled in", func() {
			got, err := s.Event(ctx, "e1")
			So(err, ShouldBeNil)
			So(got.Classification, ShouldEqual, model.ClassificationGeneral)
			So(got.ResultsStatus, ShouldEqual, model.StatusNone)
		})

		Convey("Returned events do not alias stored state", func() {
			got, _ := s.Event(ctx, "e1")
			got.Entrants[0] = "z"
			again, _ := s.Event(ctx, "e1")
			So(again.Entrants, ShouldResemble, []string{"a"})
		})

		Convey("Creating it again is a duplicate", func() {
			So(errors.Is(s.CreateEvent(ctx, ev), ErrDuplicate), ShouldBeTrue)
		})

		Convey("An unknown format is invalid", func() {
			err := s.CreateEvent(ctx, model.Event{ID: "e2", SocietyID: "soc", Format: "matchplay"})
			So(errors.Is(err, ErrInvalid), ShouldBeTrue)
			So(errors.Is(err, model.ErrUnknownFormat), ShouldBeTrue)
		})

		Convey("An unknown event is not found", func() {
			_, err := s.Event(ctx, "nope")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Events are listed per society", func() {
			So(s.CreateEvent(ctx, model.Event{ID: "x", SocietyID: "other", Format: model.FormatBoth}), ShouldBeNil)
			got, err := s.Events(ctx, "soc")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 1)
		})
	})
}

func TestMemoryStoreDraftAndPublish(t *testing.T) {
	Convey("Given an event with no scores", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		So(s.CreateEvent(ctx, model.Event{ID: "e1", SocietyID: "soc", Date: "2025-05-01", Format: model.FormatStableford}), ShouldBeNil)

		Convey("Publishing before any draft is refused", func() {
			_, _, err := s.Publish(ctx, "e1", resolveAll)
			So(errors.Is(err, publication.ErrNoScores), ShouldBeTrue)
		})

		Convey("When a draft is saved twice", func() {
			_, err := s.SaveDraft(ctx, "e1", []model.RawResult{{MemberID: "a", Stableford: model.IntPtr(30)}, {MemberID: "b"}})
			So(err, ShouldBeNil)
			ev, err := s.SaveDraft(ctx, "e1", []model.RawResult{{MemberID: "a", Stableford: model.IntPtr(33)}})
			So(err, ShouldBeNil)

			Convey("Then the second save replaces the first", func() {
				So(ev.ResultsStatus, ShouldEqual, model.StatusDraft)
				raws, _ := s.RawResults(ctx, []string{"e1"})
				So(len(raws["e1"]), ShouldEqual, 1)
				So(*raws["e1"][0].Stableford, ShouldEqual, 33)
				So(raws["e1"][0].EventID, ShouldEqual, "e1")
			})

			Convey("Then no log rows exist yet", func() {
				rows, _ := s.ResolvedResults(ctx, []string{"e1"})
				So(rows, ShouldBeEmpty)
			})

			Convey("And the publish function fails", func() {
				_, _, err := s.Publish(ctx, "e1", func(model.Event, []model.RawResult) ([]model.ResolvedResult, error) {
					return nil, publication.ErrIncompleteScores
				})

				Convey("Then nothing changes", func() {
					So(errors.Is(err, publication.ErrIncompleteScores), ShouldBeTrue)
					ev, _ := s.Event(ctx, "e1")
					So(ev.ResultsStatus, ShouldEqual, model.StatusDraft)
					rows, _ := s.ResolvedResults(ctx, []string{"e1"})
					So(rows, ShouldBeEmpty)
				})
			})

			Convey("And it is published", func() {
				ev, rows, err := s.Publish(ctx, "e1", resolveAll)
				So(err, ShouldBeNil)

				Convey("Then the event is locked with its log rows", func() {
					So(ev.ResultsStatus, ShouldEqual, model.StatusPublished)
					So(len(rows), ShouldEqual, 1)
					logged, _ := s.ResolvedResults(ctx, []string{"e1"})
					So(logged["e1"], ShouldResemble, rows)
				})

				Convey("Then further drafts are refused", func() {
					_, err := s.SaveDraft(ctx, "e1", nil)
					So(errors.Is(err, publication.ErrLocked), ShouldBeTrue)
				})

				Convey("Then a second publish is refused", func() {
					_, _, err := s.Publish(ctx, "e1", resolveAll)
					So(errors.Is(err, publication.ErrAlreadyPublished), ShouldBeTrue)
				})
			})
		})

		Convey("A draft for an unknown event is not found", func() {
			_, err := s.SaveDraft(ctx, "nope", nil)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("A score for another event is invalid", func() {
			_, err := s.SaveDraft(ctx, "e1", []model.RawResult{{EventID: "e2", MemberID: "a"}})
			So(errors.Is(err, ErrInvalid), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreImport(t *testing.T) {
	Convey("Given a legacy published event imported with inline scores", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		ev := model.Event{ID: "old", SocietyID: "soc", Date: "2024-06-01", Format: model.FormatStrokeplay, ResultsStatus: model.StatusPublished}
		So(s.ImportEvent(ctx, ev, []model.RawResult{{MemberID: "a", StrokeplayGross: model.IntPtr(72)}}), ShouldBeNil)

		Convey("Its scores are readable but it has no log rows", func() {
			raws, _ := s.RawResults(ctx, []string{"old", "missing"})
			So(len(raws["old"]), ShouldEqual, 1)
			So(raws, ShouldNotContainKey, "missing")
			rows, _ := s.ResolvedResults(ctx, []string{"old"})
			So(rows, ShouldBeEmpty)
		})

		Convey("Importing it twice is a duplicate", func() {
			So(errors.Is(s.ImportEvent(ctx, ev, nil), ErrDuplicate), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreConcurrentPublish(t *testing.T) {
	Convey("Given a draft published by many goroutines at once", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		So(s.CreateEvent(ctx, model.Event{ID: "e1", SocietyID: "soc", Date: "2025-05-01", Format: model.FormatStableford}), ShouldBeNil)
		_, err := s.SaveDraft(ctx, "e1", []model.RawResult{{MemberID: "a", Stableford: model.IntPtr(30)}})
		So(err, ShouldBeNil)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := s.Publish(ctx, "e1", resolveAll); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Exactly one publish wins", func() {
			So(succeeded, ShouldEqual, 1)
		})
	})
}
