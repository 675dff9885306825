package publication_test

import (
	"errors"
	"testing"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTransition(t *testing.T) {
	Convey("Given the publication state machine", t, func() {
		Convey("When saving a draft", func() {
			for _, from := range []model.ResultsStatus{model.StatusNone, model.StatusDraft, ""} {
				to, err := publication.Transition(from, publication.ActionSaveDraft)
				So(err, ShouldBeNil)
				So(to, ShouldEqual, model.StatusDraft)
			}

			Convey("Then a published event is locked", func() {
				to, err := publication.Transition(model.StatusPublished, publication.ActionSaveDraft)
				So(errors.Is(err, publication.ErrLocked), ShouldBeTrue)
				So(to, ShouldEqual, model.StatusPublished)
			})
		})

		Convey("When publishing", func() {
			to, err := publication.Transition(model.StatusDraft, publication.ActionPublish)
			So(err, ShouldBeNil)
			So(to, ShouldEqual, model.StatusPublished)

			Convey("Then an event without scores cannot publish", func() {
				_, err := publication.Transition(model.StatusNone, publication.ActionPublish)
				So(errors.Is(err, publication.ErrNoScores), ShouldBeTrue)
			})

			Convey("Then publishing twice is rejected", func() {
				_, err := publication.Transition(model.StatusPublished, publication.ActionPublish)
				So(errors.Is(err, publication.ErrAlreadyPublished), ShouldBeTrue)
			})
		})

		Convey("When the action or status is unknown", func() {
			_, err := publication.Transition(model.StatusDraft, publication.Action("unpublish"))
			So(errors.Is(err, publication.ErrUnknownAction), ShouldBeTrue)

			_, err = publication.Transition(model.ResultsStatus("archived"), publication.ActionPublish)
			So(errors.Is(err, model.ErrUnknownStatus), ShouldBeTrue)
		})
	})
}

func TestCountsAndEditable(t *testing.T) {
	Convey("Given each status", t, func() {
		So(publication.Counts(model.StatusPublished), ShouldBeTrue)
		So(publication.Counts(model.StatusDraft), ShouldBeFalse)
		So(publication.Counts(model.StatusNone), ShouldBeFalse)

		So(publication.Editable(model.StatusNone), ShouldBeTrue)
		So(publication.Editable(model.StatusDraft), ShouldBeTrue)
		So(publication.Editable(model.StatusPublished), ShouldBeFalse)
	})
}

func TestValidatePublish(t *testing.T) {
	Convey("Given a strokeplay event", t, func() {
		event := model.Event{ID: "e", Format: model.FormatStrokeplay}
		scored := model.RawResult{EventID: "e", MemberID: "a", StrokeplayGross: model.IntPtr(72)}
		blank := model.RawResult{EventID: "e", MemberID: "b"}

		Convey("When no entrant list is set", func() {
			So(publication.ValidatePublish(event, []model.RawResult{scored, blank}), ShouldBeNil)
			So(errors.Is(publication.ValidatePublish(event, []model.RawResult{blank}), publication.ErrNoScores), ShouldBeTrue)
			So(errors.Is(publication.ValidatePublish(event, nil), publication.ErrNoScores), ShouldBeTrue)
		})

		Convey("When entrants are required", func() {
			event.Entrants = []string{"a", "b", "c"}
			err := publication.ValidatePublish(event, []model.RawResult{scored, blank})

			Convey("Then the missing entrants are named", func() {
				So(errors.Is(err, publication.ErrIncompleteScores), ShouldBeTrue)
				var inc *publication.IncompleteError
				So(errors.As(err, &inc), ShouldBeTrue)
				So(inc.Missing, ShouldResemble, []string{"b", "c"})
				So(err.Error(), ShouldContainSubstring, "2 entrant(s)")
			})
		})

		Convey("When a score is recorded for the wrong metric", func() {
			event.Entrants = []string{"a"}
			stab := model.RawResult{EventID: "e", MemberID: "a", Stableford: model.IntPtr(36)}
			So(errors.Is(publication.ValidatePublish(event, []model.RawResult{stab}), publication.ErrIncompleteScores), ShouldBeTrue)
		})
	})
}
