package season_test

import (
	"errors"
	"testing"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/resolver"
	"github.com/okian/oom/internal/domain/season"
	. "github.com/smartystreets/goconvey/convey"
)

func event(id, date string, class model.Classification, status model.ResultsStatus) model.Event {
	return model.Event{
		ID: id, SocietyID: "soc", Date: date,
		Classification: class, Format: model.FormatStrokeplay, ResultsStatus: status,
	}
}

func placing(member string, pos int, pts float64) resolver.Placing {
	return resolver.Placing{MemberID: member, Position: pos, Points: pts}
}

func TestFilter(t *testing.T) {
	Convey("Given a mix of candidate events", t, func() {
		events := []model.Event{
			event("late", "2025-09-01", model.ClassificationMajor, model.StatusPublished),
			event("oom", "2025-05-01", model.ClassificationOOM, model.StatusPublished),
			event("draft", "2025-06-01", model.ClassificationOOM, model.StatusDraft),
			event("none", "2025-06-02", model.ClassificationOOM, model.StatusNone),
			event("old", "2024-06-01", model.ClassificationOOM, model.StatusPublished),
			event("baddate", "June 2025", model.ClassificationOOM, model.StatusPublished),
			{ID: "foreign", SocietyID: "other", Date: "2025-05-01", ResultsStatus: model.StatusPublished},
		}

		Convey("When filtering the 2025 season", func() {
			keep, excluded := season.Filter(events, season.Query{SocietyID: "soc", SeasonYear: 2025})

			Convey("Then only published events of the season count, in date order", func() {
				So(len(keep), ShouldEqual, 2)
				So(keep[0].ID, ShouldEqual, "oom")
				So(keep[1].ID, ShouldEqual, "late")
			})

			Convey("Then every other event carries a reason", func() {
				reasons := map[string]season.Reason{}
				for _, x := range excluded {
					reasons[x.EventID] = x.Reason
				}
				So(reasons, ShouldResemble, map[string]season.Reason{
					"draft":   season.ReasonNotPublished,
					"none":    season.ReasonNotPublished,
					"old":     season.ReasonOtherSeason,
					"baddate": season.ReasonBadDate,
					"foreign": season.ReasonOtherSociety,
				})
			})

			Convey("Then a bad date keeps its parse error", func() {
				for _, x := range excluded {
					if x.EventID == "baddate" {
						So(errors.Is(x.Err, model.ErrBadDate), ShouldBeTrue)
					}
				}
			})
		})

		Convey("When filtering to oom events only", func() {
			keep, _ := season.Filter(events, season.Query{SocietyID: "soc", SeasonYear: 2025, OOMOnly: true})

			Convey("Then the major is dropped", func() {
				So(len(keep), ShouldEqual, 1)
				So(keep[0].ID, ShouldEqual, "oom")
			})
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given two qualifying events", t, func() {
		e1 := event("e1", "2025-04-01", model.ClassificationOOM, model.StatusPublished)
		e2 := event("e2", "2025-05-01", model.ClassificationMajor, model.StatusPublished)
		members := []model.Member{
			{ID: "A", DisplayName: "Alice"},
			{ID: "B", DisplayName: "Bob"},
			{ID: "C", DisplayName: "Cara"},
			{ID: "D", DisplayName: "Dev"},
		}
		contributions := []season.Contribution{
			{Event: e2, Placings: []resolver.Placing{
				placing("B", 1, 25), placing("C", 2, 18), placing("A", 3, 15),
			}},
			{Event: e1, Placings: []resolver.Placing{
				placing("A", 1, 21.5), placing("C", 1, 21.5), placing("B", 3, 15),
			}},
		}

		standings := season.Aggregate(members, contributions)

		Convey("Then totals, wins and events played are summed", func() {
			So(len(standings), ShouldEqual, 3)
			byID := map[string]model.SeasonStanding{}
			for _, s := range standings {
				byID[s.MemberID] = s
			}
			So(byID["A"].TotalPoints, ShouldEqual, 36.5)
			So(byID["A"].Wins, ShouldEqual, 1)
			So(byID["C"].TotalPoints, ShouldEqual, 39.5)
			So(byID["B"].TotalPoints, ShouldEqual, 40)
			So(byID["B"].EventsPlayed, ShouldEqual, 2)
			So(byID["C"].DisplayName, ShouldEqual, "Cara")
		})

		Convey("Then members without placings are absent", func() {
			for _, s := range standings {
				So(s.MemberID, ShouldNotEqual, "D")
			}
		})

		Convey("Then ranks follow points", func() {
			So(standings[0].MemberID, ShouldEqual, "B")
			So(standings[1].MemberID, ShouldEqual, "C")
			So(standings[2].MemberID, ShouldEqual, "A")
			for i, s := range standings {
				So(s.Rank, ShouldEqual, i+1)
			}
		})

		Convey("Then the result does not depend on contribution order", func() {
			reversed := []season.Contribution{contributions[1], contributions[0]}
			So(season.Aggregate(members, reversed), ShouldResemble, standings)
		})
	})

	Convey("Given a member placed twice in one event", t, func() {
		e := event("e", "2025-04-01", model.ClassificationOOM, model.StatusPublished)
		standings := season.Aggregate(nil, []season.Contribution{
			{Event: e, Placings: []resolver.Placing{placing("A", 1, 25), placing("A", 2, 18)}},
		})

		Convey("Then the event counts once", func() {
			So(standings[0].EventsPlayed, ShouldEqual, 1)
			So(standings[0].TotalPoints, ShouldEqual, 25)
		})
	})

	Convey("Given a placed member missing from the roster", t, func() {
		e := event("e", "2025-04-01", model.ClassificationOOM, model.StatusPublished)
		standings := season.Aggregate(nil, []season.Contribution{
			{Event: e, Placings: []resolver.Placing{placing("ghost", 1, 25)}},
		})

		Convey("Then the member still appears without a name", func() {
			So(len(standings), ShouldEqual, 1)
			So(standings[0].DisplayName, ShouldEqual, "")
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given standings with equal points", t, func() {
		standings := []model.SeasonStanding{
			{MemberID: "d", TotalPoints: 30, Wins: 0, EventsPlayed: 3},
			{MemberID: "c", TotalPoints: 30, Wins: 1, EventsPlayed: 2},
			{MemberID: "b", TotalPoints: 30, Wins: 1, EventsPlayed: 3},
			{MemberID: "a", TotalPoints: 30, Wins: 1, EventsPlayed: 3},
			{MemberID: "z", TotalPoints: 0, Wins: 0, EventsPlayed: 1},
		}
		season.Rank(standings)

		Convey("Then wins, events played and member ID break ties", func() {
			order := []string{}
			for _, s := range standings {
				order = append(order, s.MemberID)
			}
			So(order, ShouldResemble, []string{"a", "b", "c", "d", "z"})
		})

		Convey("Then ranks are sequential and never shared", func() {
			for i, s := range standings {
				So(s.Rank, ShouldEqual, i+1)
			}
		})

		Convey("Then the visible view drops zero-point members", func() {
			visible := season.Visible(standings)
			So(len(visible), ShouldEqual, 4)
			So(visible[3].Rank, ShouldEqual, 4)
		})
	})
}
