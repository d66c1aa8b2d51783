package journey_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/coachmatch/internal/domain/journey"
	. "github.com/smartystreets/goconvey/convey"
)

var errConflict = errors.New("version conflict")

type fakeStore struct {
	journeys  map[string]journey.Journey
	active    bool
	activeErr error
	saveErr   error
	saves     int
}

func (f *fakeStore) HasActiveEngagement(context.Context, string) (bool, error) {
	return f.active, f.activeErr
}

func (f *fakeStore) GetJourney(_ context.Context, id string) (journey.Journey, bool, error) {
	j, ok := f.journeys[id]
	return j, ok, nil
}

func (f *fakeStore) SaveJourney(_ context.Context, j journey.Journey, expected int64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if cur := f.journeys[j.ClientID]; cur.Version != expected {
		return errConflict
	}
	f.saves++
	j.Version = expected + 1
	f.journeys[j.ClientID] = j
	return nil
}

func TestProject(t *testing.T) {
	Convey("Given the pure demotion rule", t, func() {
		Convey("Every in-band stage demotes when nothing is active", func() {
			for _, s := range []journey.Stage{
				journey.StageShortlisting, journey.StageDiscoveryScheduled,
				journey.StageDiscoveryCompleted, journey.StageCoachSelected,
			} {
				next, out := journey.Project(s, false)
				So(next, ShouldEqual, journey.StageExploringCoaches)
				So(out, ShouldEqual, journey.OutcomeDemoted)
			}
		})

		Convey("Out-of-band stages are never touched", func() {
			for _, s := range []journey.Stage{
				journey.StageProfileSetup, journey.StageExploringCoaches, journey.StageConnected,
			} {
				next, out := journey.Project(s, false)
				So(next, ShouldEqual, s)
				So(out, ShouldEqual, journey.OutcomeOutOfBand)
			}
		})

		Convey("An active engagement keeps the stage", func() {
			next, out := journey.Project(journey.StageDiscoveryScheduled, true)
			So(next, ShouldEqual, journey.StageDiscoveryScheduled)
			So(out, ShouldEqual, journey.OutcomeActive)
		})
	})
}

func TestProjector(t *testing.T) {
	Convey("Given a projector", t, func() {
		ctx := context.Background()
		store := &fakeStore{journeys: map[string]journey.Journey{
			"c-1": {ClientID: "c-1", Stage: journey.StageDiscoveryScheduled, Version: 2},
		}}
		p := journey.NewProjector(store)

		Convey("When the client has no active engagement", func() {
			out, err := p.Reproject(ctx, "c-1")

			Convey("Then the journey is demoted to exploring_coaches", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, journey.OutcomeDemoted)
				So(store.journeys["c-1"].Stage, ShouldEqual, journey.StageExploringCoaches)
				So(store.journeys["c-1"].Version, ShouldEqual, 3)
			})

			Convey("And reprojecting again is a no-op", func() {
				out, err := p.Reproject(ctx, "c-1")
				So(err, ShouldBeNil)
				So(out, ShouldEqual, journey.OutcomeOutOfBand)
				So(store.saves, ShouldEqual, 1)
			})
		})

		Convey("When the client still has an active engagement", func() {
			store.active = true
			out, err := p.Reproject(ctx, "c-1")

			Convey("Then the journey is unchanged", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, journey.OutcomeActive)
				So(store.journeys["c-1"].Stage, ShouldEqual, journey.StageDiscoveryScheduled)
			})
		})

		Convey("When the client never had a journey", func() {
			out, err := p.Reproject(ctx, "c-new")

			Convey("Then profile_setup is left alone", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, journey.OutcomeOutOfBand)
				So(store.saves, ShouldEqual, 0)
			})
		})

		Convey("When the store fails", func() {
			boom := errors.New("boom")
			store.activeErr = boom
			_, err := p.Reproject(ctx, "c-1")

			Convey("Then the error is returned for the caller to retry", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When the journey changed concurrently", func() {
			store.saveErr = errConflict
			_, err := p.Reproject(ctx, "c-1")

			Convey("Then the conflict is surfaced", func() {
				So(errors.Is(err, errConflict), ShouldBeTrue)
			})
		})
	})
}

func TestParseStage(t *testing.T) {
	Convey("Given journey stage names", t, func() {
		s, err := journey.ParseStage("coach_selected")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, journey.StageCoachSelected)

		_, err = journey.ParseStage("onboarding")
		So(errors.Is(err, journey.ErrUnknownStage), ShouldBeTrue)
	})
}
