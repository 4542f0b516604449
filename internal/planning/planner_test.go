package planning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

const day = 24 * time.Hour

func date(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func assertSlot(t *testing.T, schedule Schedule, stage string, want timeslot.TimeSlot) {
	t.Helper()
	got, ok := schedule.Slot(stage)
	require.True(t, ok, "stage %s not scheduled", stage)
	assert.True(t, got.Equal(want), "stage %s: want %s, got %s", stage, want, got)
}

func TestPlanCriticalPath_TimeCriticalWaterfall(t *testing.T) {
	jan1to5 := timeslot.MustNew(date(2020, time.January, 1), date(2020, time.January, 5))
	stages := []Stage{
		NewStage("stage1").OfDuration(2 * day),
		NewStage("stage2").OfDuration(jan1to5.Duration()),
		NewStage("stage3").OfDuration(3 * day),
	}

	schedule, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{"stage2": jan1to5})
	require.NoError(t, err)

	assertSlot(t, schedule, "stage1", timeslot.MustNew(date(2019, time.December, 30), date(2020, time.January, 1)))
	assertSlot(t, schedule, "stage2", jan1to5)
	assertSlot(t, schedule, "stage3", timeslot.MustNew(date(2020, time.January, 5), date(2020, time.January, 8)))
	assert.Equal(t, []string{"stage1", "stage2", "stage3"}, schedule.Stages())
}

func TestPlanCriticalPath_CriticalSlotWinsOverDuration(t *testing.T) {
	pinned := timeslot.MustNew(date(2020, time.January, 1), date(2020, time.January, 2))
	stages := []Stage{
		NewStage("prep").OfDuration(day),
		NewStage("launch").OfDuration(10 * day),
	}

	schedule, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{"launch": pinned})
	require.NoError(t, err)
	assertSlot(t, schedule, "launch", pinned)
	assertSlot(t, schedule, "prep", timeslot.MustNew(date(2019, time.December, 31), date(2020, time.January, 1)))
}

func TestPlanCriticalPath_BackwardChain(t *testing.T) {
	pinned := timeslot.MustNew(date(2020, time.January, 10), date(2020, time.January, 11))
	stages := []Stage{
		NewStage("a").OfDuration(day),
		NewStage("b").OfDuration(2 * day).DependsOnStage("a"),
		NewStage("c").OfDuration(3 * day).DependsOnStage("b"),
		NewStage("pinned"),
	}

	schedule, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{"pinned": pinned})
	require.NoError(t, err)
	assertSlot(t, schedule, "c", timeslot.MustNew(date(2020, time.January, 7), date(2020, time.January, 10)))
	assertSlot(t, schedule, "b", timeslot.MustNew(date(2020, time.January, 5), date(2020, time.January, 7)))
	assertSlot(t, schedule, "a", timeslot.MustNew(date(2020, time.January, 4), date(2020, time.January, 5)))
}

func TestPlanCriticalPath_BetweenCriticalStages(t *testing.T) {
	first := timeslot.MustNew(date(2020, time.January, 1), date(2020, time.January, 2))
	stages := []Stage{
		NewStage("c1"),
		NewStage("s1").OfDuration(day),
		NewStage("s2").OfDuration(day),
		NewStage("s3").OfDuration(day),
		NewStage("c2"),
	}

	t.Run("slack stays in the middle", func(t *testing.T) {
		second := timeslot.MustNew(date(2020, time.January, 10), date(2020, time.January, 11))
		schedule, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{"c1": first, "c2": second})
		require.NoError(t, err)

		assertSlot(t, schedule, "s1", timeslot.MustNew(date(2020, time.January, 2), date(2020, time.January, 3)))
		assertSlot(t, schedule, "s2", timeslot.MustNew(date(2020, time.January, 3), date(2020, time.January, 4)))
		assertSlot(t, schedule, "s3", timeslot.MustNew(date(2020, time.January, 9), date(2020, time.January, 10)))
	})

	t.Run("exact fit is contiguous", func(t *testing.T) {
		second := timeslot.MustNew(date(2020, time.January, 5), date(2020, time.January, 6))
		schedule, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{"c1": first, "c2": second})
		require.NoError(t, err)

		assertSlot(t, schedule, "s1", timeslot.MustNew(date(2020, time.January, 2), date(2020, time.January, 3)))
		assertSlot(t, schedule, "s2", timeslot.MustNew(date(2020, time.January, 3), date(2020, time.January, 4)))
		assertSlot(t, schedule, "s3", timeslot.MustNew(date(2020, time.January, 4), date(2020, time.January, 5)))
	})

	t.Run("insufficient gap is a conflict", func(t *testing.T) {
		second := timeslot.MustNew(date(2020, time.January, 4), date(2020, time.January, 5))
		_, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{"c1": first, "c2": second})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)
		assert.ErrorIs(t, err, ErrInsufficientGap)

		var cErr *ConflictError
		require.True(t, errors.As(err, &cErr))
		assert.Equal(t, []string{"c1", "c2"}, cErr.Stages)
	})
}

func TestPlanCriticalPath_InvalidPins(t *testing.T) {
	stages := []Stage{
		NewStage("a").OfDuration(day),
		NewStage("b").OfDuration(day),
	}

	t.Run("overlapping critical stages", func(t *testing.T) {
		_, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{
			"a": timeslot.MustNew(date(2020, time.January, 1), date(2020, time.January, 3)),
			"b": timeslot.MustNew(date(2020, time.January, 2), date(2020, time.January, 4)),
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.ErrorIs(t, err, ErrCriticalStagesOverlap)
	})

	t.Run("critical stages against stage order", func(t *testing.T) {
		_, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{
			"a": timeslot.MustNew(date(2020, time.January, 5), date(2020, time.January, 6)),
			"b": timeslot.MustNew(date(2020, time.January, 1), date(2020, time.January, 2)),
		})
		assert.ErrorIs(t, err, ErrCriticalStagesOutOfOrder)
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := PlanCriticalPath(stages, map[string]timeslot.TimeSlot{
			"missing": timeslot.MustNew(date(2020, time.January, 1), date(2020, time.January, 2)),
		})
		assert.ErrorIs(t, err, ErrUnknownStage)
		assert.NotErrorIs(t, err, ErrConflict)
	})

	t.Run("no critical stage", func(t *testing.T) {
		_, err := PlanCriticalPath(stages, nil)
		assert.ErrorIs(t, err, ErrNoCriticalStage)
	})
}

func TestValidateStages(t *testing.T) {
	assert.ErrorIs(t, ValidateStages([]Stage{NewStage("a"), NewStage("a")}), ErrInvalidStages)
	assert.ErrorIs(t, ValidateStages([]Stage{NewStage("")}), ErrInvalidStages)
	assert.ErrorIs(t, ValidateStages([]Stage{NewStage("a").DependsOnStage("b"), NewStage("b")}), ErrInvalidStages)
	assert.NoError(t, ValidateStages([]Stage{NewStage("a"), NewStage("b").DependsOnStage("a")}))
}

func TestPlanFromStart(t *testing.T) {
	stages := []Stage{
		NewStage("design").OfDuration(2 * day),
		NewStage("build").OfDuration(5 * day),
	}
	schedule, err := PlanFromStart(stages, date(2021, time.March, 1))
	require.NoError(t, err)
	assertSlot(t, schedule, "design", timeslot.MustNew(date(2021, time.March, 1), date(2021, time.March, 3)))
	assertSlot(t, schedule, "build", timeslot.MustNew(date(2021, time.March, 3), date(2021, time.March, 8)))

	span, ok := schedule.Span()
	require.True(t, ok)
	assert.Equal(t, 7*day, span.Duration())

	_, err = PlanFromStart([]Stage{NewStage("empty")}, date(2021, time.March, 1))
	assert.ErrorIs(t, err, ErrInvalidStages)
}

func TestSchedule_IsImmutable(t *testing.T) {
	source := map[string]timeslot.TimeSlot{"a": timeslot.ForDay(2020, time.January, 1)}
	schedule := NewSchedule(source)
	source["a"] = timeslot.ForDay(2021, time.January, 1)

	copied := schedule.AsMap()
	copied["b"] = timeslot.ForDay(2022, time.January, 1)

	assertSlot(t, schedule, "a", timeslot.ForDay(2020, time.January, 1))
	_, ok := schedule.Slot("b")
	assert.False(t, ok)
}

func TestSchedule_Dates(t *testing.T) {
	schedule := NewSchedule(map[string]timeslot.TimeSlot{
		"review": timeslot.ForDay(2020, time.January, 3),
		"build":  timeslot.ForDay(2020, time.January, 2),
		"design": timeslot.ForDay(2020, time.January, 1),
	})

	dates := schedule.Dates()
	require.Len(t, dates, 3)
	assert.Equal(t, []string{"design", "build", "review"}, []string{dates[0].Stage, dates[1].Stage, dates[2].Stage})
	assert.True(t, dates[1].Slot.Equal(timeslot.ForDay(2020, time.January, 2)))

	assert.Empty(t, EmptySchedule().Dates())
}

func TestDemands_WithDoesNotShareStorage(t *testing.T) {
	goDev, java := DemandFor(capability.Skill("go")), DemandFor(capability.Skill("java"))
	base := DemandsOf(goDev)

	a := base.With(java)
	b := base.With(DemandFor(capability.Asset("laptop")))

	require.Len(t, base, 1)
	assert.Equal(t, []string{"SKILL:go", "SKILL:java"}, a.Strings())
	assert.Equal(t, []capability.Capability{capability.Skill("go"), capability.Asset("laptop")}, b.Capabilities())
	assert.Nil(t, Demands(nil).With())

	stage := NewStage("build").WithDemands(goDev)
	copied := stage.WithDemands(java)
	copied.Demands[0] = java
	assert.Equal(t, DemandsOf(goDev), stage.Demands)
}

func TestProject_PinStage(t *testing.T) {
	project := NewProject("p-1", "waterfall", date(2020, time.January, 1))
	project, err := project.DefineStages(
		NewStage("stage1").OfDuration(2*day).WithDemands(DemandFor(capability.Skill("go"))),
		NewStage("stage2").OfDuration(4*day),
		NewStage("stage3").OfDuration(3*day),
	)
	require.NoError(t, err)
	project = project.AddDemands(DemandFor(capability.Asset("laptop")))

	pinned, err := project.PinStage("stage2", timeslot.MustNew(date(2020, time.January, 1), date(2020, time.January, 5)))
	require.NoError(t, err)
	assert.True(t, project.Schedule.IsEmpty())
	assertSlot(t, pinned.Schedule, "stage3", timeslot.MustNew(date(2020, time.January, 5), date(2020, time.January, 8)))

	demands := pinned.ScheduledDemands()
	require.Len(t, demands, 2)
	assert.Equal(t, "stage1", demands[0].Stage)
	assert.True(t, demands[0].Slot.Equal(timeslot.MustNew(date(2019, time.December, 30), date(2020, time.January, 1))))
	assert.True(t, demands[1].Slot.Equal(timeslot.MustNew(date(2019, time.December, 30), date(2020, time.January, 8))))

	_, err = pinned.PinStage("stage3", timeslot.MustNew(date(2020, time.January, 3), date(2020, time.January, 6)))
	assert.ErrorIs(t, err, ErrConflict)
}
