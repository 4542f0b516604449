// Package planning places project stages in time around pinned critical stages.
package planning

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/resource-scheduler/internal/timeslot"
)

// PlanCriticalPath assigns a slot to every stage. Critical stages keep their
// slot exactly. Stages before the first critical stage are packed backwards
// from its start, stages after the last one forwards from its end. Stages
// between two critical stages are split: the first half (rounded up) runs
// forwards from the earlier one, the rest backwards from the later one, and any
// slack stays in the middle.
func PlanCriticalPath(stages []Stage, critical map[string]timeslot.TimeSlot) (Schedule, error) {
	if err := ValidateStages(stages); err != nil {
		return Schedule{}, err
	}
	if len(critical) == 0 {
		return Schedule{}, ErrNoCriticalStage
	}

	index := make(map[string]int, len(stages))
	for i, s := range stages {
		index[s.Name] = i
	}

	pinned := make([]int, 0, len(critical))
	for name, slot := range critical {
		i, ok := index[name]
		if !ok {
			return Schedule{}, fmt.Errorf("%w: %q", ErrUnknownStage, name)
		}
		if slot.IsEmpty() {
			return Schedule{}, fmt.Errorf("%w: stage %q", timeslot.ErrInvalidSlot, name)
		}
		pinned = append(pinned, i)
	}
	sort.Ints(pinned)

	for _, s := range stages {
		if _, ok := critical[s.Name]; !ok && s.Duration <= 0 {
			return Schedule{}, fmt.Errorf("%w: stage %q has no duration", ErrInvalidStages, s.Name)
		}
	}

	if err := checkPinnedSlots(stages, pinned, critical); err != nil {
		return Schedule{}, err
	}

	slots := make(map[string]timeslot.TimeSlot, len(stages))
	for _, i := range pinned {
		slots[stages[i].Name] = critical[stages[i].Name]
	}

	first, last := pinned[0], pinned[len(pinned)-1]
	backward(stages[:first], critical[stages[first].Name].From, slots)
	forward(stages[last+1:], critical[stages[last].Name].To, slots)

	for k := 0; k+1 < len(pinned); k++ {
		a, b := pinned[k], pinned[k+1]
		between := stages[a+1 : b]
		if len(between) == 0 {
			continue
		}
		start := critical[stages[a].Name].To
		end := critical[stages[b].Name].From
		if total := totalDuration(between); total > end.Sub(start) {
			return Schedule{}, conflict(ErrInsufficientGap, stages[a].Name, stages[b].Name)
		}
		half := (len(between) + 1) / 2
		forward(between[:half], start, slots)
		backward(between[half:], end, slots)
	}

	return Schedule{slots: slots}, nil
}

// PlanFromStart lays all stages out back to back starting at start.
func PlanFromStart(stages []Stage, start time.Time) (Schedule, error) {
	if err := ValidateStages(stages); err != nil {
		return Schedule{}, err
	}
	for _, s := range stages {
		if s.Duration <= 0 {
			return Schedule{}, fmt.Errorf("%w: stage %q has no duration", ErrInvalidStages, s.Name)
		}
	}
	slots := make(map[string]timeslot.TimeSlot, len(stages))
	forward(stages, start.UTC(), slots)
	return Schedule{slots: slots}, nil
}

// ValidateStages checks names are unique and dependencies point backwards.
func ValidateStages(stages []Stage) error {
	seen := make(map[string]struct{}, len(stages))
	for _, s := range stages {
		if s.Name == "" {
			return fmt.Errorf("%w: stage without name", ErrInvalidStages)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidStages, s.Name)
		}
		if s.Duration < 0 {
			return fmt.Errorf("%w: stage %q has negative duration", ErrInvalidStages, s.Name)
		}
		for _, dep := range s.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("%w: stage %q depends on %q which does not precede it", ErrInvalidStages, s.Name, dep)
			}
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

func checkPinnedSlots(stages []Stage, pinned []int, critical map[string]timeslot.TimeSlot) error {
	for x := 0; x < len(pinned); x++ {
		for y := x + 1; y < len(pinned); y++ {
			a, b := stages[pinned[x]].Name, stages[pinned[y]].Name
			if critical[a].Overlaps(critical[b]) {
				return conflict(ErrCriticalStagesOverlap, a, b)
			}
		}
	}
	for k := 0; k+1 < len(pinned); k++ {
		a, b := stages[pinned[k]].Name, stages[pinned[k+1]].Name
		if critical[b].From.Before(critical[a].To) {
			return conflict(ErrCriticalStagesOutOfOrder, a, b)
		}
	}
	return nil
}

func forward(stages []Stage, start time.Time, out map[string]timeslot.TimeSlot) {
	cursor := start
	for _, s := range stages {
		out[s.Name] = timeslot.TimeSlot{From: cursor, To: cursor.Add(s.Duration)}
		cursor = cursor.Add(s.Duration)
	}
}

func backward(stages []Stage, end time.Time, out map[string]timeslot.TimeSlot) {
	cursor := end
	for i := len(stages) - 1; i >= 0; i-- {
		s := stages[i]
		out[s.Name] = timeslot.TimeSlot{From: cursor.Add(-s.Duration), To: cursor}
		cursor = cursor.Add(-s.Duration)
	}
}

func totalDuration(stages []Stage) time.Duration {
	var total time.Duration
	for _, s := range stages {
		total += s.Duration
	}
	return total
}
