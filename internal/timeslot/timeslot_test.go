package timeslot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 2, hour, minute, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	t.Run("rejects from equal to to", func(t *testing.T) {
		_, err := New(at(10, 0), at(10, 0))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSlot))
	})

	t.Run("rejects inverted slot", func(t *testing.T) {
		_, err := New(at(11, 0), at(10, 0))
		assert.ErrorIs(t, err, ErrInvalidSlot)
	})

	t.Run("stores instants in UTC", func(t *testing.T) {
		tokyo := time.FixedZone("JST", 9*3600)
		slot, err := New(time.Date(2024, 1, 2, 19, 0, 0, 0, tokyo), time.Date(2024, 1, 2, 20, 0, 0, 0, tokyo))
		require.NoError(t, err)
		assert.Equal(t, time.UTC, slot.From.Location())
		assert.Equal(t, at(10, 0), slot.From)
	})
}

func TestTimeSlot_Overlaps(t *testing.T) {
	base := MustNew(at(10, 0), at(11, 0))

	tests := []struct {
		name  string
		other TimeSlot
		want  bool
	}{
		{"identical", MustNew(at(10, 0), at(11, 0)), true},
		{"partial start", MustNew(at(9, 30), at(10, 15)), true},
		{"inside", MustNew(at(10, 15), at(10, 30)), true},
		{"touching end", MustNew(at(11, 0), at(12, 0)), false},
		{"touching start", MustNew(at(9, 0), at(10, 0)), false},
		{"disjoint", MustNew(at(13, 0), at(14, 0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestTimeSlot_Within(t *testing.T) {
	outer := MustNew(at(9, 0), at(12, 0))

	assert.True(t, MustNew(at(9, 0), at(12, 0)).Within(outer))
	assert.True(t, MustNew(at(10, 0), at(11, 0)).Within(outer))
	assert.False(t, MustNew(at(8, 59), at(11, 0)).Within(outer))
	assert.True(t, outer.Contains(MustNew(at(11, 0), at(12, 0))))
	assert.False(t, outer.Contains(MustNew(at(11, 0), at(12, 1))))
}

func TestTimeSlot_CommonPartWith(t *testing.T) {
	common, ok := MustNew(at(9, 0), at(11, 0)).CommonPartWith(MustNew(at(10, 0), at(12, 0)))
	require.True(t, ok)
	assert.True(t, common.Equal(MustNew(at(10, 0), at(11, 0))))

	_, ok = MustNew(at(9, 0), at(10, 0)).CommonPartWith(MustNew(at(10, 0), at(11, 0)))
	assert.False(t, ok)
}

func TestTimeSlot_LeftoverAfterRemovingCommonWith(t *testing.T) {
	t.Run("equal slots leave nothing", func(t *testing.T) {
		slot := MustNew(at(9, 0), at(10, 0))
		assert.Empty(t, slot.LeftoverAfterRemovingCommonWith(slot))
	})

	t.Run("disjoint slots are returned as is", func(t *testing.T) {
		a := MustNew(at(9, 0), at(10, 0))
		b := MustNew(at(11, 0), at(12, 0))
		assert.Equal(t, []TimeSlot{a, b}, a.LeftoverAfterRemovingCommonWith(b))
	})

	t.Run("inner slot leaves two pieces", func(t *testing.T) {
		outer := MustNew(at(9, 0), at(12, 0))
		inner := MustNew(at(10, 0), at(11, 0))
		left := outer.LeftoverAfterRemovingCommonWith(inner)
		require.Len(t, left, 2)
		assert.True(t, left[0].Equal(MustNew(at(9, 0), at(10, 0))))
		assert.True(t, left[1].Equal(MustNew(at(11, 0), at(12, 0))))
	})

	t.Run("partial overlap leaves one piece on each side", func(t *testing.T) {
		a := MustNew(at(9, 0), at(11, 0))
		b := MustNew(at(10, 0), at(12, 0))
		left := a.LeftoverAfterRemovingCommonWith(b)
		require.Len(t, left, 2)
		assert.True(t, left[0].Equal(MustNew(at(9, 0), at(10, 0))))
		assert.True(t, left[1].Equal(MustNew(at(11, 0), at(12, 0))))
	})

	t.Run("shared start leaves the tail", func(t *testing.T) {
		a := MustNew(at(9, 0), at(12, 0))
		b := MustNew(at(9, 0), at(10, 0))
		left := a.LeftoverAfterRemovingCommonWith(b)
		require.Len(t, left, 1)
		assert.True(t, left[0].Equal(MustNew(at(10, 0), at(12, 0))))
	})
}

func TestTimeSlot_Duration(t *testing.T) {
	assert.Equal(t, 90*time.Minute, MustNew(at(9, 0), at(10, 30)).Duration())
	assert.Equal(t, 24*time.Hour, ForDay(2024, time.February, 29).Duration())
}
