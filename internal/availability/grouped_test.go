package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resource-scheduler/internal/timeslot"
)

func freshGroup(t *testing.T, from, to int) ResourceGroupedAvailability {
	t.Helper()
	group, err := Of("resource-1", timeslot.MustNew(clock(from, 0), clock(to, 0)), "", DefaultSegment())
	require.NoError(t, err)
	return group
}

func TestOf(t *testing.T) {
	group := freshGroup(t, 10, 12)

	assert.Equal(t, 8, group.Size())
	assert.True(t, group.IsEntirelyAvailable())
	for _, r := range group.Resources() {
		assert.Zero(t, r.Version)
		assert.Equal(t, ResourceID("resource-1"), r.ResourceID)
	}
}

func TestResourceGroupedAvailability_Block(t *testing.T) {
	owner := Owner("owner-1")

	t.Run("blocks every row", func(t *testing.T) {
		group := freshGroup(t, 10, 11)

		require.True(t, group.Block(owner))
		assert.True(t, group.BlockedEntirelyBy(owner))
		for _, r := range group.Resources() {
			assert.Equal(t, int64(1), r.Version)
			v, ok := group.LoadedVersion(r.ID)
			require.True(t, ok)
			assert.Zero(t, v)
		}
	})

	t.Run("same owner may block again", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Block(owner))
		assert.True(t, group.Block(owner))
	})

	t.Run("one foreign row rejects the whole group", func(t *testing.T) {
		rows := freshGroup(t, 10, 11).Resources()
		rows[2].Blockade = OwnedBy("someone-else")
		group := NewGrouped(rows, timeslot.MustNew(clock(10, 0), clock(11, 0)))
		before := group.Resources()

		assert.False(t, group.Block(owner))
		assert.Equal(t, before, group.Resources())
	})

	t.Run("disabled rows cannot be blocked", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Disable(owner))
		assert.False(t, group.Block(owner))
	})

	t.Run("gap in rows is a conflict", func(t *testing.T) {
		rows := freshGroup(t, 10, 11).Resources()
		rows = append(rows[:1], rows[2:]...)
		group := NewGrouped(rows, timeslot.MustNew(clock(10, 0), clock(11, 0)))

		assert.False(t, group.Block(owner))
	})

	t.Run("rows not reaching window end are a conflict", func(t *testing.T) {
		rows := freshGroup(t, 10, 11).Resources()
		group := NewGrouped(rows, timeslot.MustNew(clock(10, 0), clock(12, 0)))

		assert.False(t, group.Block(owner))
	})

	t.Run("empty group fails closed", func(t *testing.T) {
		group := None()
		assert.False(t, group.Block(owner))
		assert.False(t, group.Release(owner))
		assert.False(t, group.Disable(owner))
		assert.False(t, group.Enable(owner))
		assert.False(t, group.IsEntirelyAvailable())
	})

	t.Run("absent owner cannot block", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		assert.False(t, group.Block(NoOwner))
	})
}

func TestResourceGroupedAvailability_Release(t *testing.T) {
	owner := Owner("owner-1")

	t.Run("block then release restores availability", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Block(owner))
		require.True(t, group.Release(owner))
		assert.True(t, group.IsEntirelyAvailable())
	})

	t.Run("other owner cannot release", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Block(owner))
		assert.False(t, group.Release("owner-2"))
		assert.True(t, group.BlockedEntirelyBy(owner))
	})

	t.Run("mixed free and held rows are a conflict", func(t *testing.T) {
		rows := freshGroup(t, 10, 11).Resources()
		rows[0].Blockade = OwnedBy(owner)
		group := NewGrouped(rows, timeslot.MustNew(clock(10, 0), clock(11, 0)))

		assert.False(t, group.Release(owner))
	})

	t.Run("releasing free rows succeeds", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		assert.True(t, group.Release(owner))
	})

	t.Run("disabled rows cannot be released by another owner", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Disable(owner))
		assert.False(t, group.Release("owner-2"))
		assert.True(t, group.IsDisabledEntirelyBy(owner))
	})
}

func TestResourceGroupedAvailability_Disable(t *testing.T) {
	owner := Owner("owner-1")

	t.Run("overrides blocks and is idempotent", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Block("owner-2"))

		require.True(t, group.Disable(owner))
		assert.True(t, group.IsDisabledEntirelyBy(owner))
		assert.True(t, group.Disable(owner))
	})

	t.Run("rejects rows disabled by someone else", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Disable("owner-2"))
		assert.False(t, group.Disable(owner))
		assert.True(t, group.IsDisabledEntirelyBy("owner-2"))
	})

	t.Run("only the disabling owner may enable", func(t *testing.T) {
		group := freshGroup(t, 10, 11)
		require.True(t, group.Disable(owner))

		assert.False(t, group.Enable("owner-2"))
		require.True(t, group.Enable(owner))
		assert.True(t, group.IsEntirelyAvailable())
	})
}

func TestResourceGroupedAvailability_ParentGroup(t *testing.T) {
	window := timeslot.MustNew(clock(10, 0), clock(11, 0))
	child1, err := Of("child-1", window, "parent", DefaultSegment())
	require.NoError(t, err)
	child2, err := Of("child-2", window, "parent", DefaultSegment())
	require.NoError(t, err)

	rows := append(child1.Resources(), child2.Resources()...)
	group := NewGrouped(rows, window)

	assert.ElementsMatch(t, []ResourceID{"child-1", "child-2"}, group.ResourceIDs())
	require.True(t, group.Block("owner"))
	assert.Len(t, group.FindBlockedBy("owner"), 8)
}

func TestResourceGroupedAvailability_IsEntirelyAvailable_RequiresCoverage(t *testing.T) {
	rows := freshGroup(t, 10, 11).Resources()
	group := NewGrouped(rows[1:], timeslot.MustNew(clock(10, 0), clock(11, 0)))

	assert.False(t, group.IsEntirelyAvailable())
}
