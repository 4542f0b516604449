package application_test

import (
	"context"
	"testing"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/simulation"
	"github.com/example/resource-scheduler/internal/testfixtures"
)

func newFacades(t *testing.T) testfixtures.Facades {
	t.Helper()
	return testfixtures.NewServiceFactory().NewFacades(testfixtures.NewMemoryHarness(t), nil)
}

func TestCapabilityFacade_ScheduleCreatesAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFacades(t)
	day := testfixtures.Slot(9, 0, 17, 0)

	ids, err := f.Capabilities.ScheduleResourceCapabilities(ctx, "alice", []capability.Capability{capability.Skill("java"), capability.Skill("go")}, day)
	if err != nil {
		t.Fatalf("ScheduleResourceCapabilities failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected two entries, got %d", len(ids))
	}

	group, err := f.Availability.FindByParentID(ctx, "alice", day)
	if err != nil {
		t.Fatalf("FindByParentID failed: %v", err)
	}
	if got := len(group.ResourceIDs()); got != 2 {
		t.Fatalf("expected availability rows per entry, got %d resources", got)
	}
	if !group.IsEntirelyAvailable() {
		t.Fatal("expected new entries to be free")
	}
}

func TestCapabilityFacade_FindCapabilitiesBoundaries(t *testing.T) {
	ctx := context.Background()
	f := newFacades(t)
	java := capability.Skill("java")
	if _, err := f.Capabilities.ScheduleResourceCapabilities(ctx, "alice", []capability.Capability{java}, testfixtures.Slot(9, 0, 12, 0)); err != nil {
		t.Fatalf("ScheduleResourceCapabilities failed: %v", err)
	}

	found, err := f.Capabilities.FindCapabilities(ctx, java, testfixtures.Slot(11, 0, 13, 0))
	if err != nil || len(found) != 1 {
		t.Fatalf("expected partial overlap to match, found=%d err=%v", len(found), err)
	}
	found, err = f.Capabilities.FindCapabilities(ctx, java, testfixtures.Slot(12, 0, 13, 0))
	if err != nil || len(found) != 0 {
		t.Fatalf("expected touching slot to be excluded, found=%d err=%v", len(found), err)
	}

	// Allocation needs the whole slot.
	available, err := f.Capabilities.FindAvailableCapabilities(ctx, java, testfixtures.Slot(11, 0, 13, 0))
	if err != nil || len(available) != 0 {
		t.Fatalf("expected partially covered slot to be unavailable, found=%d err=%v", len(available), err)
	}
}

func TestCapabilityFacade_Allocate(t *testing.T) {
	ctx := context.Background()
	f := newFacades(t)
	java := capability.Skill("java")
	day := testfixtures.Slot(9, 0, 17, 0)
	for _, person := range []availability.ResourceID{"alice", "bob"} {
		if _, err := f.Capabilities.ScheduleResourceCapabilities(ctx, person, []capability.Capability{java}, day); err != nil {
			t.Fatalf("ScheduleResourceCapabilities failed: %v", err)
		}
	}

	slot := testfixtures.Slot(10, 0, 12, 0)
	first, ok, err := f.Capabilities.Allocate(ctx, java, slot, "project-1")
	if err != nil || !ok {
		t.Fatalf("expected first allocation, ok=%v err=%v", ok, err)
	}
	second, ok, err := f.Capabilities.Allocate(ctx, java, slot, "project-2")
	if err != nil || !ok {
		t.Fatalf("expected second allocation, ok=%v err=%v", ok, err)
	}
	if first.ResourceID == second.ResourceID {
		t.Fatalf("expected different people, both got %s", first.ResourceID)
	}

	_, ok, err = f.Capabilities.Allocate(ctx, java, slot, "project-3")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if ok {
		t.Fatal("expected no capability left")
	}

	group, err := f.Availability.Find(ctx, first.ID.ToAvailabilityResourceID(), slot)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !group.BlockedEntirelyBy("project-1") {
		t.Fatal("expected allocation to block the entry")
	}
}

func TestCapabilityFacade_Simulate(t *testing.T) {
	ctx := context.Background()
	f := newFacades(t)
	java := capability.Skill("java")
	slot := testfixtures.Slot(10, 0, 11, 0)
	if _, err := f.Capabilities.ScheduleResourceCapabilities(ctx, "alice", []capability.Capability{java}, testfixtures.Slot(9, 0, 17, 0)); err != nil {
		t.Fatalf("ScheduleResourceCapabilities failed: %v", err)
	}

	demands := []simulation.Demand{{Capability: java, Slot: slot}, {Capability: java, Slot: slot}}

	result, err := f.Capabilities.Simulate(ctx, demands, simulation.None())
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if result.Satisfied || len(result.Unmet) != 1 {
		t.Fatalf("expected one unmet demand, got %#v", result)
	}

	hire := simulation.New(simulation.AvailableResourceCapability{ResourceID: "contractor", Capability: java, Slot: testfixtures.ReferenceDay()})
	result, err = f.Capabilities.Simulate(ctx, demands, hire)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if !result.Satisfied {
		t.Fatalf("expected hypothetical hire to cover both demands, got %#v", result)
	}
	if hire.Len() != 1 {
		t.Fatal("expected the extra pool to be left untouched")
	}

	// Nothing was blocked by the simulation.
	available, err := f.Capabilities.FindAvailableCapabilities(ctx, java, slot)
	if err != nil || len(available) != 1 {
		t.Fatalf("expected capability to remain free, found=%d err=%v", len(available), err)
	}
}

func TestCapabilityFacade_SimulateChecksEachDemandSlot(t *testing.T) {
	ctx := context.Background()
	f := newFacades(t)
	java := capability.Skill("java")
	lunch := testfixtures.Slot(12, 0, 13, 0)

	var entries []capability.AllocatableCapabilityID
	for _, person := range []availability.ResourceID{"alice", "bob"} {
		ids, err := f.Capabilities.ScheduleResourceCapabilities(ctx, person, []capability.Capability{java}, testfixtures.Slot(9, 0, 17, 0))
		if err != nil {
			t.Fatalf("ScheduleResourceCapabilities failed: %v", err)
		}
		entries = append(entries, ids...)
	}
	block := func(id capability.AllocatableCapabilityID) {
		t.Helper()
		ok, err := f.Availability.Block(ctx, id.ToAvailabilityResourceID(), lunch, "other")
		if err != nil || !ok {
			t.Fatalf("expected block to succeed, ok=%v err=%v", ok, err)
		}
	}

	demands := []simulation.Demand{
		{Capability: java, Slot: testfixtures.Slot(9, 0, 10, 0)},
		{Capability: java, Slot: lunch},
	}

	block(entries[0])
	result, err := f.Capabilities.Simulate(ctx, demands, simulation.None())
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if !result.Satisfied {
		t.Fatalf("expected bob to cover lunch and alice the morning, got %#v", result)
	}
	if got := result.Assignments[1].ResourceID; got != "bob" {
		t.Fatalf("expected lunch demand served by bob, got %q", got)
	}

	block(entries[1])
	result, err = f.Capabilities.Simulate(ctx, demands, simulation.None())
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if result.Satisfied || len(result.Assignments) != 1 || len(result.Unmet) != 1 {
		t.Fatalf("expected only the morning demand to be met, got %#v", result)
	}
	if !result.Unmet[0].Slot.Equal(lunch) {
		t.Fatalf("expected the lunch demand to be unmet, got %v", result.Unmet[0].Slot)
	}
	if _, ok := result.Assignments[1]; ok {
		t.Fatal("expected no entry assigned to the blocked lunch slot")
	}
}
