// Package availability models segment-aligned resource time and the
// all-or-nothing ownership rules applied to it.
//
// Every row covers exactly one segment of one resource and carries a version.
// Callers load a ResourceGroupedAvailability for a window, mutate it in memory
// and persist it with a version-checked save; a save that finds any row with a
// different version must be rejected as a whole.
package availability
