package ecs

// Config holds package-level tuning knobs, read once per World at
// construction.
var Config config = config{
	CMax:                  DefaultCMax,
	DrainIterationCeiling: DefaultDrainIterationCeiling,
}

// DefaultCMax is the default plain-component ceiling: 1023 values fit the
// 10-bit field the relation codec packs component ids into (see
// identity.go).
const DefaultCMax = 1023

// DefaultDrainIterationCeiling bounds how many passes Sync will make over
// hook-enqueued commands before raising CommandBufferOverflowError.
const DefaultDrainIterationCeiling = 1000

type config struct {
	// CMax is the highest value a plain component id may take. Must stay
	// within the 10-bit field the relation codec reserves for it.
	CMax ID

	// DrainIterationCeiling bounds the number of drain passes Sync will
	// run when hooks keep enqueuing new commands.
	DrainIterationCeiling int
}

// SetCMax overrides the plain-component ceiling. Must be called before any
// World is created; it has no effect on existing allocators.
func (c *config) SetCMax(max ID) {
	c.CMax = max
}

// SetDrainIterationCeiling overrides the drain loop's iteration bound.
func (c *config) SetDrainIterationCeiling(n int) {
	c.DrainIterationCeiling = n
}
