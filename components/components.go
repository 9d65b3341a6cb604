// Package components defines ECS components for the simulation.
package components

import (
	"github.com/google/uuid"

	"github.com/pthm-cable/chemotaxis/larva"
)

// Identity names a larva across observers and output files.
type Identity struct {
	ID    uuid.UUID
	Index int   // spawn order; observers see larvae in this order
	Seed  int64 // seed of the larva's private random source
}

// Body holds the simulated larva.
type Body struct {
	Larva  *larva.Larva
	Halted bool  // set once an update fails; halted larvae are skipped
	Err    error // the failure that halted the larva
}
