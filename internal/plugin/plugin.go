package plugin

import (
	"encoding"
	"image"
	"math/rand"

	"polyevolve/internal/model"
	"polyevolve/internal/mutation"
)

// Role names the capability a module provides.
type Role int

const (
	RoleInitializer Role = iota + 1
	RoleMutator
	RoleEvaluator
)

func (r Role) String() string {
	switch r {
	case RoleInitializer:
		return "initializer"
	case RoleMutator:
		return "mutator"
	case RoleEvaluator:
		return "evaluator"
	default:
		return "unknown"
	}
}

// Task is the read-only view of a session that modules work against.
type Task interface {
	Shapes() int
	Vertices() int
	ImageWidth() int
	ImageHeight() int
	// Target is shared and must not be modified.
	Target() *image.NRGBA
}

// Module is a capability that can be persisted as tag + state.
type Module interface {
	Tag() string
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Initializer builds the first genome of a session.
type Initializer interface {
	Module
	Initialize(rng *rand.Rand, task Task) model.DNA
}

// Mutator derives a mutated copy of a genome and describes what it changed.
// The input genome is never modified.
type Mutator interface {
	Module
	Mutate(rng *rand.Rand, dna model.DNA, task Task) (model.DNA, mutation.Mutation)
}

// Evaluator scores genomes against the task's target image. Initialize is
// called before first use and again whenever the evaluator is installed on a
// session. Divergence must be safe for concurrent use, including while
// Initialize replaces the prepared state of the same value.
type Evaluator interface {
	Module
	Initialize(task Task) error
	// Divergence renders dna onto canvas and returns its distance from the
	// target. Implementations may stop early and return any value above
	// limit once the result is known to exceed it.
	Divergence(canvas *image.RGBA, dna model.DNA, task Task, limit float64) float64
}

func roleOf(m Module) Role {
	switch m.(type) {
	case Initializer:
		return RoleInitializer
	case Mutator:
		return RoleMutator
	case Evaluator:
		return RoleEvaluator
	default:
		return 0
	}
}
