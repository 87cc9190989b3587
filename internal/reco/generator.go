package reco

import (
	"errors"
	"fmt"
)

// MaxGeneratorItems bounds the generator input so that 3^N stays well
// inside uint64. Callers normally cap the jet multiplicity much lower.
const MaxGeneratorItems = 20

// ErrTooManyItems is returned by Generator.Init above MaxGeneratorItems.
var ErrTooManyItems = errors.New("too many items for hypothesis generation")

// Hypothesis assigns every item to exactly one side of the decay. The
// slices hold indices into the generator items, in increasing order.
type Hypothesis struct {
	Leptonic []int
	Hadronic []int
	Neutral  []int
}

// Generator enumerates all 3^N assignments of N items to the leptonic,
// hadronic and neutral sides. The current assignment is a counter in
// [0, 3^N) whose base-3 digits give the side of each item: digit 0 is
// leptonic, 1 hadronic and 2 neutral, least significant digit first.
//
// Usage mirrors a do-while loop: the first hypothesis is available right
// after Init.
//
//	g.Init(items)
//	for ok := g.Valid(); ok; ok = g.Next() {
//		h := g.Hypothesis()
//	}
type Generator[T any] struct {
	items   []T
	total   uint64
	current uint64
}

// Init resets the generator over items. The slice is not copied.
func (g *Generator[T]) Init(items []T) error {
	if len(items) > MaxGeneratorItems {
		g.items, g.total, g.current = nil, 0, 0
		return fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(items), MaxGeneratorItems)
	}

	total := uint64(1)
	for range items {
		total *= 3
	}

	g.items = items
	g.total = total
	g.current = 0
	return nil
}

// Items returns the slice the generator was initialised with.
func (g *Generator[T]) Items() []T { return g.items }

// Total is the number of hypotheses, 3^N.
func (g *Generator[T]) Total() uint64 { return g.total }

// Valid reports whether the generator points at a hypothesis.
func (g *Generator[T]) Valid() bool { return g.current < g.total }

// Next advances to the following hypothesis. Once the enumeration is
// exhausted it keeps returning false until Init is called again.
func (g *Generator[T]) Next() bool {
	if !g.Valid() {
		return false
	}
	g.current++
	return g.Valid()
}

// Hypothesis decodes the current assignment into fresh slices. An
// exhausted generator yields an empty hypothesis.
func (g *Generator[T]) Hypothesis() Hypothesis {
	var h Hypothesis
	g.HypothesisInto(&h)
	return h
}

// HypothesisInto decodes the current assignment into h, reusing its
// backing arrays.
func (g *Generator[T]) HypothesisInto(h *Hypothesis) {
	h.Leptonic = h.Leptonic[:0]
	h.Hadronic = h.Hadronic[:0]
	h.Neutral = h.Neutral[:0]

	if !g.Valid() {
		return
	}

	code := g.current
	for i := range g.items {
		switch code % 3 {
		case 0:
			h.Leptonic = append(h.Leptonic, i)
		case 1:
			h.Hadronic = append(h.Hadronic, i)
		default:
			h.Neutral = append(h.Neutral, i)
		}
		code /= 3
	}
}
