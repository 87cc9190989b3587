// Package reco reconstructs the tt̄ system of a lepton+jets event: the
// neutrino from the W mass constraint, then every assignment of jets to
// the leptonic top, the hadronic top or neither, keeping the best scored
// one.
package reco

import (
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/mttbar/internal/kinematics"
	"github.com/banshee-data/mttbar/internal/monitoring"
)

// DefaultMaxJets is the jet multiplicity above which reconstruction is
// skipped.
const DefaultMaxJets = 10

// TieBreak is the preferred hadronic score when two candidates share the
// same leptonic score.
type TieBreak int

const (
	TieBreakLargerHadronic TieBreak = iota
	TieBreakSmallerHadronic
)

func (t TieBreak) String() string {
	switch t {
	case TieBreakLargerHadronic:
		return "larger"
	case TieBreakSmallerHadronic:
		return "smaller"
	}
	return fmt.Sprintf("TieBreak(%d)", int(t))
}

// Result is the outcome of one Reconstruct call. Kinematic fields are
// zero unless Valid is set. Neutrinos, Solutions, Hypotheses and Accepted
// are filled whenever the hypothesis loop ran.
type Result struct {
	Valid bool

	// Skipped is set when the jet multiplicity exceeded the cap and no
	// hypothesis was tried.
	Skipped bool

	MTTbar   kinematics.P4
	LTop     kinematics.P4
	HTop     kinematics.P4
	WLep     kinematics.P4
	Neutrino kinematics.P4

	Neutrinos []kinematics.P4
	Solutions int

	LTopJet   CorrectedJet
	LTopJets  []CorrectedJet
	HTopJets  []CorrectedJet
	HTopNJets int

	LeptonicDiscriminator float64
	HadronicDiscriminator float64

	Hypotheses int
	Accepted   int
}

// Reconstructor runs one strategy. It keeps no state between calls; one
// instance per worker goroutine is the intended use.
type Reconstructor struct {
	strategy      Strategy
	validity      ValidityPolicy
	discriminator Discriminator
	tieBreak      TieBreak
	maxJets       int
	solver        NeutrinoSolver
}

// Option customises a Reconstructor.
type Option func(*Reconstructor)

// WithMaxJets overrides DefaultMaxJets. Zero or less disables the cap;
// the generator still refuses more than MaxGeneratorItems jets.
func WithMaxJets(n int) Option {
	return func(r *Reconstructor) { r.maxJets = n }
}

// WithTieBreak overrides the strategy's tie-break direction.
func WithTieBreak(t TieBreak) Option {
	return func(r *Reconstructor) { r.tieBreak = t }
}

// WithWMass sets the W mass used by the neutrino solver.
func WithWMass(m float64) Option {
	return func(r *Reconstructor) { r.solver.WMass = m }
}

// WithValidity replaces the strategy's validity policy.
func WithValidity(v ValidityPolicy) Option {
	return func(r *Reconstructor) { r.validity = v }
}

// WithDiscriminator replaces the strategy's discriminator.
func WithDiscriminator(d Discriminator) Option {
	return func(r *Reconstructor) { r.discriminator = d }
}

// NewReconstructor builds the policies of strategy and applies opts.
func NewReconstructor(strategy Strategy, opts ...Option) (*Reconstructor, error) {
	validity, discriminator, tieBreak, err := strategy.policies()
	if err != nil {
		return nil, err
	}

	r := &Reconstructor{
		strategy:      strategy,
		validity:      validity,
		discriminator: discriminator,
		tieBreak:      tieBreak,
		maxJets:       DefaultMaxJets,
		solver:        NeutrinoSolver{WMass: WMass},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Strategy returns the strategy the reconstructor was built with.
func (r *Reconstructor) Strategy() Strategy { return r.strategy }

// TieBreak returns the active tie-break direction.
func (r *Reconstructor) TieBreak() TieBreak { return r.tieBreak }

// candidate is the best-so-far accumulator. It is replaced as a whole.
type candidate struct {
	found    bool
	leptonic float64
	hadronic float64

	ltop     kinematics.P4
	htop     kinematics.P4
	neutrino kinematics.P4
	bjet     *CorrectedJet

	leptonicJets []int
	hadronicJets []int
}

func (r *Reconstructor) initial() candidate {
	c := candidate{leptonic: math.MaxFloat64}
	if r.tieBreak == TieBreakSmallerHadronic {
		c.hadronic = math.MaxFloat64
	}
	return c
}

func (r *Reconstructor) better(c, best candidate) bool {
	if c.leptonic < best.leptonic {
		return true
	}
	if c.leptonic != best.leptonic {
		return false
	}
	if r.tieBreak == TieBreakSmallerHadronic {
		return c.hadronic < best.hadronic
	}
	return c.hadronic > best.hadronic
}

func resolve(dst []*CorrectedJet, jets []CorrectedJet, indices []int) []*CorrectedJet {
	dst = dst[:0]
	for _, i := range indices {
		dst = append(dst, &jets[i])
	}
	return dst
}

// Reconstruct finds the best jet assignment for lepton, met and jets.
// jets is read only; the result holds copies.
func (r *Reconstructor) Reconstruct(lepton, met kinematics.P4, jets []CorrectedJet) Result {
	if r.maxJets > 0 && len(jets) > r.maxJets {
		monitoring.Logf("reco: %d good jets found, skipping hypothesis generation", len(jets))
		return Result{Skipped: true}
	}

	var gen Generator[CorrectedJet]
	if err := gen.Init(jets); err != nil {
		monitoring.Logf("reco: %v", err)
		return Result{Skipped: true}
	}

	solutions := r.solver.Solve(lepton, met)
	result := Result{Neutrinos: solutions.P4s, Solutions: solutions.Count}

	best := r.initial()
	var (
		hyp                     Hypothesis
		leptonic, hadronic, neu []*CorrectedJet
	)
	for ok := gen.Valid(); ok; ok = gen.Next() {
		gen.HypothesisInto(&hyp)
		result.Hypotheses++

		leptonic = resolve(leptonic, jets, hyp.Leptonic)
		hadronic = resolve(hadronic, jets, hyp.Hadronic)
		neu = resolve(neu, jets, hyp.Neutral)

		if !r.validity.ValidHadronicSide(lepton, hadronic) ||
			!r.validity.ValidLeptonicSide(lepton, leptonic) ||
			!r.validity.ValidNeutralSide(lepton, neu) {
			continue
		}
		result.Accepted++

		bjet := r.validity.LeptonicBJet(leptonic)
		if bjet == nil {
			continue
		}
		ltopBase := lepton.Add(bjet.CorrectedP4)
		htop := sumP4(hadronic)

		for _, nu := range solutions.P4s {
			ltop := ltopBase.Add(nu)
			lscore := r.discriminator.Leptonic(LeptonicInput{
				LTop: ltop, Lepton: lepton, Neutrino: nu, BJet: bjet.CorrectedP4,
			})
			hscore := r.discriminator.Hadronic(HadronicInput{LTop: ltop, HTop: htop, Jets: hadronic})

			c := candidate{
				found:    true,
				leptonic: lscore,
				hadronic: hscore,
				ltop:     ltop,
				htop:     htop,
				neutrino: nu,
				bjet:     bjet,
			}
			if !r.better(c, best) {
				continue
			}
			c.leptonicJets = slices.Clone(hyp.Leptonic)
			c.hadronicJets = slices.Clone(hyp.Hadronic)
			best = c
		}
	}

	if !best.found {
		return result
	}

	result.Valid = true
	result.LTop = best.ltop
	result.HTop = best.htop
	result.Neutrino = best.neutrino
	result.MTTbar = best.ltop.Add(best.htop)
	result.WLep = lepton.Add(best.neutrino)
	result.LTopJet = *best.bjet
	result.LeptonicDiscriminator = best.leptonic
	result.HadronicDiscriminator = best.hadronic

	result.LTopJets = make([]CorrectedJet, 0, len(best.leptonicJets))
	for _, i := range best.leptonicJets {
		result.LTopJets = append(result.LTopJets, jets[i])
	}
	result.HTopJets = make([]CorrectedJet, 0, len(best.hadronicJets))
	for _, i := range best.hadronicJets {
		result.HTopJets = append(result.HTopJets, jets[i])
	}
	result.HTopNJets = len(result.HTopJets)
	SortJetsByPt(result.LTopJets)
	SortJetsByPt(result.HTopJets)
	return result
}
