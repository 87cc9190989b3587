package reco

import (
	"math"

	"github.com/banshee-data/mttbar/internal/kinematics"
)

// Reference masses and resolutions used by the mass terms, in GeV.
const (
	TopMass = 173.0

	topMassWidth     = 2.0
	topsDeltaPhiSpan = 0.22

	chi2LeptonicTopMass  = 169.0
	chi2LeptonicTopSigma = 16.3
	chi2HadronicTopMass  = 174.0
	chi2HadronicTopSigma = 17.5
)

// LeptonicInput is what a leptonic-side score sees for one candidate.
type LeptonicInput struct {
	LTop     kinematics.P4
	Lepton   kinematics.P4
	Neutrino kinematics.P4
	BJet     kinematics.P4
}

// HadronicInput is what a hadronic-side score sees for one candidate.
type HadronicInput struct {
	LTop kinematics.P4
	HTop kinematics.P4
	Jets []*CorrectedJet
}

// Discriminator scores a candidate. A smaller leptonic score is always
// better; the preferred direction of the hadronic score is the engine's
// TieBreak.
type Discriminator interface {
	Leptonic(in LeptonicInput) float64
	Hadronic(in HadronicInput) float64
}

// LeptonicTerm and HadronicTerm are multiplicative factors of a
// ComposedDiscriminator.
type (
	LeptonicTerm func(LeptonicInput) float64
	HadronicTerm func(HadronicInput) float64
)

// ComposedDiscriminator multiplies its terms. A side without terms scores
// one.
type ComposedDiscriminator struct {
	LeptonicTerms []LeptonicTerm
	HadronicTerms []HadronicTerm
}

func (d ComposedDiscriminator) Leptonic(in LeptonicInput) float64 {
	score := 1.0
	for _, term := range d.LeptonicTerms {
		score *= term(in)
	}
	return score
}

func (d ComposedDiscriminator) Hadronic(in HadronicInput) float64 {
	score := 1.0
	for _, term := range d.HadronicTerms {
		score *= term(in)
	}
	return score
}

// LeptonicDeltaRSum is ΔR(ltop,l) + ΔR(ltop,ν) + ΔR(ltop,b).
func LeptonicDeltaRSum(in LeptonicInput) float64 {
	return kinematics.DeltaR(in.LTop, in.Lepton) +
		kinematics.DeltaR(in.LTop, in.Neutrino) +
		kinematics.DeltaR(in.LTop, in.BJet)
}

// LeptonicTopMass peaks when the leptonic top mass reaches TopMass, like
// HadronicTopMass.
func LeptonicTopMass(in LeptonicInput) float64 {
	return math.Pow(topMassWidth/(TopMass-in.LTop.Mass()), 2)
}

// ChiSquareLeptonicTop is the leptonic top mass χ² term.
func ChiSquareLeptonicTop(in LeptonicInput) float64 {
	return math.Pow((in.LTop.Mass()-chi2LeptonicTopMass)/chi2LeptonicTopSigma, 2)
}

// TopsDeltaR is ΔR(ltop, htop).
func TopsDeltaR(in HadronicInput) float64 {
	return kinematics.DeltaR(in.LTop, in.HTop)
}

// HadronicTopMass peaks when the hadronic top mass reaches TopMass.
func HadronicTopMass(in HadronicInput) float64 {
	return math.Pow(topMassWidth/(TopMass-in.HTop.Mass()), 2)
}

// TopsDeltaPhi peaks for back-to-back tops.
func TopsDeltaPhi(in HadronicInput) float64 {
	return math.Pow(topsDeltaPhiSpan/(math.Abs(kinematics.DeltaPhi(in.LTop, in.HTop))-math.Pi), 2)
}

// Collimation is the inverse of the summed ΔR between each hadronic jet
// and the hadronic top.
func Collimation(in HadronicInput) float64 {
	sum := 0.0
	for _, j := range in.Jets {
		sum += kinematics.DeltaR(j.CorrectedP4, in.HTop)
	}
	return 1 / sum
}

// ChiSquareHadronicTop is the hadronic top mass χ² term.
func ChiSquareHadronicTop(in HadronicInput) float64 {
	return math.Pow((in.HTop.Mass()-chi2HadronicTopMass)/chi2HadronicTopSigma, 2)
}
