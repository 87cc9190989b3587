package reco

import (
	"math"

	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/kinematics"
)

// ValidityPolicy decides whether a jet assignment is physically acceptable
// and which leptonic-side jet is the b-jet of the leptonic top.
type ValidityPolicy interface {
	ValidHadronicSide(lepton kinematics.P4, jets []*CorrectedJet) bool
	ValidLeptonicSide(lepton kinematics.P4, jets []*CorrectedJet) bool
	ValidNeutralSide(lepton kinematics.P4, jets []*CorrectedJet) bool

	// LeptonicBJet picks the b-jet among the leptonic-side jets. It
	// returns nil only for an empty side.
	LeptonicBJet(jets []*CorrectedJet) *CorrectedJet
}

// SimpleValidity requires at least one jet on the leptonic and on the
// hadronic side. The leptonic b-jet is the hardest leptonic jet.
type SimpleValidity struct{}

func (SimpleValidity) ValidHadronicSide(_ kinematics.P4, jets []*CorrectedJet) bool {
	return len(jets) > 0
}

func (SimpleValidity) ValidLeptonicSide(_ kinematics.P4, jets []*CorrectedJet) bool {
	return len(jets) > 0
}

func (SimpleValidity) ValidNeutralSide(kinematics.P4, []*CorrectedJet) bool {
	return true
}

func (SimpleValidity) LeptonicBJet(jets []*CorrectedJet) *CorrectedJet {
	return hardestJet(jets)
}

// Default b-tagging working point.
const (
	DefaultBTagAlgorithm = event.SSVHE
	DefaultBTagThreshold = 1.74
)

// BtagValidity limits each top to at most one b-tagged jet and forbids
// tagged jets on the neutral side.
type BtagValidity struct {
	Algorithm event.BTagAlgorithm
	Threshold float64
}

// NewBtagValidity returns the policy at the default working point.
func NewBtagValidity() BtagValidity {
	return BtagValidity{Algorithm: DefaultBTagAlgorithm, Threshold: DefaultBTagThreshold}
}

func (v BtagValidity) isTagged(j *CorrectedJet) bool {
	d, ok := j.Discriminator(v.Algorithm)
	return ok && d > v.Threshold
}

func (v BtagValidity) tagged(jets []*CorrectedJet) int {
	n := 0
	for _, j := range jets {
		if v.isTagged(j) {
			n++
		}
	}
	return n
}

func (v BtagValidity) ValidHadronicSide(lepton kinematics.P4, jets []*CorrectedJet) bool {
	return SimpleValidity{}.ValidHadronicSide(lepton, jets) && v.tagged(jets) <= 1
}

func (v BtagValidity) ValidLeptonicSide(lepton kinematics.P4, jets []*CorrectedJet) bool {
	return SimpleValidity{}.ValidLeptonicSide(lepton, jets) && v.tagged(jets) <= 1
}

func (v BtagValidity) ValidNeutralSide(_ kinematics.P4, jets []*CorrectedJet) bool {
	return v.tagged(jets) == 0
}

// LeptonicBJet returns the first tagged jet, otherwise the hardest one.
func (v BtagValidity) LeptonicBJet(jets []*CorrectedJet) *CorrectedJet {
	for _, j := range jets {
		if v.isTagged(j) {
			return j
		}
	}
	return hardestJet(jets)
}

// DeltaRValidity places leptonic jets near the lepton, hadronic jets away
// from it and neutral jets in between. Boundaries are inclusive.
type DeltaRValidity struct {
	LeptonicDeltaR float64
	HadronicDeltaR float64
}

// NewDeltaRValidity returns the policy with cones of 1.0 and 3.14.
func NewDeltaRValidity() DeltaRValidity {
	return DeltaRValidity{LeptonicDeltaR: 1.0, HadronicDeltaR: 3.14}
}

func (v DeltaRValidity) ValidHadronicSide(lepton kinematics.P4, jets []*CorrectedJet) bool {
	if !(SimpleValidity{}).ValidHadronicSide(lepton, jets) {
		return false
	}
	for _, j := range jets {
		if kinematics.DeltaR(j.CorrectedP4, lepton) < v.HadronicDeltaR {
			return false
		}
	}
	return true
}

func (v DeltaRValidity) ValidLeptonicSide(lepton kinematics.P4, jets []*CorrectedJet) bool {
	if !(SimpleValidity{}).ValidLeptonicSide(lepton, jets) {
		return false
	}
	for _, j := range jets {
		if kinematics.DeltaR(j.CorrectedP4, lepton) > v.LeptonicDeltaR {
			return false
		}
	}
	return true
}

func (v DeltaRValidity) ValidNeutralSide(lepton kinematics.P4, jets []*CorrectedJet) bool {
	for _, j := range jets {
		dr := kinematics.DeltaR(j.CorrectedP4, lepton)
		if dr < v.LeptonicDeltaR || dr > v.HadronicDeltaR {
			return false
		}
	}
	return true
}

func (DeltaRValidity) LeptonicBJet(jets []*CorrectedJet) *CorrectedJet {
	return hardestJet(jets)
}

// HemisphereValidity splits the event by the 3D opening angle to the
// lepton: leptonic jets within π/2, hadronic jets beyond it. Every jet
// must be used.
type HemisphereValidity struct{}

func (HemisphereValidity) ValidHadronicSide(lepton kinematics.P4, jets []*CorrectedJet) bool {
	if len(jets) == 0 {
		return false
	}
	for _, j := range jets {
		if kinematics.Angle(j.CorrectedP4, lepton) < math.Pi/2 {
			return false
		}
	}
	return true
}

func (HemisphereValidity) ValidLeptonicSide(lepton kinematics.P4, jets []*CorrectedJet) bool {
	if len(jets) == 0 {
		return false
	}
	for _, j := range jets {
		if kinematics.Angle(j.CorrectedP4, lepton) > math.Pi/2 {
			return false
		}
	}
	return true
}

func (HemisphereValidity) ValidNeutralSide(_ kinematics.P4, jets []*CorrectedJet) bool {
	return len(jets) == 0
}

func (HemisphereValidity) LeptonicBJet(jets []*CorrectedJet) *CorrectedJet {
	return hardestJet(jets)
}

// SingleLeptonicJetValidity is SimpleValidity with exactly one jet on the
// leptonic side.
type SingleLeptonicJetValidity struct {
	SimpleValidity
}

func (SingleLeptonicJetValidity) ValidLeptonicSide(_ kinematics.P4, jets []*CorrectedJet) bool {
	return len(jets) == 1
}
