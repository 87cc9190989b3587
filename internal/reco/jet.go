package reco

import (
	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/kinematics"
)

// CorrectedJet is a selected jet after lepton subtraction and energy
// correction. Jet points at the record in the event being processed and
// is only valid for the lifetime of that event.
type CorrectedJet struct {
	Jet *event.Jet

	// CorrectedP4 is the momentum used by the reconstruction.
	CorrectedP4 kinematics.P4

	// SubtractedP4 is the uncorrected momentum after lepton removal.
	SubtractedP4 kinematics.P4

	// CorrectedMET is the missing energy after propagating this jet's
	// energy scale shift. Equal to the event MET when no shift applies.
	CorrectedMET kinematics.P4

	SubtractedElectrons []*event.Electron
	SubtractedMuons     []*event.Muon

	// Correction is the energy correction factor that was applied.
	Correction float64
}

// P4 returns the corrected momentum.
func (j *CorrectedJet) P4() kinematics.P4 {
	return j.CorrectedP4
}

// Discriminator returns the jet's b-tag discriminator for algorithm.
func (j *CorrectedJet) Discriminator(algorithm event.BTagAlgorithm) (float64, bool) {
	if j.Jet == nil {
		return 0, false
	}
	return j.Jet.BTag(algorithm)
}

// SortJetsByPt orders jets by decreasing corrected pt.
func SortJetsByPt(jets []CorrectedJet) {
	kinematics.SortByPtDesc(jets, func(j CorrectedJet) kinematics.P4 { return j.CorrectedP4 })
}

// hardestJet returns the jet with the highest corrected pt; the first one
// wins on equal pt. Nil for an empty side.
func hardestJet(jets []*CorrectedJet) *CorrectedJet {
	var hardest *CorrectedJet
	for _, j := range jets {
		if hardest == nil || j.CorrectedP4.Pt() > hardest.CorrectedP4.Pt() {
			hardest = j
		}
	}
	return hardest
}

func sumP4(jets []*CorrectedJet) kinematics.P4 {
	var total kinematics.P4
	for _, j := range jets {
		total = total.Add(j.CorrectedP4)
	}
	return total
}
