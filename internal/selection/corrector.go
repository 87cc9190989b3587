package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/kinematics"
	"github.com/banshee-data/mttbar/internal/reco"
)

// Systematic is the jet energy scale variation applied on top of the
// nominal correction.
type Systematic int

const (
	SystematicNone Systematic = iota
	SystematicUp
	SystematicDown
)

// ErrUnknownSystematic is returned by ParseSystematic.
var ErrUnknownSystematic = errors.New("unknown jet energy systematic")

func (s Systematic) String() string {
	switch s {
	case SystematicNone:
		return "none"
	case SystematicUp:
		return "up"
	case SystematicDown:
		return "down"
	}
	return fmt.Sprintf("Systematic(%d)", int(s))
}

// ParseSystematic accepts none, up and down. The empty string is none.
func ParseSystematic(name string) (Systematic, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return SystematicNone, nil
	case "up":
		return SystematicUp, nil
	case "down":
		return SystematicDown, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSystematic, name)
}

func (s Systematic) direction() float64 {
	switch s {
	case SystematicUp:
		return 1
	case SystematicDown:
		return -1
	}
	return 0
}

// DefaultCleaningDeltaR is the cone in which selected leptons are removed
// from a jet before correction.
const DefaultCleaningDeltaR = 0.5

// JetCorrector removes selected leptons overlapping a jet and applies the
// jet energy correction stored with the jet, optionally shifted by the
// jet energy scale uncertainty.
type JetCorrector struct {
	CleaningDeltaR float64
	Systematic     Systematic
}

// NewJetCorrector returns a corrector with the default cleaning cone.
func NewJetCorrector(systematic Systematic) *JetCorrector {
	return &JetCorrector{CleaningDeltaR: DefaultCleaningDeltaR, Systematic: systematic}
}

// Correct builds the corrected jet. The lepton subtraction starts from the
// uncorrected momentum when the jet carries one; otherwise the stored
// momentum is taken as the raw jet. A missing correction factor counts
// as 1.
func (c *JetCorrector) Correct(jet *event.Jet, met kinematics.P4, electrons []*event.Electron, muons []*event.Muon) reco.CorrectedJet {
	raw := jet.P4
	if jet.UncorrectedP4 != nil {
		raw = *jet.UncorrectedP4
	}

	out := reco.CorrectedJet{Jet: jet, CorrectedMET: met}

	p4 := raw
	for _, e := range electrons {
		if kinematics.DeltaR(e.P4, jet.P4) < c.CleaningDeltaR {
			p4 = p4.Sub(e.P4)
			out.SubtractedElectrons = append(out.SubtractedElectrons, e)
		}
	}
	for _, m := range muons {
		if kinematics.DeltaR(m.P4, jet.P4) < c.CleaningDeltaR {
			p4 = p4.Sub(m.P4)
			out.SubtractedMuons = append(out.SubtractedMuons, m)
		}
	}
	out.SubtractedP4 = p4

	out.Correction = jet.Correction
	if out.Correction == 0 {
		out.Correction = 1
	}
	out.CorrectedP4 = p4.Scale(out.Correction)

	if dir := c.Systematic.direction(); dir != 0 {
		jes := 1 + dir*jet.JESUncertainty
		out.CorrectedP4 = out.CorrectedP4.Scale(jes)

		// MET absorbs the transverse shift of the raw jet.
		shift := raw.Transverse().Scale(1 - jes)
		out.CorrectedMET = met.Add(shift)
	}
	return out
}
