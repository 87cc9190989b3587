package monitor

import (
	"go-hep.org/x/hep/hbook"

	"github.com/banshee-data/mttbar/internal/kinematics"
	"github.com/banshee-data/mttbar/internal/reco"
)

// MttbarMonitor collects the resonance mass and the kinematics of the
// best hypothesis of every reconstructed event.
type MttbarMonitor struct {
	MReco        *hbook.H1D
	MLTopVsMHTop *hbook.H2D

	MGen           *hbook.H1D
	MRecoMinusMGen *hbook.H1D
	MRecoVsMGen    *hbook.H2D

	Solutions  *hbook.H1D
	HTopNJets  *hbook.H1D
	Hypotheses *hbook.H1D

	Neutrino *P4Monitor
	WLep     *P4Monitor
	LTop     *P4Monitor
	HTop     *P4Monitor
	TopDelta *DeltaMonitor

	// GenEvents counts events that carried a generator mass.
	GenEvents uint64
	// Skipped counts events over the jet multiplicity cap.
	Skipped uint64
}

func NewMttbarMonitor() *MttbarMonitor {
	return &MttbarMonitor{
		MReco:        newMRecoH1(),
		MLTopVsMHTop: newH2("mltop_vs_mhtop", "m_ltop vs m_htop [GeV]", 400, 0, 4000, 400, 0, 4000),

		MGen:           newH1("mgen", "generator m_ttbar [GeV]", 400, 0, 4000),
		MRecoMinusMGen: newH1("mreco_minus_mgen", "(m_reco - m_gen) / m_gen", 200, -100, 100),
		MRecoVsMGen:    newH2("mreco_vs_mgen", "m_reco vs m_gen [GeV]", 400, 0, 4000, 400, 0, 4000),

		Solutions:  newH1("neutrino_solutions", "neutrino solutions", 3, 0, 3),
		HTopNJets:  newH1("htop_njets", "hadronic top jet multiplicity", 15, 0, 15),
		Hypotheses: newH1("hypotheses", "accepted hypotheses per event", 100, 0, 5000),

		Neutrino: NewP4Monitor("neutrino", "neutrino"),
		WLep:     NewP4Monitor("wlep", "leptonic W"),
		LTop:     NewP4Monitor("ltop", "leptonic top"),
		HTop:     NewP4Monitor("htop", "hadronic top"),
		TopDelta: NewDeltaMonitor("top_delta", "ltop-htop"),
	}
}

func newMRecoH1() *hbook.H1D {
	return newH1("mreco", "reconstructed m_ttbar [GeV]", 400, 0, 4000)
}

// MassHistogram rebuilds the mreco histogram from stored masses.
func MassHistogram(masses []float64) Hist {
	h := newMRecoH1()
	for _, m := range masses {
		h.Fill(m, 1)
	}
	return h1(h)
}

// FillGenerated records an event that passed the generator requirement.
func (m *MttbarMonitor) FillGenerated() { m.GenEvents++ }

// FillSkipped records an event that exceeded the jet cap.
func (m *MttbarMonitor) FillSkipped() { m.Skipped++ }

// FillReconstruction adds the best hypothesis of res. Invalid results
// only contribute to the solution count histogram.
func (m *MttbarMonitor) FillReconstruction(lepton kinematics.P4, res reco.Result) {
	m.Solutions.Fill(float64(res.Solutions), 1)
	if !res.Valid {
		return
	}

	m.MReco.Fill(res.MTTbar.Mass(), 1)
	m.MLTopVsMHTop.Fill(res.LTop.Mass(), res.HTop.Mass(), 1)
	m.HTopNJets.Fill(float64(res.HTopNJets), 1)
	m.Hypotheses.Fill(float64(res.Accepted), 1)

	m.Neutrino.Fill(res.Neutrino, 1)
	m.WLep.Fill(lepton.Add(res.Neutrino), 1)
	m.LTop.Fill(res.LTop, 1)
	m.HTop.Fill(res.HTop, 1)
	m.TopDelta.Fill(res.LTop, res.HTop, 1)
}

// FillGeneratorComparison compares the reconstructed mass with the
// generator mass. mgen must be positive.
func (m *MttbarMonitor) FillGeneratorComparison(mreco, mgen float64) {
	m.MGen.Fill(mgen, 1)
	m.MRecoMinusMGen.Fill((mreco-mgen)/mgen, 1)
	m.MRecoVsMGen.Fill(mreco, mgen, 1)
}

// Histograms lists every histogram in export order.
func (m *MttbarMonitor) Histograms() []Hist {
	out := []Hist{
		h1(m.MReco), h2(m.MLTopVsMHTop),
		h1(m.MGen), h1(m.MRecoMinusMGen), h2(m.MRecoVsMGen),
		h1(m.Solutions), h1(m.HTopNJets), h1(m.Hypotheses),
	}
	out = append(out, m.Neutrino.Histograms()...)
	out = append(out, m.WLep.Histograms()...)
	out = append(out, m.LTop.Histograms()...)
	out = append(out, m.HTop.Histograms()...)
	out = append(out, m.TopDelta.Histograms()...)
	return out
}

// Summaries reports the mean and RMS of the headline distributions.
func (m *MttbarMonitor) Summaries() []Summary {
	return []Summary{
		Summarize("mreco", m.MReco),
		Summarize("mgen", m.MGen),
		Summarize("ltop_mass", m.LTop.Mass),
		Summarize("htop_mass", m.HTop.Mass),
		Summarize("htop_njets", m.HTopNJets),
	}
}
