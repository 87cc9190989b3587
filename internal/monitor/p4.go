package monitor

import (
	"go-hep.org/x/hep/hbook"

	"github.com/banshee-data/mttbar/internal/kinematics"
)

// P4Monitor histograms the components of a four-momentum.
type P4Monitor struct {
	Energy *hbook.H1D
	Px     *hbook.H1D
	Py     *hbook.H1D
	Pz     *hbook.H1D
	Pt     *hbook.H1D
	Eta    *hbook.H1D
	Phi    *hbook.H1D
	Mass   *hbook.H1D
	Mt     *hbook.H1D
	Et     *hbook.H1D
}

// NewP4Monitor names every histogram prefix_component.
func NewP4Monitor(prefix, label string) *P4Monitor {
	name := func(s string) string { return prefix + "_" + s }
	title := func(s string) string { return label + " " + s }
	return &P4Monitor{
		Energy: newH1(name("e"), title("energy [GeV]"), 100, 0, 100),
		Px:     newH1(name("px"), title("p_x [GeV]"), 100, 0, 100),
		Py:     newH1(name("py"), title("p_y [GeV]"), 100, 0, 100),
		Pz:     newH1(name("pz"), title("p_z [GeV]"), 100, 0, 100),
		Pt:     newH1(name("pt"), title("p_T [GeV]"), 500, 0, 500),
		Eta:    newH1(name("eta"), title("eta"), 1000, -5, 5),
		Phi:    newH1(name("phi"), title("phi [rad]"), 800, -4, 4),
		Mass:   newH1(name("mass"), title("mass [GeV]"), 500, 0, 500),
		Mt:     newH1(name("mt"), title("M_T [GeV]"), 500, 0, 500),
		Et:     newH1(name("et"), title("E_T [GeV]"), 100, 0, 100),
	}
}

// Fill adds p with weight w.
func (m *P4Monitor) Fill(p kinematics.P4, w float64) {
	m.Energy.Fill(p.E(), w)
	m.Px.Fill(p.Px(), w)
	m.Py.Fill(p.Py(), w)
	m.Pz.Fill(p.Pz(), w)
	m.Pt.Fill(p.Pt(), w)
	m.Eta.Fill(p.Eta(), w)
	m.Phi.Fill(p.Phi(), w)
	m.Mass.Fill(p.Mass(), w)
	m.Mt.Fill(p.Mt(), w)
	m.Et.Fill(p.Et(), w)
}

func (m *P4Monitor) Histograms() []Hist {
	return []Hist{
		h1(m.Energy), h1(m.Px), h1(m.Py), h1(m.Pz), h1(m.Pt),
		h1(m.Eta), h1(m.Phi), h1(m.Mass), h1(m.Mt), h1(m.Et),
	}
}

// DeltaMonitor histograms the separation between two four-momenta.
type DeltaMonitor struct {
	R        *hbook.H1D
	Eta      *hbook.H1D
	Phi      *hbook.H1D
	PtRel    *hbook.H1D
	Angle    *hbook.H1D
	PtRelVsR *hbook.H2D
}

func NewDeltaMonitor(prefix, label string) *DeltaMonitor {
	name := func(s string) string { return prefix + "_" + s }
	title := func(s string) string { return label + " " + s }
	return &DeltaMonitor{
		R:        newH1(name("r"), title("delta R"), 50, 0, 5),
		Eta:      newH1(name("eta"), title("delta eta"), 100, -5, 5),
		Phi:      newH1(name("phi"), title("delta phi [rad]"), 80, -4, 4),
		PtRel:    newH1(name("ptrel"), title("p_T,rel [GeV]"), 100, 0, 10),
		Angle:    newH1(name("angle"), title("angle [rad]"), 80, -4, 4),
		PtRelVsR: newH2(name("ptrel_vs_r"), title("p_T,rel vs delta R"), 100, 0, 10, 50, 0, 5),
	}
}

// Fill adds the separation of a relative to b. PtRel is measured
// against b as the axis.
func (m *DeltaMonitor) Fill(a, b kinematics.P4, w float64) {
	r := kinematics.DeltaR(a, b)
	ptrel := kinematics.PtRel(a, b)

	m.R.Fill(r, w)
	m.Eta.Fill(kinematics.DeltaEta(a, b), w)
	m.Phi.Fill(kinematics.DeltaPhi(a, b), w)
	m.PtRel.Fill(ptrel, w)
	m.Angle.Fill(kinematics.Angle(a, b), w)
	m.PtRelVsR.Fill(ptrel, r, w)
}

func (m *DeltaMonitor) Histograms() []Hist {
	return []Hist{h1(m.R), h1(m.Eta), h1(m.Phi), h1(m.PtRel), h1(m.Angle), h2(m.PtRelVsR)}
}
