// Package selection implements the lepton+jets event selection: object
// quality cuts, lepton cleaning and energy correction of jets, and the
// synchronisation cutflow.
package selection

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/kinematics"
	"github.com/banshee-data/mttbar/internal/reco"
)

// LeptonMode is the flavour of the selected lepton.
type LeptonMode int

const (
	LeptonElectron LeptonMode = iota
	LeptonMuon
)

// ErrUnsupportedLeptonMode is returned by ParseLeptonMode.
var ErrUnsupportedLeptonMode = errors.New("unsupported lepton mode")

func (m LeptonMode) String() string {
	switch m {
	case LeptonElectron:
		return "electron"
	case LeptonMuon:
		return "muon"
	}
	return fmt.Sprintf("LeptonMode(%d)", int(m))
}

// PDGID returns the particle id of the lepton flavour.
func (m LeptonMode) PDGID() int {
	if m == LeptonMuon {
		return event.PDGMuon
	}
	return event.PDGElectron
}

// ParseLeptonMode accepts electron and muon.
func ParseLeptonMode(name string) (LeptonMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "electron":
		return LeptonElectron, nil
	case "muon":
		return LeptonMuon, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedLeptonMode, name)
}

// CutMode is the lepton/jet separation requirement.
type CutMode int

const (
	// Cut2D requires the lepton to be away from the closest jet in ΔR or
	// to carry a large pT relative to it.
	Cut2D CutMode = iota

	// CutIsolation requires the relative isolation to exceed the
	// threshold.
	CutIsolation
)

// ErrUnsupportedCutMode is returned by ParseCutMode.
var ErrUnsupportedCutMode = errors.New("unsupported cut mode")

func (m CutMode) String() string {
	switch m {
	case Cut2D:
		return "2dcut"
	case CutIsolation:
		return "isolation"
	}
	return fmt.Sprintf("CutMode(%d)", int(m))
}

// ParseCutMode accepts 2dcut (or 2d) and isolation.
func ParseCutMode(name string) (CutMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "2dcut", "2d":
		return Cut2D, nil
	case "isolation":
		return CutIsolation, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCutMode, name)
}

// Cuts holds the selection thresholds. Momenta in GeV.
type Cuts struct {
	NiceJetPt float64 `validate:"gte=0"`
	GoodJetPt float64 `validate:"gtefield=NiceJetPt"`
	JetEta    float64 `validate:"gt=0"`

	ElectronPt  float64 `validate:"gte=0"`
	ElectronEta float64 `validate:"gt=0"`

	MuonPt             float64 `validate:"gte=0"`
	MuonEta            float64 `validate:"gt=0"`
	MuonSegments       int     `validate:"gte=0"`
	MuonHits           int     `validate:"gte=0"`
	MuonNormalizedChi2 float64 `validate:"gt=0"`
	MuonTrackerHits    int     `validate:"gte=0"`
	MuonPixelHits      int     `validate:"gte=0"`
	MuonD0             float64 `validate:"gt=0"`
	MuonVertexZ        float64 `validate:"gt=0"`

	VertexNdof float64 `validate:"gte=0"`
	VertexZ    float64 `validate:"gt=0"`
	VertexRho  float64 `validate:"gt=0"`

	LeadingJetPt float64 `validate:"gte=0"`
	HTlep        float64 `validate:"gte=0"`

	Cut2DDeltaR float64 `validate:"gte=0"`
	Cut2DPtRel  float64 `validate:"gte=0"`
	Isolation   float64 `validate:"gte=0"`
}

// DefaultCuts returns the synchronisation thresholds.
func DefaultCuts() Cuts {
	return Cuts{
		NiceJetPt: 25,
		GoodJetPt: 50,
		JetEta:    2.4,

		ElectronPt:  30,
		ElectronEta: 2.5,

		MuonPt:             35,
		MuonEta:            2.1,
		MuonSegments:       1,
		MuonHits:           0,
		MuonNormalizedChi2: 10,
		MuonTrackerHits:    10,
		MuonPixelHits:      0,
		MuonD0:             0.02,
		MuonVertexZ:        1,

		VertexNdof: 4,
		VertexZ:    24,
		VertexRho:  2,

		LeadingJetPt: 250,
		HTlep:        150,

		Cut2DDeltaR: 0.5,
		Cut2DPtRel:  25,
		Isolation:   0.5,
	}
}

// Stages of the synchronisation cutflow.
const (
	StagePreselection = iota
	StagePrimaryVertex
	StageJet
	StageLepton
	StageVetoSecondLepton
	StageCutLepton
	StageLeadingJet
	StageHTlep
)

// NewSynchCutflow returns an empty cutflow with the synchronisation
// stages.
func NewSynchCutflow() *Cutflow {
	return NewCutflow(
		"pre-selection",
		"good primary vertex",
		"2 good jets",
		"good lepton",
		"veto 2nd lepton",
		"lepton cut",
		"leading jet",
		"hTlep",
	)
}

// SynchSelector applies the synchronisation selection to one event at a
// time. Accessors describe the last event passed to Apply. Not safe for
// concurrent use.
type SynchSelector struct {
	leptonMode LeptonMode
	cutMode    CutMode
	cuts       Cuts
	corrector  *JetCorrector
	cutflow    *Cutflow

	goodElectrons []*event.Electron
	goodMuons     []*event.Muon
	niceJets      []reco.CorrectedJet
	goodJets      []reco.CorrectedJet
}

// NewSynchSelector builds a selector. A nil corrector means nominal
// corrections.
func NewSynchSelector(leptonMode LeptonMode, cutMode CutMode, cuts Cuts, corrector *JetCorrector) *SynchSelector {
	if corrector == nil {
		corrector = NewJetCorrector(SystematicNone)
	}
	s := &SynchSelector{
		leptonMode: leptonMode,
		cutMode:    cutMode,
		cuts:       cuts,
		corrector:  corrector,
		cutflow:    NewSynchCutflow(),
	}
	s.cutflow.SetName(StageLepton, "good "+leptonMode.String())
	s.cutflow.SetName(StageCutLepton, leptonMode.String()+" "+cutMode.String())
	return s
}

func (s *SynchSelector) LeptonMode() LeptonMode { return s.leptonMode }
func (s *SynchSelector) CutMode() CutMode       { return s.cutMode }
func (s *SynchSelector) Cutflow() *Cutflow      { return s.cutflow }

func (s *SynchSelector) GoodElectrons() []*event.Electron { return s.goodElectrons }
func (s *SynchSelector) GoodMuons() []*event.Muon         { return s.goodMuons }

// NiceJets are corrected jets above the loose pt threshold.
func (s *SynchSelector) NiceJets() []reco.CorrectedJet { return s.niceJets }

// GoodJets are corrected jets used by the reconstruction.
func (s *SynchSelector) GoodJets() []reco.CorrectedJet { return s.goodJets }

// Lepton returns the momentum of the selected lepton. Only meaningful
// after Apply returned true.
func (s *SynchSelector) Lepton() kinematics.P4 {
	if s.leptonMode == LeptonElectron {
		if len(s.goodElectrons) > 0 {
			return s.goodElectrons[0].P4
		}
		return kinematics.P4{}
	}
	if len(s.goodMuons) > 0 {
		return s.goodMuons[0].P4
	}
	return kinematics.P4{}
}

// Apply runs the cutflow on ev and reports whether it passed every stage.
func (s *SynchSelector) Apply(ev *event.Event) bool {
	s.cutflow.Apply(StagePreselection)

	s.goodElectrons = s.goodElectrons[:0]
	s.goodMuons = s.goodMuons[:0]
	s.niceJets = s.niceJets[:0]
	s.goodJets = s.goodJets[:0]

	return s.primaryVertex(ev) &&
		s.jets(ev) &&
		s.lepton() &&
		s.vetoSecondLepton() &&
		s.cutLepton() &&
		s.leadingJet() &&
		s.htlep(ev)
}

func (s *SynchSelector) pass(stage int) bool {
	s.cutflow.Apply(stage)
	return true
}

func (s *SynchSelector) primaryVertex(ev *event.Event) bool {
	if len(ev.PrimaryVertices) == 0 {
		return false
	}
	pv := ev.PrimaryVertices[0]
	if pv.Ndof < s.cuts.VertexNdof || math.Abs(pv.Z) > s.cuts.VertexZ || pv.Rho > s.cuts.VertexRho {
		return false
	}
	return s.pass(StagePrimaryVertex)
}

func (s *SynchSelector) jets(ev *event.Event) bool {
	pv := ev.PrimaryVertices[0]
	for i := range ev.Electrons {
		if e := &ev.Electrons[i]; s.goodElectron(e) {
			s.goodElectrons = append(s.goodElectrons, e)
		}
	}
	for i := range ev.Muons {
		if m := &ev.Muons[i]; s.goodMuon(m, pv) {
			s.goodMuons = append(s.goodMuons, m)
		}
	}

	var met kinematics.P4
	if ev.MissingEnergy != nil {
		met = *ev.MissingEnergy
	}
	for i := range ev.Jets {
		cj := s.corrector.Correct(&ev.Jets[i], met, s.goodElectrons, s.goodMuons)
		if !s.jetPasses(cj, s.cuts.NiceJetPt) {
			continue
		}
		s.niceJets = append(s.niceJets, cj)
		if s.jetPasses(cj, s.cuts.GoodJetPt) {
			s.goodJets = append(s.goodJets, cj)
		}
	}

	if len(s.goodJets) < 2 {
		return false
	}
	return s.pass(StageJet)
}

func (s *SynchSelector) jetPasses(j reco.CorrectedJet, minPt float64) bool {
	return j.CorrectedP4.Pt() > minPt && math.Abs(j.CorrectedP4.Eta()) < s.cuts.JetEta
}

func (s *SynchSelector) goodElectron(e *event.Electron) bool {
	return e.P4.Pt() > s.cuts.ElectronPt && math.Abs(e.P4.Eta()) < s.cuts.ElectronEta
}

func (s *SynchSelector) goodMuon(m *event.Muon, pv event.PrimaryVertex) bool {
	c := s.cuts
	return m.P4.Pt() > c.MuonPt &&
		math.Abs(m.P4.Eta()) < c.MuonEta &&
		m.IsGlobal &&
		m.IsTracker &&
		m.MuonSegments > c.MuonSegments &&
		m.MuonHits > c.MuonHits &&
		m.NormalizedChi2 < c.MuonNormalizedChi2 &&
		m.TrackerHits > c.MuonTrackerHits &&
		m.PixelHits > c.MuonPixelHits &&
		math.Abs(m.D0) < c.MuonD0 &&
		math.Abs(m.Z-pv.Z) < c.MuonVertexZ
}

func (s *SynchSelector) lepton() bool {
	var ok bool
	if s.leptonMode == LeptonElectron {
		ok = len(s.goodElectrons) > 0
	} else {
		ok = len(s.goodMuons) > 0
	}
	return ok && s.pass(StageLepton)
}

func (s *SynchSelector) vetoSecondLepton() bool {
	var ok bool
	if s.leptonMode == LeptonElectron {
		ok = len(s.goodElectrons) == 1 && len(s.goodMuons) == 0
	} else {
		ok = len(s.goodMuons) == 1 && len(s.goodElectrons) == 0
	}
	return ok && s.pass(StageVetoSecondLepton)
}

func (s *SynchSelector) cutLepton() bool {
	lepton := s.Lepton()

	var iso *event.Isolation
	if s.leptonMode == LeptonElectron {
		iso = s.goodElectrons[0].PFIsolation
	} else {
		iso = s.goodMuons[0].PFIsolation
	}

	var ok bool
	switch s.cutMode {
	case Cut2D:
		ok = s.cut2D(lepton)
	case CutIsolation:
		ok = iso != nil && iso.Relative(lepton.Pt()) > s.cuts.Isolation
	}
	return ok && s.pass(StageCutLepton)
}

// cut2D passes when the closest nice jet is far enough in ΔR or the
// lepton pT relative to it is large. No nice jet passes trivially.
func (s *SynchSelector) cut2D(lepton kinematics.P4) bool {
	if len(s.niceJets) == 0 {
		return true
	}

	closest := -1
	minDR := math.MaxFloat64
	for i, j := range s.niceJets {
		if dr := kinematics.DeltaR(lepton, j.CorrectedP4); dr < minDR {
			minDR = dr
			closest = i
		}
	}
	if closest < 0 {
		return true
	}
	return minDR > s.cuts.Cut2DDeltaR ||
		kinematics.PtRel(lepton, s.niceJets[closest].CorrectedP4) > s.cuts.Cut2DPtRel
}

func (s *SynchSelector) leadingJet() bool {
	maxPt := 0.0
	for _, j := range s.goodJets {
		maxPt = math.Max(maxPt, j.CorrectedP4.Pt())
	}
	return maxPt > s.cuts.LeadingJetPt && s.pass(StageLeadingJet)
}

func (s *SynchSelector) htlep(ev *event.Event) bool {
	if ev.MissingEnergy == nil {
		return false
	}
	return ev.MissingEnergy.Pt()+s.Lepton().Pt() > s.cuts.HTlep && s.pass(StageHTlep)
}
