// Package analyzer runs the synchronisation selection and the ttbar
// reconstruction on one event at a time.
package analyzer

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/kinematics"
	"github.com/banshee-data/mttbar/internal/monitor"
	"github.com/banshee-data/mttbar/internal/reco"
	"github.com/banshee-data/mttbar/internal/selection"
)

// Status says how far an event got.
type Status int

const (
	StatusNoMissingEnergy Status = iota
	StatusNotSemileptonic
	StatusRejected
	StatusSkipped
	StatusInvalid
	StatusReconstructed
)

func (s Status) String() string {
	switch s {
	case StatusNoMissingEnergy:
		return "no_met"
	case StatusNotSemileptonic:
		return "not_semileptonic"
	case StatusRejected:
		return "rejected"
	case StatusSkipped:
		return "skipped"
	case StatusInvalid:
		return "invalid"
	case StatusReconstructed:
		return "reconstructed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Config holds everything needed to build an analyzer.
type Config struct {
	Strategy         reco.Strategy
	MaxJets          int
	WMass            float64
	LeptonMode       selection.LeptonMode
	CutMode          selection.CutMode
	Systematic       selection.Systematic
	Cuts             selection.Cuts
	UseGeneratorMass bool
}

// DefaultConfig is the simple strategy on muon events with the 2D cut.
func DefaultConfig() Config {
	return Config{
		Strategy:   reco.StrategySimple,
		MaxJets:    reco.DefaultMaxJets,
		WMass:      reco.WMass,
		LeptonMode: selection.LeptonMuon,
		CutMode:    selection.Cut2D,
		Cuts:       selection.DefaultCuts(),
	}
}

// Outcome is the per-event product of Process.
type Outcome struct {
	Run     uint32
	Lumi    uint32
	EventID uint64
	Status  Status

	Lepton kinematics.P4
	MET    kinematics.P4
	Result reco.Result

	// MGen is the generator ttbar mass, set when HasGen is true.
	MGen   float64
	HasGen bool

	Latency time.Duration
}

// Reconstructed reports whether the event produced a resonance mass.
func (o Outcome) Reconstructed() bool { return o.Status == StatusReconstructed }

// Fill adds the outcome to m.
func (o Outcome) Fill(m *monitor.MttbarMonitor) {
	if o.HasGen {
		m.FillGenerated()
	}
	switch o.Status {
	case StatusSkipped:
		m.FillSkipped()
	case StatusInvalid, StatusReconstructed:
		m.FillReconstruction(o.Lepton, o.Result)
		if o.Reconstructed() && o.HasGen {
			m.FillGeneratorComparison(o.Result.MTTbar.Mass(), o.MGen)
		}
	}
}

// MttbarAnalyzer owns a selector and a reconstruction engine. It is not
// safe for concurrent use; run one per goroutine.
type MttbarAnalyzer struct {
	cfg      Config
	selector *selection.SynchSelector
	engine   *reco.Reconstructor
	monitor  *monitor.MttbarMonitor
}

// New builds an analyzer. When mon is non-nil every outcome is filled
// into it by Process.
func New(cfg Config, mon *monitor.MttbarMonitor) (*MttbarAnalyzer, error) {
	opts := []reco.Option{reco.WithMaxJets(cfg.MaxJets)}
	if cfg.WMass > 0 {
		opts = append(opts, reco.WithWMass(cfg.WMass))
	}
	engine, err := reco.NewReconstructor(cfg.Strategy, opts...)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	return &MttbarAnalyzer{
		cfg:      cfg,
		selector: selection.NewSynchSelector(cfg.LeptonMode, cfg.CutMode, cfg.Cuts, selection.NewJetCorrector(cfg.Systematic)),
		engine:   engine,
		monitor:  mon,
	}, nil
}

func (a *MttbarAnalyzer) Config() Config { return a.cfg }

// Cutflow is the selection cutflow accumulated so far.
func (a *MttbarAnalyzer) Cutflow() *selection.Cutflow { return a.selector.Cutflow() }

// Monitor is the monitor passed to New, possibly nil.
func (a *MttbarAnalyzer) Monitor() *monitor.MttbarMonitor { return a.monitor }

var errNilEvent = errors.New("analyzer: nil event")

// Process runs one event. Events without missing energy, events failing
// the generator requirement and events failing selection are reported
// through Outcome.Status, not as errors.
func (a *MttbarAnalyzer) Process(ev *event.Event) (Outcome, error) {
	if ev == nil {
		return Outcome{}, errNilEvent
	}
	start := time.Now()
	out := Outcome{Run: ev.Run, Lumi: ev.Lumi, EventID: ev.ID}
	defer func() {
		if a.monitor != nil {
			out.Fill(a.monitor)
		}
	}()

	if !ev.HasMissingEnergy() {
		out.Status = StatusNoMissingEnergy
		return out, nil
	}

	if a.cfg.UseGeneratorMass {
		mgen, ok := GeneratorMass(ev.GenParticles, a.cfg.LeptonMode)
		if !ok {
			out.Status = StatusNotSemileptonic
			return out, nil
		}
		out.MGen, out.HasGen = mgen, true
	}

	if !a.selector.Apply(ev) {
		out.Status = StatusRejected
		return out, nil
	}

	jets := a.selector.GoodJets()
	out.Lepton = a.selector.Lepton()
	out.MET = correctedMET(*ev.MissingEnergy, a.selector.NiceJets())
	out.Result = a.engine.Reconstruct(out.Lepton, out.MET, jets)
	out.Latency = time.Since(start)

	switch {
	case out.Result.Skipped:
		out.Status = StatusSkipped
	case !out.Result.Valid:
		out.Status = StatusInvalid
	default:
		out.Status = StatusReconstructed
	}
	return out, nil
}

// correctedMET sums the missing energy shifts every corrected jet
// propagated on top of met.
func correctedMET(met kinematics.P4, jets []reco.CorrectedJet) kinematics.P4 {
	out := met
	for _, j := range jets {
		out = out.Add(j.CorrectedMET.Sub(met))
	}
	return out
}

// GeneratorMass returns the invariant mass of the first two status-3 top
// quarks when exactly one of them decays through a W into the lepton
// flavour of mode.
func GeneratorMass(particles []event.GenParticle, mode selection.LeptonMode) (float64, bool) {
	first := event.FindGenParticle(particles, event.PDGTop, 0)
	if first < 0 {
		return 0, false
	}
	second := event.FindGenParticle(particles, event.PDGTop, first+1)
	if second < 0 {
		return 0, false
	}

	lepton := mode.PDGID()
	if leptonic(particles[first], lepton) == leptonic(particles[second], lepton) {
		return 0, false
	}
	mass := particles[first].P4.Add(particles[second].P4).Mass()
	return mass, mass > 0
}

func leptonic(top event.GenParticle, lepton int) bool {
	w := event.FindGenParticle(top.Children, event.PDGWBoson, 0)
	if w < 0 {
		return false
	}
	return event.FindGenParticle(top.Children[w].Children, lepton, 0) >= 0
}
