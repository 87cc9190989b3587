package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/kinematics"
	"github.com/banshee-data/mttbar/internal/monitor"
	"github.com/banshee-data/mttbar/internal/monitoring"
	"github.com/banshee-data/mttbar/internal/reco"
	"github.com/banshee-data/mttbar/internal/selection"
)

func testEvent() *event.Event {
	met := kinematics.NewPtEtaPhiM(120, 0, -0.5, 0)
	return &event.Event{
		Run:             7,
		Lumi:            3,
		ID:              42,
		PrimaryVertices: []event.PrimaryVertex{{Ndof: 10, Z: 1, Rho: 0.5}},
		Jets: []event.Jet{
			{P4: kinematics.NewPtEtaPhiM(300, 0.5, 3.0, 20), Correction: 1, JESUncertainty: 0.1},
			{P4: kinematics.NewPtEtaPhiM(80, -0.3, -2.5, 10), Correction: 1, JESUncertainty: 0.1},
		},
		Muons: []event.Muon{{
			P4:             kinematics.NewPtEtaPhiM(60, 0.2, 0, 0),
			Z:              1.2,
			D0:             0.01,
			IsGlobal:       true,
			IsTracker:      true,
			MuonSegments:   2,
			MuonHits:       5,
			NormalizedChi2: 1,
			TrackerHits:    12,
			PixelHits:      2,
		}},
		MissingEnergy: &met,
	}
}

func top(p4 kinematics.P4, lepton int) event.GenParticle {
	w := event.GenParticle{ID: event.PDGWBoson, Status: 3, Children: []event.GenParticle{
		{ID: lepton, Status: 3},
	}}
	return event.GenParticle{ID: event.PDGTop, Status: 3, P4: p4, Children: []event.GenParticle{w}}
}

func semileptonic() []event.GenParticle {
	return []event.GenParticle{
		{ID: 21, Status: 3},
		top(kinematics.NewPtEtaPhiM(100, 0.5, 0.2, 173), -event.PDGMuon),
		top(kinematics.NewPtEtaPhiM(120, -0.5, 2.9, 173), 1),
	}
}

func newAnalyzer(t *testing.T, cfg Config, mon *monitor.MttbarMonitor) *MttbarAnalyzer {
	t.Helper()
	a, err := New(cfg, mon)
	require.NoError(t, err)
	return a
}

func TestProcess_Reconstructed(t *testing.T) {
	mon := monitor.NewMttbarMonitor()
	a := newAnalyzer(t, DefaultConfig(), mon)

	out, err := a.Process(testEvent())
	require.NoError(t, err)
	assert.Equal(t, StatusReconstructed, out.Status)
	assert.True(t, out.Reconstructed())
	assert.Equal(t, uint32(7), out.Run)
	assert.Equal(t, uint64(42), out.EventID)
	assert.Equal(t, 9, out.Result.Hypotheses)
	assert.Equal(t, 1, out.Result.HTopNJets)
	assert.Positive(t, out.Result.MTTbar.Mass())
	assert.Equal(t, *testEvent().MissingEnergy, out.MET)

	assert.Equal(t, int64(1), mon.MReco.Entries())
	assert.Equal(t, uint64(1), a.Cutflow().Count(selection.StageHTlep))
}

func TestProcess_NoMissingEnergy(t *testing.T) {
	a := newAnalyzer(t, DefaultConfig(), nil)
	ev := testEvent()
	ev.MissingEnergy = nil

	out, err := a.Process(ev)
	require.NoError(t, err)
	assert.Equal(t, StatusNoMissingEnergy, out.Status)
	assert.Zero(t, a.Cutflow().Count(selection.StagePreselection))
}

func TestProcess_GeneratorMass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseGeneratorMass = true
	mon := monitor.NewMttbarMonitor()
	a := newAnalyzer(t, cfg, mon)

	out, err := a.Process(testEvent())
	require.NoError(t, err)
	assert.Equal(t, StatusNotSemileptonic, out.Status)
	assert.Zero(t, a.Cutflow().Count(selection.StagePreselection))

	ev := testEvent()
	ev.GenParticles = semileptonic()
	out, err = a.Process(ev)
	require.NoError(t, err)
	assert.Equal(t, StatusReconstructed, out.Status)
	assert.True(t, out.HasGen)
	assert.Positive(t, out.MGen)

	assert.Equal(t, uint64(1), mon.GenEvents)
	assert.Equal(t, int64(1), mon.MGen.Entries())
	assert.Equal(t, int64(1), mon.MRecoVsMGen.Entries())
}

func TestProcess_Rejected(t *testing.T) {
	a := newAnalyzer(t, DefaultConfig(), nil)
	ev := testEvent()
	ev.Muons = nil

	out, err := a.Process(ev)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)
	assert.False(t, out.Reconstructed())
}

func TestProcess_Skipped(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })

	cfg := DefaultConfig()
	cfg.MaxJets = 1
	mon := monitor.NewMttbarMonitor()
	a := newAnalyzer(t, cfg, mon)

	out, err := a.Process(testEvent())
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Len(t, logged, 1)
	assert.Equal(t, uint64(1), mon.Skipped)
	assert.Zero(t, mon.MReco.Entries())
}

func TestProcess_Systematic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Systematic = selection.SystematicUp
	a := newAnalyzer(t, cfg, nil)

	ev := testEvent()
	out, err := a.Process(ev)
	require.NoError(t, err)
	require.True(t, out.Reconstructed())

	shift := ev.Jets[0].P4.Transverse().Add(ev.Jets[1].P4.Transverse()).Scale(-0.1)
	want := ev.MissingEnergy.Add(shift)
	assert.InDelta(t, want.Px(), out.MET.Px(), 1e-9)
	assert.InDelta(t, want.Py(), out.MET.Py(), 1e-9)
}

func TestProcess_NilEvent(t *testing.T) {
	a := newAnalyzer(t, DefaultConfig(), nil)
	_, err := a.Process(nil)
	assert.Error(t, err)
}

func TestNew_UnknownStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = reco.Strategy(99)
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, reco.ErrUnknownStrategy)
}

func TestGeneratorMass(t *testing.T) {
	particles := semileptonic()
	want := particles[1].P4.Add(particles[2].P4).Mass()

	got, ok := GeneratorMass(particles, selection.LeptonMuon)
	require.True(t, ok)
	assert.InDelta(t, want, got, 1e-9)

	_, ok = GeneratorMass(particles, selection.LeptonElectron)
	assert.False(t, ok, "wrong lepton flavour")

	dilepton := semileptonic()
	dilepton[2] = top(dilepton[2].P4, event.PDGMuon)
	_, ok = GeneratorMass(dilepton, selection.LeptonMuon)
	assert.False(t, ok, "both tops leptonic")

	_, ok = GeneratorMass(particles[:2], selection.LeptonMuon)
	assert.False(t, ok, "single top")

	unstable := semileptonic()
	unstable[1].Status = 2
	_, ok = GeneratorMass(unstable, selection.LeptonMuon)
	assert.False(t, ok, "first top not status 3")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "reconstructed", StatusReconstructed.String())
	assert.Equal(t, "Status(12)", Status(12).String())
}
