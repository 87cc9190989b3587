// Package testutil provides event fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/kinematics"
)

// SemileptonicEvent is a muon+jets event that passes the default muon
// selection with two good jets and reconstructs under every strategy.
func SemileptonicEvent(id uint64) *event.Event {
	met := kinematics.NewPtEtaPhiM(120, 0, -0.5, 0)
	return &event.Event{
		Run:             1,
		Lumi:            1,
		ID:              id,
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

// NoLeptonEvent is SemileptonicEvent without its muon; it fails the
// lepton stage.
func NoLeptonEvent(id uint64) *event.Event {
	ev := SemileptonicEvent(id)
	ev.Muons = nil
	return ev
}

// WriteEvents writes evs to path, compressed according to its extension.
func WriteEvents(t testing.TB, path string, evs ...*event.Event) {
	t.Helper()
	w, err := event.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	for _, ev := range evs {
		if err := w.Write(ev); err != nil {
			t.Fatalf("write event %d: %v", ev.ID, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}
