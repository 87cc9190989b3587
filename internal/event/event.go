// Package event defines the reconstructed collision event record read by
// the analysis: primary vertices, jets with b-tag discriminators, particle
// flow electrons and muons, missing transverse energy and the generator
// level decay tree.
package event

import (
	"math"

	"github.com/banshee-data/mttbar/internal/kinematics"
)

// PDG particle identifiers used by the analysis.
const (
	PDGElectron = 11
	PDGMuon     = 13
	PDGTop      = 6
	PDGWBoson   = 24
)

// BTagAlgorithm names a b-tagging discriminator.
type BTagAlgorithm string

const (
	SSVHE BTagAlgorithm = "SSVHE"
	SSVHP BTagAlgorithm = "SSVHP"
	TCHE  BTagAlgorithm = "TCHE"
	TCHP  BTagAlgorithm = "TCHP"
	JP    BTagAlgorithm = "JP"
	CSV   BTagAlgorithm = "CSV"
)

// BTag is one discriminator value attached to a jet.
type BTag struct {
	Algorithm     BTagAlgorithm `json:"type"`
	Discriminator float64       `json:"discriminator"`
}

// Jet is a detector jet as written by the upstream producer.
type Jet struct {
	P4            kinematics.P4  `json:"p4"`
	UncorrectedP4 *kinematics.P4 `json:"uncorrected_p4,omitempty"`
	Area          float64        `json:"area,omitempty"`

	// Correction is the jet energy correction factor computed upstream.
	// Zero means the correction is not available for this jet.
	Correction     float64 `json:"correction,omitempty"`
	JESUncertainty float64 `json:"jes_uncertainty,omitempty"`

	BTags    []BTag          `json:"btags,omitempty"`
	Children []kinematics.P4 `json:"children,omitempty"`
}

// BTag returns the discriminator of the requested algorithm.
func (j *Jet) BTag(algorithm BTagAlgorithm) (float64, bool) {
	for _, b := range j.BTags {
		if b.Algorithm == algorithm {
			return b.Discriminator, true
		}
	}
	return 0, false
}

// Isolation holds particle flow isolation sums around a lepton.
type Isolation struct {
	ChargedHadron float64 `json:"charged_hadron"`
	NeutralHadron float64 `json:"neutral_hadron"`
	Photon        float64 `json:"photon"`
}

// Relative returns the isolation sum divided by pt.
func (i Isolation) Relative(pt float64) float64 {
	if pt == 0 {
		return math.Inf(1)
	}
	return (i.ChargedHadron + i.NeutralHadron + i.Photon) / pt
}

// Electron is a particle flow electron.
type Electron struct {
	P4          kinematics.P4 `json:"p4"`
	Z           float64       `json:"z"`
	D0          float64       `json:"d0"`
	PFIsolation *Isolation    `json:"pf_isolation,omitempty"`
}

// Muon is a particle flow muon with its track quality summary.
type Muon struct {
	P4             kinematics.P4 `json:"p4"`
	Z              float64       `json:"z"`
	D0             float64       `json:"d0"`
	IsGlobal       bool          `json:"is_global"`
	IsTracker      bool          `json:"is_tracker"`
	MuonSegments   int           `json:"muon_segments"`
	MuonHits       int           `json:"muon_hits"`
	NormalizedChi2 float64       `json:"normalized_chi2"`
	TrackerHits    int           `json:"tracker_hits"`
	PixelHits      int           `json:"pixel_hits"`
	PFIsolation    *Isolation    `json:"pf_isolation,omitempty"`
}

// PrimaryVertex is a reconstructed interaction vertex.
type PrimaryVertex struct {
	Ndof float64 `json:"ndof"`
	Z    float64 `json:"z"`
	Rho  float64 `json:"rho"`
}

// GenParticle is one node of the generator decay tree.
type GenParticle struct {
	ID       int           `json:"id"`
	Status   int           `json:"status"`
	P4       kinematics.P4 `json:"p4"`
	Children []GenParticle `json:"children,omitempty"`
}

// Event is one reconstructed collision.
type Event struct {
	Run  uint32  `json:"run"`
	Lumi uint32  `json:"lumi"`
	ID   uint64  `json:"id"`
	Rho  float64 `json:"rho,omitempty"`

	PrimaryVertices []PrimaryVertex `json:"primary_vertices,omitempty"`
	Jets            []Jet           `json:"jets,omitempty"`
	Electrons       []Electron      `json:"pf_electrons,omitempty"`
	Muons           []Muon          `json:"pf_muons,omitempty"`
	MissingEnergy   *kinematics.P4  `json:"missing_energy,omitempty"`
	GenParticles    []GenParticle   `json:"gen_particles,omitempty"`
}

// HasMissingEnergy reports whether the event carries a MET record.
func (e *Event) HasMissingEnergy() bool {
	return e.MissingEnergy != nil
}

// FindGenParticle returns the index of the first status-3 particle in
// particles[from:] whose |ID| equals id, or -1.
func FindGenParticle(particles []GenParticle, id, from int) int {
	for i := from; i < len(particles); i++ {
		p := particles[i]
		if p.Status == 3 && absInt(p.ID) == id {
			return i
		}
	}
	return -1
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
