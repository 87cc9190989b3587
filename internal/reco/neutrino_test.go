package reco

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mttbar/internal/kinematics"
)

func TestSolveNeutrino_TwoRealRoots(t *testing.T) {
	lepton := kinematics.NewPtEtaPhiM(40, 0.1, 0, 0)
	met := kinematics.NewPtEtaPhiM(35, 0, 0.2, 0)

	got := SolveNeutrino(lepton, met)
	require.Equal(t, 2, got.Count)
	require.Len(t, got.P4s, 2)

	assert.InDelta(t, 121.7300645589501, got.P4s[0].Pz(), 1e-6)
	assert.InDelta(t, -98.67121388319421, got.P4s[1].Pz(), 1e-6)

	a, b, c := NeutrinoSolver{WMass: WMass}.coefficients(lepton, met)
	for i, nu := range got.P4s {
		x := nu.Pz()
		residual := a*x*x + 2*b*x + c
		assert.InDelta(t, 0, residual/c, 1e-9, "solution %d", i)

		assert.Equal(t, met.Px(), nu.Px())
		assert.Equal(t, met.Py(), nu.Py())
		assert.InDelta(t, nu.P(), nu.E(), 1e-9)

		// massless lepton: the pair rebuilds the W
		assert.InDelta(t, WMass, lepton.Add(nu).Mass(), 1e-6, "solution %d", i)
	}
}

func TestSolveNeutrino_Degenerate(t *testing.T) {
	// c = 0 and pz(l) = 0 make the discriminant exactly zero.
	lepton := kinematics.NewPxPyPzE(40, 0, 0, 40)
	met := kinematics.NewPxPyPzE(-40, 0, 0, 40)

	got := NeutrinoSolver{WMass: 80}.Solve(lepton, met)
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.P4s, 1)
	assert.Equal(t, 0.0, math.Abs(got.P4s[0].Pz()))
	assert.Equal(t, 40.0, got.P4s[0].E())
}

func TestSolveNeutrino_Complex(t *testing.T) {
	lepton := kinematics.NewPxPyPzE(100, 0, 20, math.Sqrt(100*100+20*20))
	met := kinematics.NewPxPyPzE(-100, 0, 0, 100)

	solver := NeutrinoSolver{WMass: WMass}
	a, b, c := solver.coefficients(lepton, met)
	require.Less(t, b*b-a*c, 0.0)

	got := solver.Solve(lepton, met)
	assert.Equal(t, 0, got.Count)
	require.Len(t, got.P4s, 1)
	assert.InDelta(t, -b/a, got.P4s[0].Pz(), 1e-12)
	assert.Equal(t, -100.0, got.P4s[0].Px())
}

func TestSolveNeutrino_UsesConfiguredWMass(t *testing.T) {
	lepton := kinematics.NewPtEtaPhiM(50, -0.7, 1.0, 0)
	met := kinematics.NewPtEtaPhiM(45, 0, 2.0, 0)

	got := NeutrinoSolver{WMass: 90}.Solve(lepton, met)
	require.Equal(t, 2, got.Count)
	for _, nu := range got.P4s {
		assert.InDelta(t, 90, lepton.Add(nu).Mass(), 1e-6)
	}
}
