package reco

import (
	"math"

	"github.com/banshee-data/mttbar/internal/kinematics"
)

// WMass is the W boson mass used for the leptonic W constraint, in GeV.
const WMass = 80.399

// NeutrinoSolutions are the neutrino momenta compatible with the W mass
// constraint. Count follows the discriminant of the constraint:
//
//	0  complex roots, the real part is returned as the single solution
//	1  degenerate root
//	2  two real roots
type NeutrinoSolutions struct {
	P4s   []kinematics.P4
	Count int
}

// NeutrinoSolver reconstructs the neutrino pz in W → l ν from the lepton
// and the measured missing transverse energy, neglecting the lepton and
// neutrino masses.
type NeutrinoSolver struct {
	WMass float64
}

// SolveNeutrino runs the solver with the nominal W mass.
func SolveNeutrino(lepton, met kinematics.P4) NeutrinoSolutions {
	return NeutrinoSolver{WMass: WMass}.Solve(lepton, met)
}

// coefficients returns a, b, c of
//
//	a·x² + 2·b·x + c = 0
//
// where x is the neutrino pz, a = -pT(l)², b = μ·pz(l),
// c = μ² - E(l)²·pT(ν)² and μ = mW²/2 + pT(l)·pT(ν).
func (s NeutrinoSolver) coefficients(lepton, met kinematics.P4) (a, b, c float64) {
	lt, nt := lepton.Transverse().Vec(), met.Transverse().Vec()

	mu := s.WMass*s.WMass/2 + lt.X*nt.X + lt.Y*nt.Y
	a = -(lt.X*lt.X + lt.Y*lt.Y)
	b = mu * lepton.Pz()
	c = mu*mu - lepton.E()*lepton.E()*(nt.X*nt.X+nt.Y*nt.Y)
	return a, b, c
}

// Solve returns one or two neutrino candidates. Each candidate keeps the
// transverse components of met, takes the solved pz and E = |p|.
//
// A lepton with zero transverse momentum makes a = 0 and the returned pz
// is whatever the IEEE division yields.
func (s NeutrinoSolver) Solve(lepton, met kinematics.P4) NeutrinoSolutions {
	a, b, c := s.coefficients(lepton, met)
	discriminant := b*b - a*c

	if discriminant <= 0 {
		count := 1
		if discriminant < 0 {
			count = 0
		}
		return NeutrinoSolutions{
			P4s:   []kinematics.P4{neutrinoWithPz(met, -b/a)},
			Count: count,
		}
	}

	root := math.Sqrt(discriminant)
	return NeutrinoSolutions{
		P4s: []kinematics.P4{
			neutrinoWithPz(met, (-b-root)/a),
			neutrinoWithPz(met, (-b+root)/a),
		},
		Count: 2,
	}
}

func neutrinoWithPz(met kinematics.P4, pz float64) kinematics.P4 {
	nu := met.WithPz(pz)
	return nu.WithE(nu.P())
}
