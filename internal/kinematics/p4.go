// Package kinematics provides the four-momentum value type shared by the
// event model, the object selectors and the ttbar reconstruction.
//
// P4 is immutable: every operation returns a new value. Energies and
// momenta are in GeV, angles in radians.
package kinematics

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// etaLimit is reported for vectors along the beam axis (pt == 0, pz != 0).
const etaLimit = 1e10

// P4 is a Lorentz four-momentum in the (px, py, pz, E) basis.
type P4 struct {
	px, py, pz, e float64
}

// NewPxPyPzE builds a four-momentum from cartesian components.
func NewPxPyPzE(px, py, pz, e float64) P4 {
	return P4{px: px, py: py, pz: pz, e: e}
}

// NewPtEtaPhiM builds a four-momentum from collider coordinates and mass.
func NewPtEtaPhiM(pt, eta, phi, m float64) P4 {
	px := pt * math.Cos(phi)
	py := pt * math.Sin(phi)
	pz := pt * math.Sinh(eta)
	p2 := px*px + py*py + pz*pz

	e2 := p2 + m*m
	if m < 0 {
		e2 = p2 - m*m
	}
	if e2 < 0 {
		e2 = 0
	}
	return P4{px: px, py: py, pz: pz, e: math.Sqrt(e2)}
}

// NewPtEtaPhiE builds a four-momentum from collider coordinates and energy.
func NewPtEtaPhiE(pt, eta, phi, e float64) P4 {
	return P4{
		px: pt * math.Cos(phi),
		py: pt * math.Sin(phi),
		pz: pt * math.Sinh(eta),
		e:  e,
	}
}

func (p P4) Px() float64 { return p.px }
func (p P4) Py() float64 { return p.py }
func (p P4) Pz() float64 { return p.pz }
func (p P4) E() float64  { return p.e }

// Vec returns the momentum 3-vector.
func (p P4) Vec() r3.Vec {
	return r3.Vec{X: p.px, Y: p.py, Z: p.pz}
}

// IsZero reports whether all four components are zero.
func (p P4) IsZero() bool {
	return p == P4{}
}

// Add returns p + q.
func (p P4) Add(q P4) P4 {
	return P4{px: p.px + q.px, py: p.py + q.py, pz: p.pz + q.pz, e: p.e + q.e}
}

// Sub returns p - q.
func (p P4) Sub(q P4) P4 {
	return P4{px: p.px - q.px, py: p.py - q.py, pz: p.pz - q.pz, e: p.e - q.e}
}

// Scale multiplies all four components by f.
func (p P4) Scale(f float64) P4 {
	return P4{px: f * p.px, py: f * p.py, pz: f * p.pz, e: f * p.e}
}

// WithPz returns a copy of p with the longitudinal component replaced.
func (p P4) WithPz(pz float64) P4 {
	p.pz = pz
	return p
}

// WithE returns a copy of p with the energy replaced.
func (p P4) WithE(e float64) P4 {
	p.e = e
	return p
}

// Transverse returns the transverse projection of p: pz and E are zeroed.
func (p P4) Transverse() P4 {
	return P4{px: p.px, py: p.py}
}

// Sum adds up any number of four-momenta.
func Sum(ps ...P4) P4 {
	var total P4
	for _, p := range ps {
		total = total.Add(p)
	}
	return total
}

// Pt2 is the squared transverse momentum.
func (p P4) Pt2() float64 { return p.px*p.px + p.py*p.py }

// Pt is the transverse momentum.
func (p P4) Pt() float64 { return math.Hypot(p.px, p.py) }

// P is the magnitude of the momentum 3-vector.
func (p P4) P() float64 { return r3.Norm(p.Vec()) }

// M2 is the squared invariant mass.
func (p P4) M2() float64 { return p.e*p.e - r3.Norm2(p.Vec()) }

// Mass is the invariant mass. Space-like vectors report -sqrt(-m²).
func (p P4) Mass() float64 {
	m2 := p.M2()
	if m2 < 0 {
		return -math.Sqrt(-m2)
	}
	return math.Sqrt(m2)
}

// Mt is the transverse mass sqrt(E² - pz²), negative when space-like.
func (p P4) Mt() float64 {
	mt2 := p.e*p.e - p.pz*p.pz
	if mt2 < 0 {
		return -math.Sqrt(-mt2)
	}
	return math.Sqrt(mt2)
}

// Et is the transverse energy E·sinθ.
func (p P4) Et() float64 {
	mag := p.P()
	if mag == 0 {
		return 0
	}
	return p.e * p.Pt() / mag
}

// Phi is the azimuthal angle in (-π, π].
func (p P4) Phi() float64 {
	if p.px == 0 && p.py == 0 {
		return 0
	}
	return math.Atan2(p.py, p.px)
}

// Eta is the pseudorapidity.
func (p P4) Eta() float64 {
	pt := p.Pt()
	if pt == 0 {
		switch {
		case p.pz > 0:
			return etaLimit
		case p.pz < 0:
			return -etaLimit
		default:
			return 0
		}
	}
	return math.Asinh(p.pz / pt)
}

// DeltaPhi returns φ(p) - φ(q) wrapped into [-π, π].
func DeltaPhi(p, q P4) float64 {
	return math.Remainder(p.Phi()-q.Phi(), 2*math.Pi)
}

// DeltaEta returns η(p) - η(q).
func DeltaEta(p, q P4) float64 {
	return p.Eta() - q.Eta()
}

// DeltaR is the η-φ distance between p and q.
func DeltaR(p, q P4) float64 {
	return math.Hypot(DeltaEta(p, q), DeltaPhi(p, q))
}

// Angle is the opening angle between the momenta of p and q in [0, π].
// Zero-length vectors have no direction and yield 0.
func Angle(p, q P4) float64 {
	a, b := p.Vec(), q.Vec()
	norm := r3.Norm(a) * r3.Norm(b)
	if norm == 0 {
		return 0
	}
	c := r3.Dot(a, b) / norm
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// PtRel is the momentum of p transverse to the direction of axis.
// With a zero axis the full momentum of p is returned.
func PtRel(p, axis P4) float64 {
	v, a := p.Vec(), axis.Vec()
	a2 := r3.Norm2(a)
	if a2 == 0 {
		return r3.Norm(v)
	}
	return r3.Norm(r3.Cross(v, a)) / math.Sqrt(a2)
}

// SortByPtDesc orders items by decreasing pt of the momentum returned by
// p4. The sort is stable so equal-pt items keep their input order.
func SortByPtDesc[T any](items []T, p4 func(T) P4) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(p4(b).Pt(), p4(a).Pt())
	})
}

type p4JSON struct {
	Px float64 `json:"px"`
	Py float64 `json:"py"`
	Pz float64 `json:"pz"`
	E  float64 `json:"e"`
}

// MarshalJSON encodes p as {"px":..,"py":..,"pz":..,"e":..}.
func (p P4) MarshalJSON() ([]byte, error) {
	return json.Marshal(p4JSON{Px: p.px, Py: p.py, Pz: p.pz, E: p.e})
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (p *P4) UnmarshalJSON(data []byte) error {
	var v p4JSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = P4{px: v.Px, py: v.Py, pz: v.Pz, e: v.E}
	return nil
}
