package kinematics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/fmom"
)

const tol = 1e-9

func TestNewPtEtaPhiM_RoundTrip(t *testing.T) {
	cases := []struct {
		name            string
		pt, eta, phi, m float64
	}{
		{"central massless", 40, 0, 0, 0},
		{"forward massive", 150, 1.8, -2.1, 10},
		{"backward", 35, -2.3, 3.0, 4.8},
		{"top-like", 300, 0.4, 1.2, 173},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPtEtaPhiM(tc.pt, tc.eta, tc.phi, tc.m)
			assert.InDelta(t, tc.pt, p.Pt(), 1e-9)
			assert.InDelta(t, tc.eta, p.Eta(), 1e-9)
			assert.InDelta(t, tc.phi, p.Phi(), 1e-9)
			assert.InDelta(t, tc.m, p.Mass(), 1e-6)
		})
	}
}

func TestAddSubAreInverse(t *testing.T) {
	a := NewPxPyPzE(10, -5, 3, 20)
	b := NewPxPyPzE(-2, 7, 11, 30)

	got := a.Add(b).Sub(b)
	if got != a {
		t.Errorf("a+b-b = %+v, want %+v", got, a)
	}
	if s := Sum(a, b); s != a.Add(b) {
		t.Errorf("Sum(a,b) = %+v, want %+v", s, a.Add(b))
	}
	if !Sum().IsZero() {
		t.Error("empty Sum should be zero")
	}
}

func TestMass_SpaceLikeIsNegative(t *testing.T) {
	p := NewPxPyPzE(3, 0, 4, 3) // m² = 9 - 25 = -16
	assert.InDelta(t, -4.0, p.Mass(), tol)
	assert.InDelta(t, -16.0, p.M2(), tol)
}

func TestEta_AlongBeam(t *testing.T) {
	assert.Equal(t, etaLimit, NewPxPyPzE(0, 0, 5, 5).Eta())
	assert.Equal(t, -etaLimit, NewPxPyPzE(0, 0, -5, 5).Eta())
	assert.Equal(t, 0.0, NewPxPyPzE(0, 0, 0, 1).Eta())
}

func TestDeltaPhi_Wraps(t *testing.T) {
	a := NewPtEtaPhiM(10, 0, 3.0, 0)
	b := NewPtEtaPhiM(10, 0, -3.0, 0)

	d := DeltaPhi(a, b)
	assert.InDelta(t, 6.0-2*math.Pi, d, 1e-9)
	assert.LessOrEqual(t, math.Abs(d), math.Pi)
}

func TestDeltaR(t *testing.T) {
	a := NewPtEtaPhiM(10, 0.5, 0.1, 0)
	b := NewPtEtaPhiM(20, -0.5, 0.1, 0)
	assert.InDelta(t, 1.0, DeltaR(a, b), 1e-9)
	assert.InDelta(t, 0.0, DeltaR(a, a), 1e-12)
}

func TestAngle(t *testing.T) {
	x := NewPxPyPzE(1, 0, 0, 1)
	y := NewPxPyPzE(0, 2, 0, 2)
	minusX := NewPxPyPzE(-3, 0, 0, 3)

	assert.InDelta(t, math.Pi/2, Angle(x, y), tol)
	assert.InDelta(t, math.Pi, Angle(x, minusX), tol)
	assert.InDelta(t, 0.0, Angle(x, x), tol)
	assert.Equal(t, 0.0, Angle(x, P4{}))
}

func TestPtRel(t *testing.T) {
	p := NewPxPyPzE(3, 4, 0, 5)
	axis := NewPxPyPzE(1, 0, 0, 1)

	assert.InDelta(t, 4.0, PtRel(p, axis), tol)
	assert.InDelta(t, 5.0, PtRel(p, P4{}), tol)
}

func TestMtEt(t *testing.T) {
	p := NewPxPyPzE(3, 4, 0, 5)
	assert.InDelta(t, 5.0, p.Mt(), tol)
	assert.InDelta(t, 5.0, p.Et(), tol)
	assert.Equal(t, 0.0, P4{}.Et())
}

func TestWithersDoNotMutate(t *testing.T) {
	p := NewPxPyPzE(1, 2, 3, 4)
	q := p.WithPz(10).WithE(20)

	assert.Equal(t, 3.0, p.Pz())
	assert.Equal(t, 10.0, q.Pz())
	assert.Equal(t, 20.0, q.E())
	assert.Equal(t, NewPxPyPzE(1, 2, 0, 0), p.Transverse())
}

func TestSortByPtDesc_Stable(t *testing.T) {
	type item struct {
		name string
		p    P4
	}
	items := []item{
		{"a", NewPtEtaPhiM(40, 0, 0, 0)},
		{"b", NewPtEtaPhiM(150, 0, 0, 0)},
		{"c", NewPtEtaPhiM(40, 1, 0, 0)},
		{"d", NewPtEtaPhiM(80, 0, 0, 0)},
	}
	SortByPtDesc(items, func(i item) P4 { return i.p })

	var names []string
	for _, it := range items {
		names = append(names, it.name)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, names)
}

func TestJSON(t *testing.T) {
	p := NewPxPyPzE(1.5, -2, 3, 10)
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"px":1.5,"py":-2,"pz":3,"e":10}`, string(data))

	var back P4
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestAgreesWithFmom(t *testing.T) {
	p := NewPtEtaPhiM(50, 0.4, 2.9, 5)
	q := NewPtEtaPhiM(80, -1.1, -2.8, 10)
	fp := fmom.NewPxPyPzE(p.Px(), p.Py(), p.Pz(), p.E())
	fq := fmom.NewPxPyPzE(q.Px(), q.Py(), q.Pz(), q.E())

	assert.InDelta(t, fmom.DeltaR(&fp, &fq), DeltaR(p, q), 1e-6)
	// fmom measures Δφ from the second argument.
	assert.InDelta(t, -fmom.DeltaPhi(&fp, &fq), DeltaPhi(p, q), 1e-6)
	assert.InDelta(t, math.Acos(fmom.CosTheta(&fp, &fq)), Angle(p, q), 1e-6)
	assert.InDelta(t, fmom.InvMass(&fp, &fq), p.Add(q).Mass(), 1e-6)

	// Without a direction fmom's cosine is NaN; Angle reports 0.
	var zero fmom.PxPyPzE
	assert.True(t, math.IsNaN(fmom.CosTheta(&fp, &zero)))
	assert.Zero(t, Angle(p, P4{}))
}
