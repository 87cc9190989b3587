// Package monitor holds the histograms filled by an mttbar run and
// exports them as YODA text, PNG plots or an HTML dashboard.
package monitor

import (
	"math"

	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Hist is a named histogram. Exactly one of H1 and H2 is set.
type Hist struct {
	Name  string
	Title string
	H1    *hbook.H1D
	H2    *hbook.H2D
}

// Entries is the number of fills of the histogram.
func (h Hist) Entries() int64 {
	if h.H1 != nil {
		return h.H1.Entries()
	}
	if h.H2 != nil {
		return h.H2.Entries()
	}
	return 0
}

func newH1(name, title string, n int, lo, hi float64) *hbook.H1D {
	h := hbook.NewH1D(n, lo, hi)
	h.Annotation()["name"] = name
	h.Annotation()["title"] = title
	return h
}

func newH2(name, title string, nx int, xlo, xhi float64, ny int, ylo, yhi float64) *hbook.H2D {
	h := hbook.NewH2D(nx, xlo, xhi, ny, ylo, yhi)
	h.Annotation()["name"] = name
	h.Annotation()["title"] = title
	return h
}

func h1(h *hbook.H1D) Hist {
	return Hist{Name: annotation(h.Annotation(), "name"), Title: annotation(h.Annotation(), "title"), H1: h}
}

func h2(h *hbook.H2D) Hist {
	return Hist{Name: annotation(h.Annotation(), "name"), Title: annotation(h.Annotation(), "title"), H2: h}
}

func annotation(a hbook.Annotation, key string) string {
	s, _ := a[key].(string)
	return s
}

// Summary describes the in-range content of a 1D histogram.
type Summary struct {
	Name    string
	Entries int64
	Sum     float64
	Mean    float64
	RMS     float64
}

// Summarize computes the weighted mean and spread from the bin centres.
// Under- and overflow are not included. Mean and RMS are NaN for an
// empty histogram.
func Summarize(name string, h *hbook.H1D) Summary {
	bins := h.Binning.Bins
	x := make([]float64, len(bins))
	w := make([]float64, len(bins))
	for i, b := range bins {
		x[i] = b.XMid()
		w[i] = b.SumW()
	}

	s := Summary{Name: name, Entries: h.Entries(), Sum: floats.Sum(w), Mean: math.NaN(), RMS: math.NaN()}
	if s.Sum <= 0 {
		return s
	}
	s.Mean, s.RMS = stat.PopMeanStdDev(x, w)
	return s
}
