package monitor

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mttbar/internal/kinematics"
	"github.com/banshee-data/mttbar/internal/reco"
)

func validResult() reco.Result {
	ltop := kinematics.NewPtEtaPhiM(200, 0.3, 1.0, 172)
	htop := kinematics.NewPtEtaPhiM(220, -0.4, -2.0, 175)
	return reco.Result{
		Valid:      true,
		MTTbar:     ltop.Add(htop),
		LTop:       ltop,
		HTop:       htop,
		Neutrino:   kinematics.NewPxPyPzE(30, 10, 40, math.Sqrt(30*30+10*10+40*40)),
		Solutions:  2,
		HTopNJets:  2,
		Hypotheses: 27,
		Accepted:   12,
	}
}

func TestP4Monitor_Fill(t *testing.T) {
	m := NewP4Monitor("ltop", "leptonic top")
	m.Fill(kinematics.NewPtEtaPhiM(50, 0.5, 1, 20), 1)
	m.Fill(kinematics.NewPtEtaPhiM(70, -0.5, 2, 20), 1)

	hists := m.Histograms()
	require.Len(t, hists, 10)
	for _, h := range hists {
		assert.Equal(t, int64(2), h.Entries(), h.Name)
		assert.True(t, strings.HasPrefix(h.Name, "ltop_"), h.Name)
	}
	assert.InDelta(t, 60, m.Pt.XMean(), 1e-9)
	assert.InDelta(t, 20, m.Mass.XMean(), 1e-6)
}

func TestDeltaMonitor_Fill(t *testing.T) {
	m := NewDeltaMonitor("top_delta", "ltop-htop")
	a := kinematics.NewPtEtaPhiM(50, 0.5, 0.3, 0)
	b := kinematics.NewPtEtaPhiM(80, 0.1, 0.0, 0)
	m.Fill(a, b, 1)

	assert.InDelta(t, kinematics.DeltaR(a, b), m.R.XMean(), 1e-9)
	assert.Equal(t, int64(1), m.PtRelVsR.Entries())
	assert.Len(t, m.Histograms(), 6)
}

func TestMttbarMonitor_FillReconstruction(t *testing.T) {
	m := NewMttbarMonitor()
	res := validResult()
	lepton := kinematics.NewPtEtaPhiM(60, 0.2, 0.5, 0)

	m.FillReconstruction(lepton, res)
	assert.Equal(t, int64(1), m.MReco.Entries())
	assert.InDelta(t, res.MTTbar.Mass(), m.MReco.XMean(), 1e-9)
	assert.Equal(t, int64(1), m.MLTopVsMHTop.Entries())
	assert.InDelta(t, 2, m.HTopNJets.XMean(), 1e-9)
	assert.InDelta(t, 12, m.Hypotheses.XMean(), 1e-9)
	assert.InDelta(t, lepton.Add(res.Neutrino).Pt(), m.WLep.Pt.XMean(), 1e-9)

	m.FillReconstruction(lepton, reco.Result{Solutions: 1})
	assert.Equal(t, int64(2), m.Solutions.Entries())
	assert.Equal(t, int64(1), m.MReco.Entries())
}

func TestMttbarMonitor_Generator(t *testing.T) {
	m := NewMttbarMonitor()
	m.FillGenerated()
	m.FillGeneratorComparison(550, 500)
	m.FillSkipped()

	assert.Equal(t, uint64(1), m.GenEvents)
	assert.Equal(t, uint64(1), m.Skipped)
	assert.InDelta(t, 500, m.MGen.XMean(), 1e-9)
	assert.InDelta(t, 0.1, m.MRecoMinusMGen.XMean(), 1e-9)
	assert.Equal(t, int64(1), m.MRecoVsMGen.Entries())
}

func TestSummarize(t *testing.T) {
	h := newH1("x", "x", 10, 0, 10)
	h.Fill(2.2, 1)
	h.Fill(4.7, 1)
	h.Fill(42, 1)

	s := Summarize("x", h)
	assert.Equal(t, int64(3), s.Entries)
	assert.InDelta(t, 2, s.Sum, 1e-12)
	assert.InDelta(t, 3.5, s.Mean, 1e-12)
	assert.InDelta(t, 1, s.RMS, 1e-12)

	empty := Summarize("y", newH1("y", "y", 10, 0, 10))
	assert.True(t, math.IsNaN(empty.Mean))
	assert.True(t, math.IsNaN(empty.RMS))
}

func TestMttbarMonitor_Histograms(t *testing.T) {
	m := NewMttbarMonitor()
	hists := m.Histograms()
	assert.Len(t, hists, 8+4*10+6)

	seen := make(map[string]bool)
	for _, h := range hists {
		assert.False(t, seen[h.Name], "duplicate %s", h.Name)
		seen[h.Name] = true
		assert.True(t, (h.H1 == nil) != (h.H2 == nil), h.Name)
	}
	assert.Len(t, m.Summaries(), 5)
}

func TestWriteYODA(t *testing.T) {
	m := NewMttbarMonitor()
	m.FillReconstruction(kinematics.NewPtEtaPhiM(60, 0.2, 0.5, 0), validResult())

	var buf bytes.Buffer
	require.NoError(t, WriteYODA(&buf, m.Histograms()))
	out := buf.String()
	assert.Contains(t, out, "YODA_HISTO1D")
	assert.Contains(t, out, "YODA_HISTO2D")
	assert.Contains(t, out, "mreco")
	assert.Contains(t, out, "top_delta_ptrel_vs_r")
}

func TestWriteYODAFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yoda.gz")
	m := NewMttbarMonitor()
	require.NoError(t, WriteYODAFile(path, m.Histograms()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "mreco_vs_mgen")
}

func TestRenderPNG(t *testing.T) {
	m := NewP4Monitor("met", "missing energy")
	m.Fill(kinematics.NewPtEtaPhiM(40, 0, 1, 0), 1)

	dir := filepath.Join(t.TempDir(), "plots")
	files, err := RenderPNG(dir, append(m.Histograms(), h2(newH2("skip", "skip", 2, 0, 1, 2, 0, 1))))
	require.NoError(t, err)
	require.Len(t, files, 10)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestRenderHTML(t *testing.T) {
	m := NewMttbarMonitor()
	m.FillReconstruction(kinematics.NewPtEtaPhiM(60, 0.2, 0.5, 0), validResult())

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, m.Histograms()))
	out := buf.String()
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "mreco")
	assert.NotContains(t, out, "mgen")
}

func TestMassHistogram(t *testing.T) {
	h := MassHistogram([]float64{500, 700, 900})
	assert.Equal(t, "mreco", h.Name)
	assert.Equal(t, int64(3), h.Entries())
	assert.InDelta(t, 700, h.H1.XMean(), 5)
}
