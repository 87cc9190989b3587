package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/mttbar/internal/analyzer"
	"github.com/banshee-data/mttbar/internal/reco"
	"github.com/banshee-data/mttbar/internal/selection"
)

// DefaultConfigPath is the canonical defaults file. Defaults() returns
// the same values.
const DefaultConfigPath = "config/analysis.defaults.json"

const maxFileSize = 1 * 1024 * 1024

// AnalysisConfig is the on-disk analysis configuration. Every field is
// optional; Get* methods fall back to the defaults.
type AnalysisConfig struct {
	Strategy      *string  `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	MaxJets       *int     `json:"max_jets,omitempty" yaml:"max_jets,omitempty"`
	WMass         *float64 `json:"w_mass,omitempty" yaml:"w_mass,omitempty"`
	LeptonMode    *string  `json:"lepton_mode,omitempty" yaml:"lepton_mode,omitempty"`
	CutMode       *string  `json:"cut_mode,omitempty" yaml:"cut_mode,omitempty"`
	JESSystematic *string  `json:"jes_systematic,omitempty" yaml:"jes_systematic,omitempty"`
	UseGenMass    *bool    `json:"use_gen_mass,omitempty" yaml:"use_gen_mass,omitempty"`
	Workers       *int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	MaxEvents     *int64   `json:"max_events,omitempty" yaml:"max_events,omitempty"`

	Selection *SelectionConfig `json:"selection,omitempty" yaml:"selection,omitempty"`
	Output    *OutputConfig    `json:"output,omitempty" yaml:"output,omitempty"`
}

// SelectionConfig overrides individual selection thresholds.
type SelectionConfig struct {
	NiceJetPt    *float64 `json:"nice_jet_pt,omitempty" yaml:"nice_jet_pt,omitempty"`
	GoodJetPt    *float64 `json:"good_jet_pt,omitempty" yaml:"good_jet_pt,omitempty"`
	JetEta       *float64 `json:"jet_eta,omitempty" yaml:"jet_eta,omitempty"`
	ElectronPt   *float64 `json:"electron_pt,omitempty" yaml:"electron_pt,omitempty"`
	ElectronEta  *float64 `json:"electron_eta,omitempty" yaml:"electron_eta,omitempty"`
	MuonPt       *float64 `json:"muon_pt,omitempty" yaml:"muon_pt,omitempty"`
	MuonEta      *float64 `json:"muon_eta,omitempty" yaml:"muon_eta,omitempty"`
	VertexNdof   *float64 `json:"vertex_ndof,omitempty" yaml:"vertex_ndof,omitempty"`
	VertexZ      *float64 `json:"vertex_z,omitempty" yaml:"vertex_z,omitempty"`
	VertexRho    *float64 `json:"vertex_rho,omitempty" yaml:"vertex_rho,omitempty"`
	LeadingJetPt *float64 `json:"leading_jet_pt,omitempty" yaml:"leading_jet_pt,omitempty"`
	HTlep        *float64 `json:"htlep,omitempty" yaml:"htlep,omitempty"`
	Cut2DDeltaR  *float64 `json:"cut2d_delta_r,omitempty" yaml:"cut2d_delta_r,omitempty"`
	Cut2DPtRel   *float64 `json:"cut2d_ptrel,omitempty" yaml:"cut2d_ptrel,omitempty"`
	Isolation    *float64 `json:"isolation,omitempty" yaml:"isolation,omitempty"`
}

// OutputConfig names the artefacts written by a run. Empty disables one.
type OutputConfig struct {
	YODA     *string `json:"yoda,omitempty" yaml:"yoda,omitempty"`
	PlotsDir *string `json:"plots_dir,omitempty" yaml:"plots_dir,omitempty"`
	HTML     *string `json:"html,omitempty" yaml:"html,omitempty"`
	Database *string `json:"database,omitempty" yaml:"database,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// Defaults returns a fully populated config matching DefaultConfigPath.
// Workers is left unset so it follows the machine.
func Defaults() *AnalysisConfig {
	cuts := selection.DefaultCuts()
	return &AnalysisConfig{
		Strategy:      ptrString(reco.StrategySimple.String()),
		MaxJets:       ptrInt(reco.DefaultMaxJets),
		WMass:         ptrFloat64(reco.WMass),
		LeptonMode:    ptrString(selection.LeptonMuon.String()),
		CutMode:       ptrString(selection.Cut2D.String()),
		JESSystematic: ptrString(selection.SystematicNone.String()),
		UseGenMass:    ptrBool(false),
		MaxEvents:     ptrInt64(0),
		Selection: &SelectionConfig{
			NiceJetPt:    ptrFloat64(cuts.NiceJetPt),
			GoodJetPt:    ptrFloat64(cuts.GoodJetPt),
			JetEta:       ptrFloat64(cuts.JetEta),
			ElectronPt:   ptrFloat64(cuts.ElectronPt),
			ElectronEta:  ptrFloat64(cuts.ElectronEta),
			MuonPt:       ptrFloat64(cuts.MuonPt),
			MuonEta:      ptrFloat64(cuts.MuonEta),
			VertexNdof:   ptrFloat64(cuts.VertexNdof),
			VertexZ:      ptrFloat64(cuts.VertexZ),
			VertexRho:    ptrFloat64(cuts.VertexRho),
			LeadingJetPt: ptrFloat64(cuts.LeadingJetPt),
			HTlep:        ptrFloat64(cuts.HTlep),
			Cut2DDeltaR:  ptrFloat64(cuts.Cut2DDeltaR),
			Cut2DPtRel:   ptrFloat64(cuts.Cut2DPtRel),
			Isolation:    ptrFloat64(cuts.Isolation),
		},
		Output: &OutputConfig{
			YODA:     ptrString("mttbar.yoda"),
			PlotsDir: ptrString(""),
			HTML:     ptrString(""),
			Database: ptrString("mttbar.db"),
		},
	}
}

// Load reads a .json, .yaml or .yml config file. Omitted fields keep
// their defaults through the Get* methods.
func Load(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AnalysisConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working
// directory or a parent. Intended for tests.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the enumerated fields. Numeric ranges are checked by
// Resolve.
func (c *AnalysisConfig) Validate() error {
	if c.Strategy != nil {
		if _, err := reco.ParseStrategy(*c.Strategy); err != nil {
			return err
		}
	}
	if c.LeptonMode != nil {
		if _, err := selection.ParseLeptonMode(*c.LeptonMode); err != nil {
			return err
		}
	}
	if c.CutMode != nil {
		if _, err := selection.ParseCutMode(*c.CutMode); err != nil {
			return err
		}
	}
	if c.JESSystematic != nil {
		if _, err := selection.ParseSystematic(*c.JESSystematic); err != nil {
			return err
		}
	}
	if c.MaxJets != nil && *c.MaxJets > reco.MaxGeneratorItems {
		return fmt.Errorf("max_jets must be at most %d, got %d", reco.MaxGeneratorItems, *c.MaxJets)
	}
	return nil
}

// GetStrategy returns the strategy or simple.
func (c *AnalysisConfig) GetStrategy() reco.Strategy {
	if c.Strategy == nil {
		return reco.StrategySimple
	}
	s, err := reco.ParseStrategy(*c.Strategy)
	if err != nil {
		return reco.StrategySimple
	}
	return s
}

func (c *AnalysisConfig) GetMaxJets() int {
	if c.MaxJets == nil {
		return reco.DefaultMaxJets
	}
	return *c.MaxJets
}

func (c *AnalysisConfig) GetWMass() float64 {
	if c.WMass == nil {
		return reco.WMass
	}
	return *c.WMass
}

func (c *AnalysisConfig) GetLeptonMode() selection.LeptonMode {
	if c.LeptonMode == nil {
		return selection.LeptonMuon
	}
	m, err := selection.ParseLeptonMode(*c.LeptonMode)
	if err != nil {
		return selection.LeptonMuon
	}
	return m
}

func (c *AnalysisConfig) GetCutMode() selection.CutMode {
	if c.CutMode == nil {
		return selection.Cut2D
	}
	m, err := selection.ParseCutMode(*c.CutMode)
	if err != nil {
		return selection.Cut2D
	}
	return m
}

func (c *AnalysisConfig) GetJESSystematic() selection.Systematic {
	if c.JESSystematic == nil {
		return selection.SystematicNone
	}
	s, err := selection.ParseSystematic(*c.JESSystematic)
	if err != nil {
		return selection.SystematicNone
	}
	return s
}

func (c *AnalysisConfig) GetUseGenMass() bool {
	return c.UseGenMass != nil && *c.UseGenMass
}

// GetWorkers defaults to the number of CPUs.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetMaxEvents returns the per-run event limit, 0 meaning unlimited.
func (c *AnalysisConfig) GetMaxEvents() int64 {
	if c.MaxEvents == nil {
		return 0
	}
	return *c.MaxEvents
}

// GetCuts applies the selection overrides to selection.DefaultCuts.
func (c *AnalysisConfig) GetCuts() selection.Cuts {
	cuts := selection.DefaultCuts()
	s := c.Selection
	if s == nil {
		return cuts
	}
	override := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	override(&cuts.NiceJetPt, s.NiceJetPt)
	override(&cuts.GoodJetPt, s.GoodJetPt)
	override(&cuts.JetEta, s.JetEta)
	override(&cuts.ElectronPt, s.ElectronPt)
	override(&cuts.ElectronEta, s.ElectronEta)
	override(&cuts.MuonPt, s.MuonPt)
	override(&cuts.MuonEta, s.MuonEta)
	override(&cuts.VertexNdof, s.VertexNdof)
	override(&cuts.VertexZ, s.VertexZ)
	override(&cuts.VertexRho, s.VertexRho)
	override(&cuts.LeadingJetPt, s.LeadingJetPt)
	override(&cuts.HTlep, s.HTlep)
	override(&cuts.Cut2DDeltaR, s.Cut2DDeltaR)
	override(&cuts.Cut2DPtRel, s.Cut2DPtRel)
	override(&cuts.Isolation, s.Isolation)
	return cuts
}

// GetOutput returns the output paths, defaulting to mttbar.yoda and
// mttbar.db with plots and HTML disabled.
func (c *AnalysisConfig) GetOutput() Output {
	out := Output{YODA: "mttbar.yoda", Database: "mttbar.db"}
	o := c.Output
	if o == nil {
		return out
	}
	if o.YODA != nil {
		out.YODA = *o.YODA
	}
	if o.PlotsDir != nil {
		out.PlotsDir = *o.PlotsDir
	}
	if o.HTML != nil {
		out.HTML = *o.HTML
	}
	if o.Database != nil {
		out.Database = *o.Database
	}
	return out
}

// Output holds resolved output paths.
type Output struct {
	YODA     string
	PlotsDir string
	HTML     string
	Database string
}

// Settings is the resolved configuration of a run.
type Settings struct {
	Strategy         reco.Strategy
	MaxJets          int     `validate:"gte=0,lte=20"`
	WMass            float64 `validate:"gt=0"`
	LeptonMode       selection.LeptonMode
	CutMode          selection.CutMode
	Systematic       selection.Systematic
	UseGeneratorMass bool
	Workers          int   `validate:"gte=1,lte=1024"`
	MaxEvents        int64 `validate:"gte=0"`
	Cuts             selection.Cuts
	Output           Output
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Resolve applies defaults and checks numeric ranges.
func (c *AnalysisConfig) Resolve() (Settings, error) {
	if err := c.Validate(); err != nil {
		return Settings{}, err
	}
	s := Settings{
		Strategy:         c.GetStrategy(),
		MaxJets:          c.GetMaxJets(),
		WMass:            c.GetWMass(),
		LeptonMode:       c.GetLeptonMode(),
		CutMode:          c.GetCutMode(),
		Systematic:       c.GetJESSystematic(),
		UseGeneratorMass: c.GetUseGenMass(),
		Workers:          c.GetWorkers(),
		MaxEvents:        c.GetMaxEvents(),
		Cuts:             c.GetCuts(),
		Output:           c.GetOutput(),
	}
	if err := validate.Struct(s); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// Analyzer converts the settings into an analyzer configuration.
func (s Settings) Analyzer() analyzer.Config {
	return analyzer.Config{
		Strategy:         s.Strategy,
		MaxJets:          s.MaxJets,
		WMass:            s.WMass,
		LeptonMode:       s.LeptonMode,
		CutMode:          s.CutMode,
		Systematic:       s.Systematic,
		Cuts:             s.Cuts,
		UseGeneratorMass: s.UseGeneratorMass,
	}
}
