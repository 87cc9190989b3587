package reco

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy selects a validity policy, a discriminator and a tie-break
// direction.
type Strategy int

const (
	StrategySimple Strategy = iota
	StrategyBtag
	StrategyDeltaR
	StrategyHemisphere
	StrategyMass
	StrategyDeltaPhi
	StrategyMassDeltaPhi
	StrategySimpleMass
	StrategySimpleMassDeltaPhi
	StrategyCollimatedMass
	StrategyCollimatedTopMass
	StrategyCollimatedTops
	StrategyChiSquare
)

// ErrUnknownStrategy is returned for a strategy name or value that is not
// one of the constants above.
var ErrUnknownStrategy = errors.New("unknown reconstruction strategy")

var strategyNames = [...]string{
	StrategySimple:             "simple",
	StrategyBtag:               "btag",
	StrategyDeltaR:             "dr",
	StrategyHemisphere:         "hemisphere",
	StrategyMass:               "mass",
	StrategyDeltaPhi:           "dphi",
	StrategyMassDeltaPhi:       "mass_dphi",
	StrategySimpleMass:         "simple_mass",
	StrategySimpleMassDeltaPhi: "simple_mass_dphi",
	StrategyCollimatedMass:     "collimated_mass",
	StrategyCollimatedTopMass:  "collimated_top_mass",
	StrategyCollimatedTops:     "collimated_tops",
	StrategyChiSquare:          "chi2",
}

// Strategies lists every known strategy in declaration order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategyNames))
	for i := range strategyNames {
		out[i] = Strategy(i)
	}
	return out
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy maps a configuration name to a Strategy. Matching is case
// insensitive.
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range strategyNames {
		if candidate == n {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(strategyNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	return []byte(strategyNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// policies returns the building blocks of s.
func (s Strategy) policies() (ValidityPolicy, Discriminator, TieBreak, error) {
	deltaR := ComposedDiscriminator{
		LeptonicTerms: []LeptonicTerm{LeptonicDeltaRSum},
		HadronicTerms: []HadronicTerm{TopsDeltaR},
	}
	withHadronic := func(terms ...HadronicTerm) ComposedDiscriminator {
		return ComposedDiscriminator{
			LeptonicTerms: []LeptonicTerm{LeptonicDeltaRSum},
			HadronicTerms: terms,
		}
	}

	switch s {
	case StrategySimple:
		return SimpleValidity{}, deltaR, TieBreakLargerHadronic, nil
	case StrategyBtag:
		return NewBtagValidity(), deltaR, TieBreakLargerHadronic, nil
	case StrategyDeltaR:
		return NewDeltaRValidity(), deltaR, TieBreakLargerHadronic, nil
	case StrategyHemisphere:
		return HemisphereValidity{}, deltaR, TieBreakLargerHadronic, nil
	case StrategyMass:
		return SimpleValidity{}, withHadronic(HadronicTopMass), TieBreakLargerHadronic, nil
	case StrategyDeltaPhi:
		return SimpleValidity{}, withHadronic(TopsDeltaPhi), TieBreakLargerHadronic, nil
	case StrategyMassDeltaPhi:
		return SimpleValidity{}, withHadronic(HadronicTopMass, TopsDeltaPhi), TieBreakLargerHadronic, nil
	case StrategySimpleMass:
		return SimpleValidity{}, withHadronic(TopsDeltaR, HadronicTopMass), TieBreakLargerHadronic, nil
	case StrategySimpleMassDeltaPhi:
		return SimpleValidity{}, withHadronic(TopsDeltaR, HadronicTopMass, TopsDeltaPhi), TieBreakLargerHadronic, nil
	case StrategyCollimatedMass:
		return SimpleValidity{}, withHadronic(TopsDeltaR, HadronicTopMass, Collimation), TieBreakLargerHadronic, nil
	case StrategyCollimatedTopMass:
		return SingleLeptonicJetValidity{}, ComposedDiscriminator{
			LeptonicTerms: []LeptonicTerm{LeptonicTopMass},
			HadronicTerms: []HadronicTerm{HadronicTopMass, Collimation},
		}, TieBreakLargerHadronic, nil
	case StrategyCollimatedTops:
		return SingleLeptonicJetValidity{}, ComposedDiscriminator{
			LeptonicTerms: []LeptonicTerm{LeptonicDeltaRSum, LeptonicTopMass},
			HadronicTerms: []HadronicTerm{TopsDeltaR, HadronicTopMass, Collimation},
		}, TieBreakLargerHadronic, nil
	case StrategyChiSquare:
		return SimpleValidity{}, ComposedDiscriminator{
			LeptonicTerms: []LeptonicTerm{ChiSquareLeptonicTop},
			HadronicTerms: []HadronicTerm{ChiSquareHadronicTop},
		}, TieBreakSmallerHadronic, nil
	}
	return nil, nil, 0, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
}
