// Package ops loads the JSON operator configuration: the symbol registry,
// per-symbol risk limits, per-symbol market-making parameters, and feature
// flags. Limit and parameter values that originate as decimal strings in
// the file are parsed with github.com/yanun0323/decimal for exact
// round-tripping and converted to float64 once, at load time, so the hot
// path never touches decimal arithmetic.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/yanun0323/decimal"

	"marketmaker/internal/errors"
	"marketmaker/internal/maker"
	"marketmaker/internal/risk"
	"marketmaker/internal/schema"
)

// FileConfig mirrors the on-disk JSON layout.
type FileConfig struct {
	Registry RegistryConfig          `json:"registry"`
	Risk     map[string]LimitsConfig `json:"risk"`
	Maker    map[string]MakerConfig  `json:"maker"`
	Features FeatureFlagsConfig      `json:"features"`
}

// RegistryConfig describes the venues and symbols to register.
type RegistryConfig struct {
	Venues  []string       `json:"venues"`
	Symbols []SymbolConfig `json:"symbols"`
}

// SymbolConfig attaches a symbol to the venue it trades on.
type SymbolConfig struct {
	Name  string `json:"name"`
	Venue string `json:"venue"`
}

// LimitsConfig is the decimal-string wire form of risk.Limits. Decimal
// strings keep limit values exact in the config file; Load converts every
// field to the float64/Quantity form risk.Limits carries at runtime.
type LimitsConfig struct {
	MaxOrderSize        string `json:"max_order_size"`
	MaxNetPosition      string `json:"max_net_position"`
	MaxGrossPosition    string `json:"max_gross_position"`
	MaxDollarExposure   string `json:"max_dollar_exposure"`
	VaRLimit            string `json:"var_limit"`
	ESLimit             string `json:"es_limit"`
	MaxDrawdownLimit    string `json:"max_drawdown_limit"`
	MaxPositionDuration string `json:"max_position_duration"`
	MaxDailyLoss        string `json:"max_daily_loss"`
	MaxDailyTrades      int    `json:"max_daily_trades"`
}

// MakerConfig is the wire form of maker.Params.
type MakerConfig struct {
	SpreadPct    string `json:"spread_pct"`
	BaseSize     string `json:"base_size"`
	SkewFactor   string `json:"skew_factor"`
	TickSize     string `json:"tick_size"`
	Levels       int    `json:"levels"`
	LevelSpacing string `json:"level_spacing"`
}

// FeatureFlagsConfig is the raw JSON form of feature toggles. Pointers
// distinguish "absent" (use default) from an explicit false.
type FeatureFlagsConfig struct {
	EnableWSFeed    *bool `json:"enable_ws_feed"`
	EnableProfiling *bool `json:"enable_profiling"`
}

// FeatureFlags are the resolved, defaulted feature toggles.
type FeatureFlags struct {
	EnableWSFeed    bool
	EnableProfiling bool
}

// Loaded is the fully resolved configuration, ready to wire into a
// supervisor.
type Loaded struct {
	Registry *schema.Registry
	Risk     map[string]risk.Limits
	Maker    map[string]maker.Params
	Features FeatureFlags
}

// Load reads and resolves the configuration file at path.
func Load(path string) (Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config file")
	}

	var cfg FileConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "unmarshal config file")
	}

	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "build registry")
	}

	riskLimits, err := resolveRiskLimits(cfg.Risk)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "resolve risk limits")
	}

	makerParams, err := resolveMakerParams(cfg.Maker)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "resolve maker params")
	}

	return Loaded{
		Registry: registry,
		Risk:     riskLimits,
		Maker:    makerParams,
		Features: resolveFeatures(cfg.Features),
	}, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	venueIDs := make(map[string]schema.VenueID, len(cfg.Venues))
	for _, name := range cfg.Venues {
		id, err := reg.AddVenue(name)
		if err != nil {
			return nil, errors.Wrap(err, "add venue")
		}
		venueIDs[name] = id
	}
	for _, sym := range cfg.Symbols {
		venueID, ok := venueIDs[sym.Venue]
		if !ok {
			return nil, errors.New("symbol references unknown venue: " + sym.Venue)
		}
		if err := reg.AddSymbol(sym.Name, venueID); err != nil {
			return nil, errors.Wrap(err, "add symbol")
		}
	}
	return reg, nil
}

func resolveRiskLimits(cfg map[string]LimitsConfig) (map[string]risk.Limits, error) {
	out := make(map[string]risk.Limits, len(cfg))
	for symbol, lc := range cfg {
		maxOrderSize, err := decimalFloat(lc.MaxOrderSize)
		if err != nil {
			return nil, errors.Wrap(err, "max_order_size")
		}
		maxNetPosition, err := decimalFloat(lc.MaxNetPosition)
		if err != nil {
			return nil, errors.Wrap(err, "max_net_position")
		}
		maxGrossPosition, err := decimalFloat(lc.MaxGrossPosition)
		if err != nil {
			return nil, errors.Wrap(err, "max_gross_position")
		}
		maxDollarExposure, err := decimalFloat(lc.MaxDollarExposure)
		if err != nil {
			return nil, errors.Wrap(err, "max_dollar_exposure")
		}
		varLimit, err := decimalFloat(lc.VaRLimit)
		if err != nil {
			return nil, errors.Wrap(err, "var_limit")
		}
		esLimit, err := decimalFloat(lc.ESLimit)
		if err != nil {
			return nil, errors.Wrap(err, "es_limit")
		}
		maxDrawdownLimit, err := decimalFloat(lc.MaxDrawdownLimit)
		if err != nil {
			return nil, errors.Wrap(err, "max_drawdown_limit")
		}
		maxDailyLoss, err := decimalFloat(lc.MaxDailyLoss)
		if err != nil {
			return nil, errors.Wrap(err, "max_daily_loss")
		}

		var maxDuration time.Duration
		if lc.MaxPositionDuration != "" {
			d, err := time.ParseDuration(lc.MaxPositionDuration)
			if err != nil {
				return nil, errors.Wrap(err, "max_position_duration")
			}
			maxDuration = d
		}

		out[symbol] = risk.Limits{
			MaxOrderSize:        schema.Quantity(maxOrderSize),
			MaxNetPosition:      schema.Quantity(maxNetPosition),
			MaxGrossPosition:    schema.Quantity(maxGrossPosition),
			MaxDollarExposure:   maxDollarExposure,
			VaRLimit:            varLimit,
			ESLimit:             esLimit,
			MaxDrawdownLimit:    maxDrawdownLimit,
			MaxPositionDuration: maxDuration,
			MaxDailyLoss:        maxDailyLoss,
			MaxDailyTrades:      lc.MaxDailyTrades,
		}
	}
	return out, nil
}

func resolveMakerParams(cfg map[string]MakerConfig) (map[string]maker.Params, error) {
	out := make(map[string]maker.Params, len(cfg))
	for symbol, mc := range cfg {
		spreadPct, err := decimalFloat(mc.SpreadPct)
		if err != nil {
			return nil, errors.Wrap(err, "spread_pct")
		}
		baseSize, err := decimalFloat(mc.BaseSize)
		if err != nil {
			return nil, errors.Wrap(err, "base_size")
		}
		skewFactor, err := decimalFloat(mc.SkewFactor)
		if err != nil {
			return nil, errors.Wrap(err, "skew_factor")
		}
		tickSize, err := decimalFloat(mc.TickSize)
		if err != nil {
			return nil, errors.Wrap(err, "tick_size")
		}
		levelSpacing, err := decimalFloat(mc.LevelSpacing)
		if err != nil {
			return nil, errors.Wrap(err, "level_spacing")
		}

		out[symbol] = maker.Params{
			SpreadPct:    spreadPct,
			BaseSize:     baseSize,
			SkewFactor:   skewFactor,
			TickSize:     tickSize,
			Levels:       mc.Levels,
			LevelSpacing: levelSpacing,
		}
	}
	return out, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableWSFeed:    false,
		EnableProfiling: true,
	}
	if cfg.EnableWSFeed != nil {
		flags.EnableWSFeed = *cfg.EnableWSFeed
	}
	if cfg.EnableProfiling != nil {
		flags.EnableProfiling = *cfg.EnableProfiling
	}
	return flags
}

// decimalFloat parses an optional decimal string into a float64, returning
// 0 for an empty string (the field was omitted, meaning "not enforced" for
// limits and "zero" for maker parameters).
func decimalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrap(err, "parse decimal")
	}
	f, _ := d.Float64()
	return f, nil
}
