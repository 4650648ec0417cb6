package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TrendFollowParams tunes the trend-follow detector. Zero values are filled
// from defaults on load so a profile file may override a single knob.
type TrendFollowParams struct {
	MinHistory      int     `yaml:"min_history"`
	ADXFloor        float64 `yaml:"adx_floor"`
	VolumeSpikeMult float64 `yaml:"volume_spike_mult"`
	BBWidthFloor    float64 `yaml:"bb_width_floor"`
	ATRFloorPct     float64 `yaml:"atr_floor_pct"`
	StopATRMult     float64 `yaml:"stop_atr_mult"`
	RewardMult      float64 `yaml:"reward_mult"`
}

type MeanReversionParams struct {
	MinHistory  int     `yaml:"min_history"`
	RSIOversold float64 `yaml:"rsi_oversold"`
	RSIOverbuy  float64 `yaml:"rsi_overbought"`
	ADXCeiling  float64 `yaml:"adx_ceiling"`
	ATRCeilPct  float64 `yaml:"atr_ceiling_pct"`
	VolumeMult  float64 `yaml:"volume_mult"`
	StopATRMult float64 `yaml:"stop_atr_mult"`
}

type MomentumParams struct {
	MinHistory  int     `yaml:"min_history"`
	VolZFloor   float64 `yaml:"vol_z_floor"`
	RSIFloor    float64 `yaml:"rsi_floor"`
	RSICeiling  float64 `yaml:"rsi_ceiling"`
	ATRFloorPct float64 `yaml:"atr_floor_pct"`
	StopATRMult float64 `yaml:"stop_atr_mult"`
	RewardMult  float64 `yaml:"reward_mult"`
}

// Params is the tuning profile for all detectors.
type Params struct {
	TrendFollow   TrendFollowParams   `yaml:"trend_follow"`
	MeanReversion MeanReversionParams `yaml:"mean_reversion"`
	Momentum      MomentumParams      `yaml:"momentum"`
}

func DefaultParams() Params {
	return Params{
		TrendFollow: TrendFollowParams{
			MinHistory:      100,
			ADXFloor:        25,
			VolumeSpikeMult: 1.5,
			BBWidthFloor:    0.015,
			ATRFloorPct:     0.005,
			StopATRMult:     1.5,
			RewardMult:      3.0,
		},
		MeanReversion: MeanReversionParams{
			MinHistory:  100,
			RSIOversold: 20,
			RSIOverbuy:  80,
			ADXCeiling:  20,
			ATRCeilPct:  0.01,
			VolumeMult:  1.2,
			StopATRMult: 2.0,
		},
		Momentum: MomentumParams{
			MinHistory:  60,
			VolZFloor:   2.5,
			RSIFloor:    65,
			RSICeiling:  35,
			ATRFloorPct: 0.005,
			StopATRMult: 1.5,
			RewardMult:  3.0,
		},
	}
}

// LoadParams reads a yaml tuning profile over the defaults. A missing path
// returns defaults without error; a malformed file is a hard error.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse strategy profile %s: %w", path, err)
	}
	return p, nil
}
