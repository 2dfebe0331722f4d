package synthetic

import (
	"strings"
	"time"
)

var presets = map[string]Parameters{
	"es": {
		StartPrice:         5000,
		Mu:                 0.07,
		Sigma:              0.18,
		Digits:             2,
		AvgTickInterval:    250 * time.Millisecond,
		TickVariability:    0.6,
		AvgVolume:          3,
		VolumeVariance:     0.8,
		SessionStartMinute: 13*60 + 30,
		SessionEndMinute:   20 * 60,
	},
	"nq": {
		StartPrice:         18000,
		Mu:                 0.09,
		Sigma:              0.24,
		Digits:             2,
		AvgTickInterval:    300 * time.Millisecond,
		TickVariability:    0.6,
		AvgVolume:          2,
		VolumeVariance:     0.8,
		SessionStartMinute: 13*60 + 30,
		SessionEndMinute:   20 * 60,
	},
	"eurusd": {
		StartPrice:         1.0550,
		Mu:                 0,
		Sigma:              0.08,
		Digits:             5,
		AvgTickInterval:    time.Second,
		TickVariability:    0.45,
		AvgVolume:          1,
		VolumeVariance:     0.65,
		SessionStartMinute: 0,
		SessionEndMinute:   24 * 60,
	},
}

// Preset returns the built-in parameters for a symbol. Unknown symbols get the
// es parameters.
func Preset(symbol string) Parameters {
	if p, ok := presets[strings.ToLower(symbol)]; ok {
		return p
	}
	return presets["es"]
}
