package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidateRejectsBadSampleRate(t *testing.T) {
	cfg := Default()
	cfg.SampleRate = 7999
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsDuplicateChannelIDs(t *testing.T) {
	cfg := Default()
	cfg.Channels = []AudioChannel{
		{ID: 1, Gain: 1, Pan: 0, Compressor: CompressorParams{ThresholdDB: -20, Ratio: 2, AttackMS: 5, ReleaseMS: 100}},
		{ID: 1, Gain: 1, Pan: 0, Compressor: CompressorParams{ThresholdDB: -20, Ratio: 2, AttackMS: 5, ReleaseMS: 100}},
	}
	assert.Error(t, Validate(cfg))
}

func TestValidateChannelRejectsOutOfRangeGain(t *testing.T) {
	ch := AudioChannel{
		ID:         1,
		Gain:       2.5,
		Compressor: CompressorParams{ThresholdDB: -20, Ratio: 2, AttackMS: 5, ReleaseMS: 100},
	}
	assert.Error(t, ValidateChannel(ch))
}

func TestValidateAcceptsWellFormedChannel(t *testing.T) {
	ch := AudioChannel{
		ID:            1,
		InputDeviceID: "mic-1",
		Gain:          1,
		Pan:           0,
		Compressor:    CompressorParams{ThresholdDB: -20, Ratio: 2, AttackMS: 5, ReleaseMS: 100},
	}
	assert.NoError(t, ValidateChannel(ch))
}
