package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/beats-galore/mixer-core/internal/validation"
)

// Load reads a MixerConfig from the given YAML path via viper, falling
// back to Default()'s values for anything unset, and validates the
// result before returning it.
func Load(path string) (MixerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return MixerConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg MixerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return MixerConfig{}, fmt.Errorf("unmarshaling config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return MixerConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("sample_rate", def.SampleRate)
	v.SetDefault("buffer_size", def.BufferSize)
	v.SetDefault("master_gain", def.MasterGain)
	v.SetDefault("enable_loopback", def.EnableLoopback)
}

// Validate checks every invariant §3 names against cfg: field bounds,
// the buffer-size/sample-rate relationship, and channel ID uniqueness.
func Validate(cfg MixerConfig) error {
	if err := validation.SampleRate(cfg.SampleRate); err != nil {
		return err
	}
	if err := validation.BufferSize(cfg.BufferSize, cfg.SampleRate); err != nil {
		return err
	}
	if err := validation.MasterGain(cfg.MasterGain); err != nil {
		return err
	}

	ids := make([]uint32, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if err := ValidateChannel(ch); err != nil {
			return err
		}
		ids = append(ids, ch.ID)
	}
	if err := validation.UniqueChannelIDs(ids); err != nil {
		return err
	}

	for _, out := range cfg.OutputDevices {
		if err := validation.DeviceID(out.ID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateChannel checks one AudioChannel's field bounds.
func ValidateChannel(ch AudioChannel) error {
	if err := validation.ChannelID(ch.ID); err != nil {
		return err
	}
	if ch.InputDeviceID != "" {
		if err := validation.DeviceID(ch.InputDeviceID); err != nil {
			return err
		}
	}
	if err := validation.Gain(ch.Gain); err != nil {
		return err
	}
	if err := validation.Pan(ch.Pan); err != nil {
		return err
	}
	if err := validation.EQBandDB(ch.EQLowDB); err != nil {
		return err
	}
	if err := validation.EQBandDB(ch.EQMidDB); err != nil {
		return err
	}
	if err := validation.EQBandDB(ch.EQHighDB); err != nil {
		return err
	}
	if err := validation.CompressorThresholdDB(ch.Compressor.ThresholdDB); err != nil {
		return err
	}
	if err := validation.CompressorRatio(ch.Compressor.Ratio); err != nil {
		return err
	}
	if err := validation.CompressorAttackMS(ch.Compressor.AttackMS); err != nil {
		return err
	}
	if err := validation.CompressorReleaseMS(ch.Compressor.ReleaseMS); err != nil {
		return err
	}
	if err := validation.LimiterThresholdDB(ch.LimiterThreshDB); err != nil {
		return err
	}
	return nil
}
