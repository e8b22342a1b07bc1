// Package config defines the mixer's configuration record and loads it
// via viper, independent of the core pipeline package: the pipeline
// consumes a MixerConfig value handed to it, it never owns where that
// value came from.
package config

// CompressorParams mirrors the per-channel compressor control record.
type CompressorParams struct {
	ThresholdDB float64 `mapstructure:"threshold_db" yaml:"threshold_db"`
	Ratio       float64 `mapstructure:"ratio" yaml:"ratio"`
	AttackMS    float64 `mapstructure:"attack_ms" yaml:"attack_ms"`
	ReleaseMS   float64 `mapstructure:"release_ms" yaml:"release_ms"`
}

// AudioChannel is a single input's control record.
type AudioChannel struct {
	ID              uint32           `mapstructure:"id" yaml:"id"`
	Name            string           `mapstructure:"name" yaml:"name"`
	InputDeviceID   string           `mapstructure:"input_device_id" yaml:"input_device_id"`
	Gain            float64          `mapstructure:"gain" yaml:"gain"`
	Pan             float64          `mapstructure:"pan" yaml:"pan"`
	Muted           bool             `mapstructure:"muted" yaml:"muted"`
	Solo            bool             `mapstructure:"solo" yaml:"solo"`
	EffectsEnabled  bool             `mapstructure:"effects_enabled" yaml:"effects_enabled"`
	EQLowDB         float64          `mapstructure:"eq_low_db" yaml:"eq_low_db"`
	EQMidDB         float64          `mapstructure:"eq_mid_db" yaml:"eq_mid_db"`
	EQHighDB        float64          `mapstructure:"eq_high_db" yaml:"eq_high_db"`
	Compressor      CompressorParams `mapstructure:"compressor" yaml:"compressor"`
	CompEnabled     bool             `mapstructure:"comp_enabled" yaml:"comp_enabled"`
	LimiterThreshDB float64          `mapstructure:"limiter_threshold_db" yaml:"limiter_threshold_db"`
	LimiterEnabled  bool             `mapstructure:"limiter_enabled" yaml:"limiter_enabled"`
}

// OutputDevice is a registered output sink's metadata.
type OutputDevice struct {
	ID         string `mapstructure:"id" yaml:"id"`
	NativeRate int    `mapstructure:"native_rate" yaml:"native_rate"`
	ChunkSize  int    `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// MixerConfig is the pipeline's entire configuration record.
type MixerConfig struct {
	SampleRate     int            `mapstructure:"sample_rate" yaml:"sample_rate"`
	BufferSize     int            `mapstructure:"buffer_size" yaml:"buffer_size"`
	Channels       []AudioChannel `mapstructure:"channels" yaml:"channels"`
	MasterGain     float64        `mapstructure:"master_gain" yaml:"master_gain"`
	OutputDevices  []OutputDevice `mapstructure:"output_devices" yaml:"output_devices"`
	EnableLoopback bool           `mapstructure:"enable_loopback" yaml:"enable_loopback"`
}

// Default returns a MixerConfig with the pipeline's baseline operating
// parameters: 48kHz, a 512-sample buffer (~10.7ms), unity master gain.
func Default() MixerConfig {
	return MixerConfig{
		SampleRate: 48000,
		BufferSize: 512,
		MasterGain: 1.0,
	}
}
