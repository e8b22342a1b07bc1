// Package validation enforces every boundary rule named in the
// configuration and command-plane record types: device IDs, channel
// parameter bounds, and whole-configuration invariants. It is the single
// place these rules live, so every command-entry and config-load path
// gets identical behavior.
package validation

import (
	"strings"
	"unicode"

	mixererrors "github.com/beats-galore/mixer-core/internal/errors"
)

const (
	maxDeviceIDLength = 256

	minChannelID = 1
	maxChannelID = 9999

	minSampleRate = 8000
	maxSampleRate = 192000

	minBufferSize = 16
	maxBufferSize = 8192

	minGain = 0.0
	maxGain = 2.0

	minPan = -1.0
	maxPan = 1.0

	minEQDB = -12.0
	maxEQDB = 12.0

	minCompThresholdDB = -40.0
	maxCompThresholdDB = 0.0

	minCompRatio = 1.0
	maxCompRatio = 10.0

	minCompAttackMS = 0.1
	maxCompAttackMS = 100.0

	minCompReleaseMS = 10.0
	maxCompReleaseMS = 1000.0

	minLimiterThresholdDB = -12.0
	maxLimiterThresholdDB = 0.0

	deviceIDValidChars = "_-.:"
)

// DeviceID validates an opaque device identifier: non-empty, at most
// 256 characters, alphanumeric plus the set "_-.:", must start and end
// on an alphanumeric character, and must not contain any of the
// traversal/injection substrings "../", "\", ";;", "&&", "||", "//".
func DeviceID(id string) error {
	if id == "" {
		return newValidationErr("device_id", "must not be empty", id)
	}
	if len(id) > maxDeviceIDLength {
		return newValidationErr("device_id", "exceeds maximum length of 256", id)
	}
	first := rune(id[0])
	last := rune(id[len(id)-1])
	if !isAlphanumeric(first) || !isAlphanumeric(last) {
		return newValidationErr("device_id", "must start and end with an alphanumeric character", id)
	}
	for _, r := range id {
		if !isAlphanumeric(r) && !strings.ContainsRune(deviceIDValidChars, r) {
			return newValidationErr("device_id", "contains disallowed character", id)
		}
	}
	for _, bad := range []string{"../", "\\", ";;", "&&", "||", "//"} {
		if strings.Contains(id, bad) {
			return newValidationErr("device_id", "contains disallowed substring", id)
		}
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ChannelID validates a channel's numeric identifier range.
func ChannelID(id uint32) error {
	if id < minChannelID || id > maxChannelID {
		return newRangeErr("channel_id", float64(id), minChannelID, maxChannelID)
	}
	return nil
}

// UniqueChannelIDs validates that no channel ID repeats within a
// configuration's channel set.
func UniqueChannelIDs(ids []uint32) error {
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return mixererrors.Newf("duplicate channel_id: %d", id).
				Category(mixererrors.CategoryValidation).
				Context("field", "channel_id").
				Context("value", id).
				Build()
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Gain validates a linear gain value against [0, 2].
func Gain(v float64) error { return inRange("gain", v, minGain, maxGain) }

// Pan validates a pan value against [-1, 1].
func Pan(v float64) error { return inRange("pan", v, minPan, maxPan) }

// EQBandDB validates an EQ band gain in dB against [-12, 12].
func EQBandDB(v float64) error { return inRange("eq_band_db", v, minEQDB, maxEQDB) }

// CompressorThresholdDB validates a compressor threshold against [-40, 0].
func CompressorThresholdDB(v float64) error {
	return inRange("comp_threshold_db", v, minCompThresholdDB, maxCompThresholdDB)
}

// CompressorRatio validates a compressor ratio against [1, 10].
func CompressorRatio(v float64) error { return inRange("comp_ratio", v, minCompRatio, maxCompRatio) }

// CompressorAttackMS validates a compressor attack time against [0.1, 100].
func CompressorAttackMS(v float64) error {
	return inRange("comp_attack_ms", v, minCompAttackMS, maxCompAttackMS)
}

// CompressorReleaseMS validates a compressor release time against [10, 1000].
func CompressorReleaseMS(v float64) error {
	return inRange("comp_release_ms", v, minCompReleaseMS, maxCompReleaseMS)
}

// LimiterThresholdDB validates a limiter threshold against [-12, 0].
func LimiterThresholdDB(v float64) error {
	return inRange("limiter_threshold_db", v, minLimiterThresholdDB, maxLimiterThresholdDB)
}

// SampleRate validates a sample rate against [8000, 192000].
func SampleRate(v int) error {
	return inRange("sample_rate", float64(v), minSampleRate, maxSampleRate)
}

// BufferSize validates a buffer size against [16, 8192] plus the
// sample-rate-relative minimum and the small-buffer/high-rate dropout
// guard.
func BufferSize(bufferSize, sampleRate int) error {
	if err := inRange("buffer_size", float64(bufferSize), minBufferSize, maxBufferSize); err != nil {
		return err
	}
	if bufferSize < sampleRate/1000 {
		return newValidationErr("buffer_size", "must be at least one millisecond of audio", bufferSize)
	}
	if bufferSize < 64 && sampleRate > 96000 {
		return newValidationErr("buffer_size", "too small for sample rate above 96kHz (dropout risk)", bufferSize)
	}
	return nil
}

// MasterGain validates the configuration's master gain, same bounds as
// a per-channel Gain.
func MasterGain(v float64) error { return Gain(v) }

func inRange(field string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return newRangeErr(field, v, lo, hi)
	}
	return nil
}

func newRangeErr(field string, v, lo, hi float64) error {
	return mixererrors.Newf("%s out of range [%v, %v]: %v", field, lo, hi, v).
		Category(mixererrors.CategoryValidation).
		Context("field", field).
		Context("value", v).
		Context("min", lo).
		Context("max", hi).
		Build()
}

func newValidationErr(field, reason string, value any) error {
	return mixererrors.Newf("%s invalid: %s", field, reason).
		Category(mixererrors.CategoryValidation).
		Context("field", field).
		Context("reason", reason).
		Context("value", value).
		Build()
}
