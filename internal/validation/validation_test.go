package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceIDLengthBoundary(t *testing.T) {
	assert.NoError(t, DeviceID("a"))
	assert.NoError(t, DeviceID(strings.Repeat("a", 256)))
	assert.Error(t, DeviceID(strings.Repeat("a", 257)))
	assert.Error(t, DeviceID(""))
}

func TestDeviceIDMustStartAndEndAlphanumeric(t *testing.T) {
	assert.Error(t, DeviceID("-device"))
	assert.Error(t, DeviceID("device-"))
	assert.NoError(t, DeviceID("device-1"))
}

func TestDeviceIDRejectsDisallowedSubstrings(t *testing.T) {
	for _, bad := range []string{"a../b", "a\\b", "a;;b", "a&&b", "a||b", "a//b"} {
		assert.Error(t, DeviceID(bad), bad)
	}
}

func TestChannelIDBoundary(t *testing.T) {
	assert.NoError(t, ChannelID(1))
	assert.NoError(t, ChannelID(9999))
	assert.Error(t, ChannelID(0))
	assert.Error(t, ChannelID(10000))
}

func TestUniqueChannelIDsDetectsDuplicates(t *testing.T) {
	assert.NoError(t, UniqueChannelIDs([]uint32{1, 2, 3}))
	assert.Error(t, UniqueChannelIDs([]uint32{1, 2, 1}))
}

func TestSampleRateBoundary(t *testing.T) {
	assert.NoError(t, SampleRate(8000))
	assert.NoError(t, SampleRate(192000))
	assert.Error(t, SampleRate(7999))
	assert.Error(t, SampleRate(192001))
}

func TestBufferSizeBoundary(t *testing.T) {
	assert.NoError(t, BufferSize(48, 48000)) // exactly sample_rate/1000
	assert.Error(t, BufferSize(47, 48000))   // one below
	assert.Error(t, BufferSize(63, 192000))  // below 64 and rate above 96kHz
	assert.Error(t, BufferSize(64, 192000))  // clears the dropout guard but is below sample_rate/1000 (192)
}

func TestGainPanEQAndCompressorBounds(t *testing.T) {
	assert.NoError(t, Gain(0))
	assert.NoError(t, Gain(2))
	assert.Error(t, Gain(2.01))

	assert.NoError(t, Pan(-1))
	assert.NoError(t, Pan(1))
	assert.Error(t, Pan(1.01))

	assert.NoError(t, EQBandDB(-12))
	assert.NoError(t, EQBandDB(12))
	assert.Error(t, EQBandDB(12.01))

	assert.NoError(t, CompressorThresholdDB(-40))
	assert.NoError(t, CompressorThresholdDB(0))
	assert.Error(t, CompressorThresholdDB(0.01))

	assert.NoError(t, CompressorRatio(1))
	assert.NoError(t, CompressorRatio(10))
	assert.Error(t, CompressorRatio(10.01))

	assert.NoError(t, CompressorAttackMS(0.1))
	assert.Error(t, CompressorAttackMS(0.05))

	assert.NoError(t, CompressorReleaseMS(10))
	assert.Error(t, CompressorReleaseMS(9))

	assert.NoError(t, LimiterThresholdDB(-12))
	assert.Error(t, LimiterThresholdDB(0.01))
}
