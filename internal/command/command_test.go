package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beats-galore/mixer-core/internal/clock"
	"github.com/beats-galore/mixer-core/internal/config"
)

func newTestProcessor() *Processor {
	return NewProcessor(config.Default(), clock.New(48000, 512), 16)
}

func validChannel(id uint32) config.AudioChannel {
	return config.AudioChannel{
		ID:         id,
		Gain:       1,
		Pan:        0,
		Compressor: config.CompressorParams{ThresholdDB: -20, Ratio: 2, AttackMS: 5, ReleaseMS: 100},
	}
}

func TestAddChannelThenSnapshotContainsIt(t *testing.T) {
	p := newTestProcessor()
	require.NoError(t, p.Submit(New(Command{Kind: KindAddChannel, Channel: validChannel(1)})))
	p.Drain()

	cfg := p.Snapshot()
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, uint32(1), cfg.Channels[0].ID)
}

func TestAddChannelTwiceUpdatesInPlace(t *testing.T) {
	p := newTestProcessor()
	ch := validChannel(1)
	require.NoError(t, p.Submit(New(Command{Kind: KindAddChannel, Channel: ch})))
	ch.Gain = 0.5
	require.NoError(t, p.Submit(New(Command{Kind: KindAddChannel, Channel: ch})))
	p.Drain()

	cfg := p.Snapshot()
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, 0.5, cfg.Channels[0].Gain)
}

func TestSetChannelVolumeOutOfRangeLeavesConfigUnchanged(t *testing.T) {
	p := newTestProcessor()
	require.NoError(t, p.Submit(New(Command{Kind: KindAddChannel, Channel: validChannel(1)})))
	p.Drain()

	require.NoError(t, p.Submit(New(Command{Kind: KindSetChannelVolume, ChannelID: 1, Volume: 99})))
	p.Drain()

	cfg := p.Snapshot()
	assert.Equal(t, 1.0, cfg.Channels[0].Gain)
}

func TestMuteAndSoloChannel(t *testing.T) {
	p := newTestProcessor()
	require.NoError(t, p.Submit(New(Command{Kind: KindAddChannel, Channel: validChannel(1)})))
	require.NoError(t, p.Submit(New(Command{Kind: KindMuteChannel, ChannelID: 1, Muted: true})))
	require.NoError(t, p.Submit(New(Command{Kind: KindSoloChannel, ChannelID: 1, Solo: true})))
	p.Drain()

	cfg := p.Snapshot()
	assert.True(t, cfg.Channels[0].Muted)
	assert.True(t, cfg.Channels[0].Solo)
}

func TestRemoveUnknownChannelLogsButDoesNotPanic(t *testing.T) {
	p := newTestProcessor()
	require.NoError(t, p.Submit(New(Command{Kind: KindRemoveChannel, ChannelID: 42})))
	assert.NotPanics(t, func() { p.Drain() })
}

func TestSetMasterGainValidatesBounds(t *testing.T) {
	p := newTestProcessor()
	require.NoError(t, p.Submit(New(Command{Kind: KindSetMasterGain, MasterGain: 1.5})))
	p.Drain()
	assert.Equal(t, 1.5, p.Snapshot().MasterGain)
}

func TestUpdateConfigChangesSampleRateOnClock(t *testing.T) {
	audioClock := clock.New(48000, 512)
	p := NewProcessor(config.Default(), audioClock, 16)

	newCfg := config.Default()
	newCfg.SampleRate = 96000
	require.NoError(t, p.Submit(New(Command{Kind: KindUpdateConfig, Config: newCfg})))
	p.Drain()

	assert.Equal(t, uint32(96000), audioClock.SampleRate())
}

func TestSubmitReturnsErrorWhenQueueFull(t *testing.T) {
	p := NewProcessor(config.Default(), clock.New(48000, 512), 1)
	require.NoError(t, p.Submit(New(Command{Kind: KindSetMasterGain, MasterGain: 1})))
	assert.Error(t, p.Submit(New(Command{Kind: KindSetMasterGain, MasterGain: 1})))
}
