// Package command implements the pipeline's single command queue: every
// control-plane mutation (add/update/remove a channel, set a volume,
// mute/solo, push a whole new configuration) is validated at entry and
// applied atomically to a shared configuration record. Workers observe
// the new values at the top of their next loop iteration; in-flight
// frames finish with the prior values.
package command

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/beats-galore/mixer-core/internal/clock"
	"github.com/beats-galore/mixer-core/internal/config"
	mixererrors "github.com/beats-galore/mixer-core/internal/errors"
	"github.com/beats-galore/mixer-core/internal/logging"
	"github.com/beats-galore/mixer-core/internal/validation"
)

// Kind discriminates the command variants named in §4.10.
type Kind int

const (
	KindAddChannel Kind = iota
	KindUpdateChannel
	KindRemoveChannel
	KindSetMasterGain
	KindSetChannelVolume
	KindMuteChannel
	KindSoloChannel
	KindUpdateConfig
	KindSetChannelEQ
	KindSetChannelCompressor
	KindSetChannelLimiter
	KindShutdown
)

// Command is one control-plane request. Only the fields relevant to
// Kind are populated; the correlation ID lets callers match an async
// result back to the request that produced it.
type Command struct {
	ID            string
	Kind          Kind
	Channel       config.AudioChannel
	ChannelID     uint32
	MasterGain    float64
	Volume        float64
	Muted         bool
	Solo          bool
	Config        config.MixerConfig
	EQLowDB       float64
	EQMidDB       float64
	EQHighDB      float64
	Compressor    config.CompressorParams
	LimiterThresh float64
}

// New stamps cmd with a fresh correlation ID.
func New(cmd Command) Command {
	cmd.ID = uuid.NewString()
	return cmd
}

// Processor owns the shared configuration and serially applies commands
// drained from a single queue.
type Processor struct {
	mu     sync.Mutex
	cfg    config.MixerConfig
	clock  *clock.AudioClock
	queue  chan Command
	logger *slog.Logger
}

// NewProcessor constructs a command processor seeded with an initial
// configuration, draining commands from a queue of the given depth.
func NewProcessor(initial config.MixerConfig, audioClock *clock.AudioClock, queueDepth int) *Processor {
	return &Processor{
		cfg:    initial,
		clock:  audioClock,
		queue:  make(chan Command, queueDepth),
		logger: logging.ForService("command"),
	}
}

// Submit enqueues a command without blocking the caller; it returns an
// error if the queue is currently full rather than applying
// backpressure to the caller.
func (p *Processor) Submit(cmd Command) error {
	select {
	case p.queue <- cmd:
		return nil
	default:
		return mixererrors.Newf("command queue full, dropping %v", cmd.Kind).
			Category(mixererrors.CategoryQueueOverrun).
			Context("kind", cmd.Kind).
			Build()
	}
}

// Drain processes every command currently queued, without blocking for
// new ones to arrive. It is called once per worker-manager tick.
func (p *Processor) Drain() {
	for {
		select {
		case cmd := <-p.queue:
			if err := p.handle(cmd); err != nil {
				p.logger.Error("command failed", "kind", cmd.Kind, "id", cmd.ID, "error", err)
			}
		default:
			return
		}
	}
}

// Snapshot returns a copy of the current shared configuration.
func (p *Processor) Snapshot() config.MixerConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := p.cfg
	cfg.Channels = append([]config.AudioChannel(nil), p.cfg.Channels...)
	cfg.OutputDevices = append([]config.OutputDevice(nil), p.cfg.OutputDevices...)
	return cfg
}

func (p *Processor) handle(cmd Command) error {
	switch cmd.Kind {
	case KindAddChannel:
		return p.addChannel(cmd.Channel)
	case KindUpdateChannel:
		return p.updateChannel(cmd.ChannelID, cmd.Channel)
	case KindRemoveChannel:
		return p.removeChannel(cmd.ChannelID)
	case KindSetMasterGain:
		return p.setMasterGain(cmd.MasterGain)
	case KindSetChannelVolume:
		return p.setChannelVolume(cmd.ChannelID, cmd.Volume)
	case KindMuteChannel:
		return p.muteChannel(cmd.ChannelID, cmd.Muted)
	case KindSoloChannel:
		return p.soloChannel(cmd.ChannelID, cmd.Solo)
	case KindUpdateConfig:
		return p.updateConfig(cmd.Config)
	case KindSetChannelEQ:
		return p.setChannelEQ(cmd.ChannelID, cmd.EQLowDB, cmd.EQMidDB, cmd.EQHighDB)
	case KindSetChannelCompressor:
		return p.setChannelCompressor(cmd.ChannelID, cmd.Compressor)
	case KindSetChannelLimiter:
		return p.setChannelLimiter(cmd.ChannelID, cmd.LimiterThresh)
	case KindShutdown:
		return nil
	default:
		return fmt.Errorf("unknown command kind %v", cmd.Kind)
	}
}

func (p *Processor) addChannel(ch config.AudioChannel) error {
	if err := config.ValidateChannel(ch); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.cfg.Channels {
		if p.cfg.Channels[i].ID == ch.ID {
			p.cfg.Channels[i] = ch
			p.logger.Info("channel already existed, updated instead", "channel_id", ch.ID)
			return nil
		}
	}
	p.cfg.Channels = append(p.cfg.Channels, ch)
	p.logger.Info("added channel", "channel_id", ch.ID)
	return nil
}

func (p *Processor) updateChannel(channelID uint32, updated config.AudioChannel) error {
	if err := validation.ChannelID(channelID); err != nil {
		return err
	}
	if updated.ID != channelID {
		return mixererrors.Newf("channel ID mismatch: expected %d, got %d", channelID, updated.ID).
			Category(mixererrors.CategoryValidation).Build()
	}
	if err := config.ValidateChannel(updated); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.cfg.Channels {
		if p.cfg.Channels[i].ID == channelID {
			p.cfg.Channels[i] = updated
			p.logger.Info("updated channel", "channel_id", channelID)
			return nil
		}
	}
	return mixererrors.Newf("channel %d not found for update", channelID).
		Category(mixererrors.CategoryNotRegistered).Build()
}

func (p *Processor) removeChannel(channelID uint32) error {
	if err := validation.ChannelID(channelID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	before := len(p.cfg.Channels)
	kept := p.cfg.Channels[:0]
	for _, ch := range p.cfg.Channels {
		if ch.ID != channelID {
			kept = append(kept, ch)
		}
	}
	p.cfg.Channels = kept
	if len(p.cfg.Channels) == before {
		return mixererrors.Newf("channel %d not found for removal", channelID).
			Category(mixererrors.CategoryNotRegistered).Build()
	}
	p.logger.Info("removed channel", "channel_id", channelID)
	return nil
}

func (p *Processor) setMasterGain(gain float64) error {
	if err := validation.MasterGain(gain); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.MasterGain = gain
	return nil
}

func (p *Processor) setChannelVolume(channelID uint32, volume float64) error {
	if err := validation.ChannelID(channelID); err != nil {
		return err
	}
	if err := validation.Gain(volume); err != nil {
		return err
	}
	return p.mutateChannel(channelID, func(ch *config.AudioChannel) { ch.Gain = volume })
}

func (p *Processor) muteChannel(channelID uint32, muted bool) error {
	return p.mutateChannel(channelID, func(ch *config.AudioChannel) { ch.Muted = muted })
}

func (p *Processor) soloChannel(channelID uint32, solo bool) error {
	return p.mutateChannel(channelID, func(ch *config.AudioChannel) { ch.Solo = solo })
}

func (p *Processor) setChannelEQ(channelID uint32, low, mid, high float64) error {
	if err := validation.EQBandDB(low); err != nil {
		return err
	}
	if err := validation.EQBandDB(mid); err != nil {
		return err
	}
	if err := validation.EQBandDB(high); err != nil {
		return err
	}
	return p.mutateChannel(channelID, func(ch *config.AudioChannel) {
		ch.EQLowDB, ch.EQMidDB, ch.EQHighDB = low, mid, high
	})
}

func (p *Processor) setChannelCompressor(channelID uint32, params config.CompressorParams) error {
	if err := validation.CompressorThresholdDB(params.ThresholdDB); err != nil {
		return err
	}
	if err := validation.CompressorRatio(params.Ratio); err != nil {
		return err
	}
	if err := validation.CompressorAttackMS(params.AttackMS); err != nil {
		return err
	}
	if err := validation.CompressorReleaseMS(params.ReleaseMS); err != nil {
		return err
	}
	return p.mutateChannel(channelID, func(ch *config.AudioChannel) { ch.Compressor = params })
}

func (p *Processor) setChannelLimiter(channelID uint32, thresholdDB float64) error {
	if err := validation.LimiterThresholdDB(thresholdDB); err != nil {
		return err
	}
	return p.mutateChannel(channelID, func(ch *config.AudioChannel) { ch.LimiterThreshDB = thresholdDB })
}

func (p *Processor) mutateChannel(channelID uint32, mutate func(*config.AudioChannel)) error {
	if err := validation.ChannelID(channelID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.cfg.Channels {
		if p.cfg.Channels[i].ID == channelID {
			mutate(&p.cfg.Channels[i])
			return nil
		}
	}
	return mixererrors.Newf("channel %d not found", channelID).
		Category(mixererrors.CategoryNotRegistered).Build()
}

func (p *Processor) updateConfig(cfg config.MixerConfig) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	p.mu.Lock()
	oldRate := p.cfg.SampleRate
	p.cfg = cfg
	p.mu.Unlock()

	if cfg.SampleRate != oldRate && p.clock != nil {
		p.clock.SetSampleRate(uint32(cfg.SampleRate))
		p.logger.Info("updated mixer configuration", "old_sample_rate", oldRate, "new_sample_rate", cfg.SampleRate)
	}
	return nil
}
