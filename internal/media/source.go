// Package media provides the local audio source shared by every peer link.
// The source is acquired once; muting is a sample gate on the write loop, so
// toggling the mic never triggers renegotiation.
package media

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const frameDuration = 20 * time.Millisecond

// Source is the local media input attached to outbound peer links.
// A nil Source is valid; links are then receive-only.
type Source interface {
	Tracks() []webrtc.TrackLocal
	SetEnabled(bool)
	Enabled() bool
	Close() error
}

// FrameProvider supplies encoded audio frames for the outbound track.
// Real capture lives outside this core; tests and the CLI use Silence.
type FrameProvider interface {
	NextFrame() (media.Sample, error)
}

// Silence emits empty Opus frames, keeping the outbound track alive without
// an OS capture stack.
type Silence struct{}

// 0xF8 0xFF 0xFE is a minimal Opus silence frame.
func (Silence) NextFrame() (media.Sample, error) {
	return media.Sample{Data: []byte{0xf8, 0xff, 0xfe}, Duration: frameDuration}, nil
}

// SampleSource pumps frames from a provider into a single local audio track.
// It starts disabled (mic off) to match a fresh session.
type SampleSource struct {
	track *webrtc.TrackLocalStaticSample

	mu      sync.RWMutex
	enabled bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewSampleSource(provider FrameProvider) (*SampleSource, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "coderoom",
	)
	if err != nil {
		return nil, err
	}
	s := &SampleSource{
		track: track,
		done:  make(chan struct{}),
	}
	go s.pump(provider)
	return s, nil
}

func (s *SampleSource) pump(provider FrameProvider) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.Enabled() {
				continue
			}
			sample, err := provider.NextFrame()
			if err != nil {
				log.Error().Err(err).Str("module", "media").Msg("frame provider failed, stopping source")
				return
			}
			if err := s.track.WriteSample(sample); err != nil {
				log.Warn().Err(err).Str("module", "media").Msg("write sample")
			}
		}
	}
}

func (s *SampleSource) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.track}
}

func (s *SampleSource) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
}

func (s *SampleSource) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *SampleSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
