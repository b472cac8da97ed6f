package client

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// MediaSource supplies the local tracks attached to every peer link. A
// source owns its capture resources and releases them on Close.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// CaptureManager guards the local capture device: at most one source is
// active at a time, and the previous one is released before a new
// acquisition on retry.
type CaptureManager struct {
	mu      sync.Mutex
	acquire func() (MediaSource, error)
	active  MediaSource
}

func NewCaptureManager(acquire func() (MediaSource, error)) *CaptureManager {
	return &CaptureManager{acquire: acquire}
}

// Acquire releases any active source, then acquires a fresh one.
func (m *CaptureManager) Acquire() (MediaSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.Close()
		m.active = nil
	}

	source, err := m.acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire media source: %w", err)
	}
	m.active = source
	return source, nil
}

// Release closes the active source, if any.
func (m *CaptureManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
}

// StaticSource is a MediaSource backed by sample tracks that the caller
// feeds explicitly. Headless participants use it in place of a capture
// device.
type StaticSource struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample
}

// NewStaticSource builds an Opus audio track and/or a VP8 video track under
// one stream id.
func NewStaticSource(streamID string, audio, video bool) (*StaticSource, error) {
	s := &StaticSource{}
	var err error

	if audio {
		s.audio, err = webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
	}
	if video {
		s.video, err = webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
	}
	return s, nil
}

func (s *StaticSource) Tracks() []webrtc.TrackLocal {
	var tracks []webrtc.TrackLocal
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

// WriteAudioSample feeds one encoded Opus sample to every link.
func (s *StaticSource) WriteAudioSample(sample media.Sample) error {
	if s.audio == nil {
		return fmt.Errorf("no audio track")
	}
	return s.audio.WriteSample(sample)
}

// WriteVideoSample feeds one encoded VP8 sample to every link.
func (s *StaticSource) WriteVideoSample(sample media.Sample) error {
	if s.video == nil {
		return fmt.Errorf("no video track")
	}
	return s.video.WriteSample(sample)
}

// Close releases the tracks. Sample tracks hold no device handles, so there
// is nothing to free beyond dropping references.
func (s *StaticSource) Close() error {
	s.audio = nil
	s.video = nil
	return nil
}
