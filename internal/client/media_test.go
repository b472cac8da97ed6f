package client

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedSource struct {
	closed bool
}

func (s *trackedSource) Tracks() []webrtc.TrackLocal { return nil }
func (s *trackedSource) Close() error {
	s.closed = true
	return nil
}

func TestCaptureManagerSingleActiveSource(t *testing.T) {
	var sources []*trackedSource
	manager := NewCaptureManager(func() (MediaSource, error) {
		s := &trackedSource{}
		sources = append(sources, s)
		return s, nil
	})

	first, err := manager.Acquire()
	require.NoError(t, err)
	assert.Same(t, sources[0], first.(*trackedSource))

	// Re-acquisition must release the previous source first.
	second, err := manager.Acquire()
	require.NoError(t, err)
	assert.True(t, sources[0].closed)
	assert.False(t, sources[1].closed)
	assert.Same(t, sources[1], second.(*trackedSource))

	manager.Release()
	assert.True(t, sources[1].closed)

	// Release with nothing active is a no-op.
	manager.Release()
	assert.Len(t, sources, 2)
}

func TestCaptureManagerAcquireError(t *testing.T) {
	cause := errors.New("device busy")
	manager := NewCaptureManager(func() (MediaSource, error) { return nil, cause })

	_, err := manager.Acquire()
	require.ErrorIs(t, err, cause)
	manager.Release() // must not panic with no active source
}

func TestStaticSourceTracks(t *testing.T) {
	source, err := NewStaticSource("demo", true, true)
	require.NoError(t, err)
	defer source.Close()

	tracks := source.Tracks()
	require.Len(t, tracks, 2)

	kinds := map[webrtc.RTPCodecType]bool{}
	for _, track := range tracks {
		kinds[track.Kind()] = true
	}
	assert.True(t, kinds[webrtc.RTPCodecTypeAudio])
	assert.True(t, kinds[webrtc.RTPCodecTypeVideo])

	audioOnly, err := NewStaticSource("demo", true, false)
	require.NoError(t, err)
	defer audioOnly.Close()
	assert.Len(t, audioOnly.Tracks(), 1)
}
