package client

import (
	"github.com/pion/webrtc/v4"
)

// trackEvent identifies a remote media track arriving or ending.
type trackEvent struct {
	Kind     string // "audio" or "video"
	StreamID string
}

// peerTransport is the slice of a WebRTC peer connection the link state
// machine drives. Production uses the pion adapter below; tests use a
// scripted fake.
type peerTransport interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	HasRemoteDescription() bool
	SignalingState() webrtc.SignalingState
	ICEConnectionState() webrtc.ICEConnectionState
	AddTrack(track webrtc.TrackLocal) error

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnICEStateChange(func(webrtc.ICEConnectionState))
	OnTrack(func(trackEvent))
	OnTrackEnded(func(trackEvent))

	Close() error
}

// transportFactory builds a fresh peer transport for one remote
// participant.
type transportFactory func() (peerTransport, error)

// pionTransport adapts *webrtc.PeerConnection to peerTransport.
type pionTransport struct {
	pc           *webrtc.PeerConnection
	onTrack      func(trackEvent)
	onTrackEnded func(trackEvent)
}

// newPionFactory returns a transportFactory producing pion peer
// connections with the given ICE servers.
func newPionFactory(iceServers []webrtc.ICEServer) transportFactory {
	return func() (peerTransport, error) {
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
			ICEServers: iceServers,
		})
		if err != nil {
			return nil, err
		}

		t := &pionTransport{pc: pc}
		pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			ev := trackEvent{Kind: remote.Kind().String(), StreamID: remote.StreamID()}
			if t.onTrack != nil {
				t.onTrack(ev)
			}
			// Drain the track; a read error is the track ending.
			go func() {
				for {
					if _, _, err := remote.ReadRTP(); err != nil {
						if t.onTrackEnded != nil {
							t.onTrackEnded(ev)
						}
						return
					}
				}
			}()
		})
		return t, nil
	}
}

func (t *pionTransport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	return t.pc.CreateOffer(opts)
}

func (t *pionTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *pionTransport) SetLocalDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(desc)
}

func (t *pionTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(desc)
}

func (t *pionTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

func (t *pionTransport) HasRemoteDescription() bool {
	return t.pc.RemoteDescription() != nil
}

func (t *pionTransport) SignalingState() webrtc.SignalingState {
	return t.pc.SignalingState()
}

func (t *pionTransport) ICEConnectionState() webrtc.ICEConnectionState {
	return t.pc.ICEConnectionState()
}

func (t *pionTransport) AddTrack(track webrtc.TrackLocal) error {
	_, err := t.pc.AddTrack(track)
	return err
}

func (t *pionTransport) OnICECandidate(cb func(webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if candidate != nil {
			cb(candidate.ToJSON())
		}
	})
}

func (t *pionTransport) OnICEStateChange(cb func(webrtc.ICEConnectionState)) {
	t.pc.OnICEConnectionStateChange(cb)
}

func (t *pionTransport) OnTrack(cb func(trackEvent)) {
	t.onTrack = cb
}

func (t *pionTransport) OnTrackEnded(cb func(trackEvent)) {
	t.onTrackEnded = cb
}

func (t *pionTransport) Close() error {
	return t.pc.Close()
}
