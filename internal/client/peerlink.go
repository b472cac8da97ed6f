package client

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/skillsync/session-relay/internal/models"
)

// LinkState is the lifecycle position of one peer link.
type LinkState int

const (
	LinkStateNew LinkState = iota
	LinkStateOfferSent
	LinkStateOfferReceived
	LinkStateConnected
	LinkStateRecovering
	LinkStateClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkStateNew:
		return "new"
	case LinkStateOfferSent:
		return "offer-sent"
	case LinkStateOfferReceived:
		return "offer-received"
	case LinkStateConnected:
		return "connected"
	case LinkStateRecovering:
		return "recovering"
	case LinkStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerLink is the connection to one remote participant: the media transport
// plus the negotiation state machine driving it. All transitions are named
// methods; the transport's callbacks feed back into them.
type PeerLink struct {
	remoteUserID   string
	remoteUserName string

	mu              sync.Mutex
	transport       peerTransport
	state           LinkState
	awaitingAnswer  bool
	pending         []webrtc.ICECandidateInit
	hasStream       bool
	lastTrackUpdate time.Time

	send func(models.SignalMessage)

	// policy hooks, set by the owning client
	onICEFailure func()
	onConnected  func()
	onTrack      func(trackEvent)
	onTrackEnded func(trackEvent)
}

func newPeerLink(remoteUserID, remoteUserName string, transport peerTransport, send func(models.SignalMessage)) *PeerLink {
	l := &PeerLink{
		remoteUserID:   remoteUserID,
		remoteUserName: remoteUserName,
		transport:      transport,
		state:          LinkStateNew,
		send:           send,
	}

	transport.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		c := candidate
		l.send(models.SignalMessage{
			Type:         models.SignalTypeICECandidate,
			TargetUserID: remoteUserID,
			Candidate:    &c,
		})
	})

	transport.OnICEStateChange(l.handleICEState)

	transport.OnTrack(func(ev trackEvent) {
		l.mu.Lock()
		l.hasStream = true
		l.lastTrackUpdate = time.Now()
		cb := l.onTrack
		l.mu.Unlock()
		if cb != nil {
			cb(ev)
		}
	})

	transport.OnTrackEnded(func(ev trackEvent) {
		l.mu.Lock()
		cb := l.onTrackEnded
		l.mu.Unlock()
		if cb != nil {
			cb(ev)
		}
	})

	return l
}

// RemoteUserID returns the identity this link connects to.
func (l *PeerLink) RemoteUserID() string { return l.remoteUserID }

// RemoteUserName returns the display name seen when the link was created.
func (l *PeerLink) RemoteUserName() string { return l.remoteUserName }

// State returns the current lifecycle state.
func (l *PeerLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// AttachLocalTracks adds the local media tracks to the transport. Must be
// called before negotiation starts.
func (l *PeerLink) AttachLocalTracks(tracks []webrtc.TrackLocal) error {
	for _, track := range tracks {
		if err := l.transport.AddTrack(track); err != nil {
			return fmt.Errorf("add local track: %w", err)
		}
	}
	return nil
}

// StartOffer takes the caller role: creates an offer, applies it locally
// and sends it to the remote participant.
func (l *PeerLink) StartOffer() error {
	return l.offer(false)
}

// RestartICE renegotiates in place with an ICE restart, keeping the
// existing transport.
func (l *PeerLink) RestartICE() error {
	return l.offer(true)
}

func (l *PeerLink) offer(iceRestart bool) error {
	l.mu.Lock()
	if l.state == LinkStateClosed {
		l.mu.Unlock()
		return fmt.Errorf("link to %s is closed", l.remoteUserID)
	}

	offer, err := l.transport.CreateOffer(iceRestart)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("create offer: %w", err)
	}
	if err := l.transport.SetLocalDescription(offer); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("set local description: %w", err)
	}

	if iceRestart {
		l.state = LinkStateRecovering
	} else {
		l.state = LinkStateOfferSent
	}
	l.awaitingAnswer = true
	o := offer
	l.mu.Unlock()

	l.send(models.SignalMessage{
		Type:         models.SignalTypeOffer,
		TargetUserID: l.remoteUserID,
		Offer:        &o,
	})
	return nil
}

// HandleOffer takes the callee role: applies the remote offer, flushes any
// buffered candidates, then answers.
func (l *PeerLink) HandleOffer(offer webrtc.SessionDescription) error {
	l.mu.Lock()
	if l.state == LinkStateClosed {
		l.mu.Unlock()
		return fmt.Errorf("link to %s is closed", l.remoteUserID)
	}

	if err := l.transport.SetRemoteDescription(offer); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("set remote description: %w", err)
	}
	l.flushPendingLocked()

	answer, err := l.transport.CreateAnswer()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("create answer: %w", err)
	}
	if err := l.transport.SetLocalDescription(answer); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("set local description: %w", err)
	}

	l.state = LinkStateOfferReceived
	a := answer
	l.mu.Unlock()

	l.send(models.SignalMessage{
		Type:         models.SignalTypeAnswer,
		TargetUserID: l.remoteUserID,
		Answer:       &a,
	})
	return nil
}

// HandleAnswer applies a remote answer if one is expected; a stale answer
// (nothing outstanding) is ignored.
func (l *PeerLink) HandleAnswer(answer webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == LinkStateClosed {
		return fmt.Errorf("link to %s is closed", l.remoteUserID)
	}
	if !l.awaitingAnswer {
		log.Printf("Ignoring stale answer from %s (state %s)", l.remoteUserID, l.state)
		return nil
	}

	if err := l.transport.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	l.awaitingAnswer = false
	l.flushPendingLocked()
	return nil
}

// HandleCandidate applies a remote ICE candidate, buffering it until the
// remote description is in place.
func (l *PeerLink) HandleCandidate(candidate webrtc.ICECandidateInit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == LinkStateClosed {
		return nil
	}
	if !l.transport.HasRemoteDescription() {
		l.pending = append(l.pending, candidate)
		return nil
	}
	if err := l.transport.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (l *PeerLink) flushPendingLocked() {
	for _, candidate := range l.pending {
		if err := l.transport.AddICECandidate(candidate); err != nil {
			log.Printf("Error adding buffered ICE candidate for %s: %v", l.remoteUserID, err)
		}
	}
	l.pending = nil
}

func (l *PeerLink) handleICEState(state webrtc.ICEConnectionState) {
	var connected, failed func()

	l.mu.Lock()
	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		if l.state != LinkStateClosed {
			l.state = LinkStateConnected
			connected = l.onConnected
		}
	case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected:
		if l.state != LinkStateClosed {
			l.state = LinkStateRecovering
			failed = l.onICEFailure
		}
	}
	l.mu.Unlock()

	if connected != nil {
		connected()
	}
	if failed != nil {
		failed()
	}
}

// Close tears the link down terminally.
func (l *PeerLink) Close() {
	l.mu.Lock()
	if l.state == LinkStateClosed {
		l.mu.Unlock()
		return
	}
	l.state = LinkStateClosed
	l.pending = nil
	transport := l.transport
	l.mu.Unlock()

	if err := transport.Close(); err != nil {
		log.Printf("Error closing link to %s: %v", l.remoteUserID, err)
	}
}

// Healthy reports whether the link is worth keeping when the remote
// participant reappears; a failed or closed link gets recreated instead.
func (l *PeerLink) Healthy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == LinkStateClosed {
		return false
	}
	switch l.transport.ICEConnectionState() {
	case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateClosed:
		return false
	}
	return true
}

// Report describes this link for a debug-connection-status broadcast.
func (l *PeerLink) Report() models.PeerLinkReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	report := models.PeerLinkReport{
		PeerID:               l.remoteUserID,
		ICEState:             l.transport.ICEConnectionState().String(),
		SignalingState:       l.transport.SignalingState().String(),
		HasRemoteDescription: l.transport.HasRemoteDescription(),
	}
	if l.hasStream {
		report.ConnectedStreams = []string{l.remoteUserID}
	}
	return report
}
