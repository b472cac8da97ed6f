// Package client implements the participant side of the session relay: the
// signaling connection, one peer link per remote participant, and the
// presence views a UI renders from.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/skillsync/session-relay/internal/models"
	"github.com/skillsync/session-relay/internal/namecache"
)

const (
	maxConnectAttempts = 3
	defaultDialTimeout = 10 * time.Second

	// repeated track-ended events inside this window coalesce into one
	// recovery attempt
	recoveryDebounce = 5 * time.Second
	// a recovery still not connected after this long is cleared and the
	// link recreated from scratch
	reconnectDeadline = 15 * time.Second
	// delay before notifying the counterpart to restart, giving transient
	// glitches a chance to settle
	restartNotifyDelay = 1 * time.Second
	// delay after joining before re-requesting the roster
	rosterNudgeDelay = 1 * time.Second
	// delay after a join event before broadcasting our link status
	statusBroadcastDelay = 3 * time.Second

	// candidates buffered per not-yet-linked sender; beyond this they drop
	maxEarlyCandidates = 32
)

// Options configures a participant client.
type Options struct {
	URL       string // signaling endpoint, e.g. ws://host:8080/ws
	SessionID string
	UserID    string
	UserName  string
	Token     string

	ICEServers []webrtc.ICEServer
	Capture    *CaptureManager
	Names      namecache.Cache // optional

	// OnViewChange observes every remote media view update.
	OnViewChange func(RemoteMediaView)
	// OnDisconnect observes the signaling connection dropping after a
	// successful join.
	OnDisconnect func(error)

	DialTimeout time.Duration

	// RecoveryDebounce and ReconnectDeadline override the recovery timing
	// when non-zero. Tests shorten them; production keeps the defaults.
	RecoveryDebounce  time.Duration
	ReconnectDeadline time.Duration

	newTransport transportFactory // test hook
}

// RemoteMediaView is the displayable state of one remote participant,
// decoupled from transport track state so recovery churn doesn't flicker
// through to the UI.
type RemoteMediaView struct {
	UserID           string
	UserName         string
	AudioEnabled     bool
	VideoEnabled     bool
	HasStream        bool
	Reconnecting     bool
	LastTrackUpdate  time.Time
	ReconnectStarted time.Time
}

// Client is one participant's connection to a session.
type Client struct {
	opts         Options
	newTransport transportFactory

	recoveryDebounce  time.Duration
	reconnectDeadline time.Duration

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu              sync.Mutex
	userID          string
	userName        string
	links           map[string]*PeerLink
	views           map[string]RemoteMediaView
	earlyCandidates map[string][]webrtc.ICECandidateInit
	lastRecovery    map[string]time.Time
	source          MediaSource
	audioEnabled    bool
	videoEnabled    bool
	closed          bool

	done chan struct{}
}

// Dial joins a session. The signaling connection gets a bounded retry
// budget with full teardown between attempts; a media-acquisition failure
// is fatal immediately since it needs user remediation, not a retry loop.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Capture == nil {
		return nil, fmt.Errorf("capture manager is required")
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.RecoveryDebounce == 0 {
		opts.RecoveryDebounce = recoveryDebounce
	}
	if opts.ReconnectDeadline == 0 {
		opts.ReconnectDeadline = reconnectDeadline
	}
	if opts.newTransport == nil {
		opts.newTransport = newPionFactory(opts.ICEServers)
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		source, err := opts.Capture.Acquire()
		if err != nil {
			return nil, err
		}

		c := &Client{
			opts:              opts,
			newTransport:      opts.newTransport,
			recoveryDebounce:  opts.RecoveryDebounce,
			reconnectDeadline: opts.ReconnectDeadline,
			userID:            opts.UserID,
			userName:          opts.UserName,
			links:             make(map[string]*PeerLink),
			views:             make(map[string]RemoteMediaView),
			earlyCandidates:   make(map[string][]webrtc.ICECandidateInit),
			lastRecovery:      make(map[string]time.Time),
			source:            source,
			audioEnabled:      true,
			videoEnabled:      true,
			done:              make(chan struct{}),
		}

		if err := c.connect(ctx); err != nil {
			opts.Capture.Release()
			lastErr = err
			log.Printf("Signaling connect attempt %d/%d failed: %v", attempt, maxConnectAttempts, err)
			continue
		}

		go c.readLoop()
		c.afterJoin()
		return c, nil
	}

	return nil, fmt.Errorf("connect failed after %d attempts: %w", maxConnectAttempts, lastErr)
}

// connect dials the relay and waits for the connection acknowledgment
// carrying the finalized identity.
func (c *Client) connect(ctx context.Context) error {
	endpoint, err := url.Parse(c.opts.URL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}
	query := endpoint.Query()
	query.Set("sessionId", c.opts.SessionID)
	query.Set("userId", c.opts.UserID)
	query.Set("userName", c.opts.UserName)
	if c.opts.Token != "" {
		query.Set("token", c.opts.Token)
	}
	endpoint.RawQuery = query.Encode()

	dialer := &websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.DialTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("read connection ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var ack models.SignalMessage
	if err := json.Unmarshal(raw, &ack); err != nil || ack.Type != models.SignalTypeConnectionAck {
		conn.Close()
		return fmt.Errorf("unexpected first message from relay (type %q)", ack.Type)
	}

	// Adopt the relay-finalized identity
	c.mu.Lock()
	c.userID = ack.UserID
	c.userName = ack.UserName
	c.mu.Unlock()
	c.conn = conn

	log.Printf("Joined session %s as %s (%s), %d participants", ack.SessionID, ack.UserName, ack.UserID, ack.Participants)
	return nil
}

// afterJoin announces ourselves and schedules the roster nudge in case a
// notification raced the join.
func (c *Client) afterJoin() {
	c.sendSignal(models.SignalMessage{Type: models.SignalTypeJoin, UserName: c.userName, SessionID: c.opts.SessionID})
	c.broadcastMediaState("audio", c.audioEnabled)
	c.broadcastMediaState("video", c.videoEnabled)

	time.AfterFunc(rosterNudgeDelay, func() {
		if c.isClosed() {
			return
		}
		c.sendSignal(models.SignalMessage{Type: models.SignalTypeRequestParticipants, SessionID: c.opts.SessionID})
	})
}

func (c *Client) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				log.Printf("Signaling connection lost: %v", err)
				if c.opts.OnDisconnect != nil {
					c.opts.OnDisconnect(err)
				}
			}
			return
		}

		var msg models.SignalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("Failed to parse relay message: %v", err)
			continue
		}

		// Never react to our own broadcasts
		if msg.UserID == c.UserID() && msg.Type != models.SignalTypeConnectionAck {
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg models.SignalMessage) {
	switch msg.Type {
	case models.SignalTypeExistingUsers:
		for _, user := range msg.Users {
			if user.UserID == c.UserID() {
				continue
			}
			name := c.resolveName(user.UserID, user.UserName, "")
			c.ensureLink(user.UserID, name, true)
		}

	case models.SignalTypeUserJoined:
		name := c.resolveName(msg.UserID, msg.UserName, "")
		c.ensureLink(msg.UserID, name, true)
		c.broadcastMediaState("audio", c.AudioEnabled())
		c.broadcastMediaState("video", c.VideoEnabled())
		c.scheduleStatusBroadcast()

	case models.SignalTypeUserLeft:
		c.dropParticipant(msg.UserID)

	case models.SignalTypeOffer:
		if msg.Offer == nil {
			return
		}
		name := c.resolveName(msg.UserID, msg.UserName, "")
		link := c.ensureLink(msg.UserID, name, false)
		if link == nil {
			return
		}
		if err := link.HandleOffer(*msg.Offer); err != nil {
			log.Printf("Error handling offer from %s: %v", msg.UserID, err)
		}

	case models.SignalTypeAnswer:
		if msg.Answer == nil {
			return
		}
		link := c.link(msg.UserID)
		if link == nil {
			// Answer for a link we no longer have; renegotiate from scratch
			name := c.resolveName(msg.UserID, msg.UserName, "")
			c.ensureLink(msg.UserID, name, true)
			return
		}
		if err := link.HandleAnswer(*msg.Answer); err != nil {
			log.Printf("Error handling answer from %s: %v", msg.UserID, err)
		}

	case models.SignalTypeICECandidate:
		if msg.Candidate == nil {
			return
		}
		link := c.link(msg.UserID)
		if link == nil {
			c.mu.Lock()
			buffered := c.earlyCandidates[msg.UserID]
			if len(buffered) >= maxEarlyCandidates {
				c.mu.Unlock()
				log.Printf("Dropping candidate from %s, buffer full", msg.UserID)
				return
			}
			c.earlyCandidates[msg.UserID] = append(buffered, *msg.Candidate)
			c.mu.Unlock()
			return
		}
		if err := link.HandleCandidate(*msg.Candidate); err != nil {
			log.Printf("Error handling ICE candidate from %s: %v", msg.UserID, err)
		}

	case models.SignalTypeMediaStateChange:
		c.handleMediaState(msg)

	case models.SignalTypeRestartConnection:
		log.Printf("Restart requested by %s", msg.UserID)
		name := c.resolveName(msg.UserID, msg.UserName, "")
		c.closeLink(msg.UserID)
		c.ensureLink(msg.UserID, name, true)

	case models.SignalTypeForceJoin:
		log.Printf("Forced join notification from %s", msg.UserID)
		name := c.resolveName(msg.UserID, msg.UserName, "")
		c.closeLink(msg.UserID)
		c.ensureLink(msg.UserID, name, true)
		c.broadcastMediaState("audio", c.AudioEnabled())
		c.broadcastMediaState("video", c.VideoEnabled())
		c.scheduleStatusBroadcast()

	case models.SignalTypeDebugStatus:
		if msg.Status != nil {
			c.handleDebugStatus(msg.UserID, *msg.Status)
		}

	case models.SignalTypeJoinAck, models.SignalTypeMessageAck:
		// informational

	default:
		log.Printf("Unknown message type from relay: %s", msg.Type)
	}
}

// ensureLink returns the live link for a remote participant, creating one
// (and optionally starting the offer) if none exists or the existing one is
// beyond recovery.
func (c *Client) ensureLink(userID, userName string, initiate bool) *PeerLink {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if existing, ok := c.links[userID]; ok {
		c.mu.Unlock()
		if existing.Healthy() {
			return existing
		}
		log.Printf("Link to %s is unhealthy, recreating", userID)
		c.closeLink(userID)
		c.mu.Lock()
	}
	tracks := c.source.Tracks()
	early := c.earlyCandidates[userID]
	delete(c.earlyCandidates, userID)
	c.mu.Unlock()

	transport, err := c.newTransport()
	if err != nil {
		log.Printf("Error creating transport for %s: %v", userID, err)
		return nil
	}

	link := newPeerLink(userID, userName, transport, c.sendSignal)
	link.onConnected = func() { c.linkConnected(userID) }
	link.onICEFailure = func() { c.recoverLink(userID) }
	link.onTrack = func(ev trackEvent) { c.handleRemoteTrack(userID, ev) }
	link.onTrackEnded = func(ev trackEvent) { c.handleTrackEnded(userID, ev) }

	if err := link.AttachLocalTracks(tracks); err != nil {
		log.Printf("Error attaching local tracks for %s: %v", userID, err)
		link.Close()
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		link.Close()
		return nil
	}
	// A concurrent ensureLink (timer racing the read loop) may have stored
	// a link while ours was under construction; keep the winner and release
	// ours, or the loser's transport leaks.
	if winner, ok := c.links[userID]; ok {
		c.mu.Unlock()
		link.Close()
		return winner
	}
	c.links[userID] = link
	c.mu.Unlock()

	c.updateView(userID, func(v *RemoteMediaView) {
		if !IsPlaceholderName(userName) {
			v.UserName = userName
		}
	})

	for _, candidate := range early {
		if err := link.HandleCandidate(candidate); err != nil {
			log.Printf("Error applying early candidate for %s: %v", userID, err)
		}
	}

	if initiate {
		if err := link.StartOffer(); err != nil {
			log.Printf("Error creating offer for %s: %v", userID, err)
		}
	}
	return link
}

func (c *Client) link(userID string) *PeerLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links[userID]
}

func (c *Client) closeLink(userID string) {
	c.mu.Lock()
	link, ok := c.links[userID]
	if ok {
		delete(c.links, userID)
	}
	c.mu.Unlock()
	if ok {
		link.Close()
	}
}

func (c *Client) dropParticipant(userID string) {
	c.closeLink(userID)
	c.mu.Lock()
	delete(c.views, userID)
	delete(c.earlyCandidates, userID)
	delete(c.lastRecovery, userID)
	c.mu.Unlock()
	log.Printf("Participant %s left", userID)
}

func (c *Client) linkConnected(userID string) {
	log.Printf("Peer link to %s connected", userID)
	c.updateView(userID, func(v *RemoteMediaView) {
		v.Reconnecting = false
		v.ReconnectStarted = time.Time{}
	})
}

// recoverLink handles transport-level ICE failure: restart in place first,
// recreate the link if that is not possible.
func (c *Client) recoverLink(userID string) {
	link := c.link(userID)
	if link == nil || c.isClosed() {
		return
	}

	c.markReconnecting(userID)

	if err := link.RestartICE(); err == nil {
		log.Printf("ICE restart initiated for %s", userID)
		c.scheduleRecoveryDeadline(userID)
		return
	}

	log.Printf("ICE restart unavailable for %s, recreating link", userID)
	time.AfterFunc(restartNotifyDelay, func() {
		if c.isClosed() {
			return
		}
		c.sendSignal(models.SignalMessage{
			Type:         models.SignalTypeRestartConnection,
			TargetUserID: userID,
		})
		name := c.resolveName(userID, "", "")
		c.closeLink(userID)
		c.ensureLink(userID, name, true)
	})
	c.scheduleRecoveryDeadline(userID)
}

func (c *Client) handleRemoteTrack(userID string, ev trackEvent) {
	name := c.resolveName(userID, "", ev.StreamID)
	c.updateView(userID, func(v *RemoteMediaView) {
		v.HasStream = true
		v.Reconnecting = false
		v.ReconnectStarted = time.Time{}
		v.LastTrackUpdate = time.Now()
		if IsPlaceholderName(v.UserName) {
			v.UserName = name
		}
	})
	c.mu.Lock()
	delete(c.lastRecovery, userID)
	c.mu.Unlock()
}

// handleTrackEnded debounces track-ended events into at most one recovery
// attempt per window, keeping a recovery storm from thrashing the link.
func (c *Client) handleTrackEnded(userID string, ev trackEvent) {
	now := time.Now()
	c.mu.Lock()
	last := c.lastRecovery[userID]
	if now.Sub(last) <= c.recoveryDebounce {
		c.mu.Unlock()
		log.Printf("Coalescing rapid %s track-end for %s (%s since last attempt)", ev.Kind, userID, now.Sub(last))
		return
	}
	c.lastRecovery[userID] = now
	c.mu.Unlock()

	log.Printf("Track %s ended for %s, attempting recovery", ev.Kind, userID)
	c.markReconnecting(userID)

	time.AfterFunc(restartNotifyDelay, func() {
		if c.isClosed() || c.link(userID) == nil {
			return
		}
		c.sendSignal(models.SignalMessage{
			Type:         models.SignalTypeRestartConnection,
			TargetUserID: userID,
		})
	})
	c.scheduleRecoveryDeadline(userID)
}

// markReconnecting flips the view into its recovering display state,
// pinning the best known name first so it can't flicker to a placeholder
// mid-recovery.
func (c *Client) markReconnecting(userID string) {
	name := c.resolveName(userID, "", "")
	c.updateView(userID, func(v *RemoteMediaView) {
		v.Reconnecting = true
		v.ReconnectStarted = time.Now()
		if !IsPlaceholderName(name) {
			v.UserName = name
		}
	})
}

// scheduleRecoveryDeadline clears a recovery that never reconnects, so the
// UI doesn't show "reconnecting" forever, and tries a fresh link.
func (c *Client) scheduleRecoveryDeadline(userID string) {
	time.AfterFunc(c.reconnectDeadline, func() {
		if c.isClosed() {
			return
		}

		c.mu.Lock()
		view, ok := c.views[userID]
		stalled := ok && view.Reconnecting && !view.ReconnectStarted.IsZero() &&
			time.Since(view.ReconnectStarted) >= c.reconnectDeadline
		c.mu.Unlock()
		if !stalled {
			return
		}

		log.Printf("Recovery for %s exceeded %s, recreating link", userID, c.reconnectDeadline)
		c.updateView(userID, func(v *RemoteMediaView) {
			v.Reconnecting = false
			v.ReconnectStarted = time.Time{}
		})

		name := c.resolveName(userID, "", "")
		c.closeLink(userID)
		c.ensureLink(userID, name, true)
		c.mu.Lock()
		delete(c.lastRecovery, userID)
		c.mu.Unlock()
	})
}

func (c *Client) handleMediaState(msg models.SignalMessage) {
	if msg.MediaType == "" || msg.Enabled == nil {
		return
	}
	enabled := *msg.Enabled
	name := c.resolveName(msg.UserID, msg.UserName, "")
	c.updateView(msg.UserID, func(v *RemoteMediaView) {
		if !IsPlaceholderName(name) {
			v.UserName = name
		}
		switch msg.MediaType {
		case "audio":
			v.AudioEnabled = enabled
		case "video":
			v.VideoEnabled = enabled
		}
	})
}

// handleDebugStatus repairs one-way connections using a counterpart's
// self-reported link state.
func (c *Client) handleDebugStatus(fromUserID string, report models.ConnectionReport) {
	myID := c.UserID()

	var toMe *models.PeerLinkReport
	for i := range report.Links {
		if report.Links[i].PeerID == myID {
			toMe = &report.Links[i]
			break
		}
	}

	name := c.resolveName(fromUserID, "", "")

	switch {
	case toMe == nil:
		// They don't know about us at all; ask them to join us
		log.Printf("%s has no link to us, sending force-join-notification", fromUserID)
		c.sendSignal(models.SignalMessage{
			Type:         models.SignalTypeForceJoin,
			TargetUserID: fromUserID,
		})
	case !toMe.HasRemoteDescription:
		log.Printf("%s has a link to us without a remote description, recreating ours", fromUserID)
		c.closeLink(fromUserID)
		c.ensureLink(fromUserID, name, true)
	case !streamsContain(report.Links, myID):
		log.Printf("%s has no stream from us, requesting restart", fromUserID)
		c.sendSignal(models.SignalMessage{
			Type:         models.SignalTypeRestartConnection,
			TargetUserID: fromUserID,
		})
	}

	// Repair our own side too
	link := c.link(fromUserID)
	if link == nil || !link.Healthy() {
		log.Printf("Our link to %s is missing or unhealthy, recreating", fromUserID)
		c.closeLink(fromUserID)
		c.ensureLink(fromUserID, name, true)
	}
}

func streamsContain(links []models.PeerLinkReport, userID string) bool {
	for _, link := range links {
		for _, stream := range link.ConnectedStreams {
			if stream == userID {
				return true
			}
		}
	}
	return false
}

// BroadcastConnectionStatus shares our link state so counterparts can
// detect one-way connections.
func (c *Client) BroadcastConnectionStatus() {
	report := models.ConnectionReport{UserID: c.UserID()}
	c.mu.Lock()
	for _, link := range c.links {
		report.Links = append(report.Links, link.Report())
	}
	c.mu.Unlock()

	c.sendSignal(models.SignalMessage{
		Type:   models.SignalTypeDebugStatus,
		Status: &report,
	})
}

func (c *Client) scheduleStatusBroadcast() {
	time.AfterFunc(statusBroadcastDelay, func() {
		if c.isClosed() {
			return
		}
		c.BroadcastConnectionStatus()
	})
}

// SetAudioEnabled toggles the local audio state and broadcasts it.
func (c *Client) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	c.audioEnabled = enabled
	c.mu.Unlock()
	c.broadcastMediaState("audio", enabled)
}

// SetVideoEnabled toggles the local video state and broadcasts it.
func (c *Client) SetVideoEnabled(enabled bool) {
	c.mu.Lock()
	c.videoEnabled = enabled
	c.mu.Unlock()
	c.broadcastMediaState("video", enabled)
}

func (c *Client) AudioEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioEnabled
}

func (c *Client) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoEnabled
}

func (c *Client) broadcastMediaState(mediaType string, enabled bool) {
	e := enabled
	c.sendSignal(models.SignalMessage{
		Type:      models.SignalTypeMediaStateChange,
		MediaType: mediaType,
		Enabled:   &e,
	})
}

// UserID returns the relay-finalized identity.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Views returns a snapshot of every remote participant's display state.
func (c *Client) Views() []RemoteMediaView {
	c.mu.Lock()
	defer c.mu.Unlock()
	views := make([]RemoteMediaView, 0, len(c.views))
	for _, view := range c.views {
		views = append(views, view)
	}
	return views
}

// View returns the display state of one remote participant.
func (c *Client) View(userID string) (RemoteMediaView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[userID]
	return view, ok
}

func (c *Client) updateView(userID string, apply func(*RemoteMediaView)) {
	c.mu.Lock()
	view, ok := c.views[userID]
	if !ok {
		view = RemoteMediaView{
			UserID:       userID,
			UserName:     PlaceholderName,
			AudioEnabled: true,
			VideoEnabled: true,
		}
	}
	apply(&view)
	c.views[userID] = view
	observer := c.opts.OnViewChange
	c.mu.Unlock()

	if observer != nil {
		observer(view)
	}
}

// resolveName picks the best display name for a remote participant from
// the layered sources, and persists a good one to the cache.
func (c *Client) resolveName(userID, messageName, streamName string) string {
	var live string
	c.mu.Lock()
	if view, ok := c.views[userID]; ok {
		live = view.UserName
	}
	c.mu.Unlock()

	var cached string
	if c.opts.Names != nil {
		cached, _ = c.opts.Names.Get(c.opts.SessionID, userID)
	}

	name := ResolveDisplayName(NameSources{
		Live:    live,
		Cached:  cached,
		Message: messageName,
		Stream:  streamName,
	})

	if c.opts.Names != nil && !IsPlaceholderName(name) && name != cached {
		c.opts.Names.Put(c.opts.SessionID, userID, name)
	}
	return name
}

func (c *Client) sendSignal(msg models.SignalMessage) {
	if msg.UserID == "" {
		msg.UserID = c.UserID()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("Failed to send %s message: %v", msg.Type, err)
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Leave exits the session gracefully, then releases everything.
func (c *Client) Leave() {
	c.sendSignal(models.SignalMessage{Type: models.SignalTypeLeave, SessionID: c.opts.SessionID})
	c.Close()
}

// Close cancels all in-flight negotiation and releases every owned
// resource: peer links, the media source and the signaling socket. Safe to
// call from any exit path, repeatedly.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	links := make([]*PeerLink, 0, len(c.links))
	for _, link := range c.links {
		links = append(links, link)
	}
	c.links = make(map[string]*PeerLink)
	c.mu.Unlock()

	close(c.done)

	for _, link := range links {
		link.Close()
	}
	c.opts.Capture.Release()
	if c.conn != nil {
		c.conn.Close()
	}
}
