package client

// PlaceholderName is displayed when no real name is known for a participant.
const PlaceholderName = "Unknown Participant"

// NameSources holds the layered, individually unreliable places a remote
// participant's display name can come from at the moment of resolution.
type NameSources struct {
	Live    string // current presence entry
	Cached  string // name cache from a prior interaction
	Message string // name carried on the inbound message
	Stream  string // annotation on the media stream
}

// ResolveDisplayName picks one stable display name from the layered
// sources, highest precedence first. A placeholder never wins over a known
// real name; callers rely on that to stop names flickering while a peer
// reconnects.
func ResolveDisplayName(s NameSources) string {
	for _, candidate := range []string{s.Live, s.Cached, s.Message, s.Stream} {
		if !IsPlaceholderName(candidate) {
			return candidate
		}
	}
	return PlaceholderName
}

// IsPlaceholderName reports whether name carries no real identity.
func IsPlaceholderName(name string) bool {
	return name == "" || name == "Unknown" || name == PlaceholderName
}
