// Package models defines the data structures for the FSR pad daemon.
// JSON field names are part of the wire protocol; connected clients
// deserialize these shapes directly.
package models

// Profile is a named set of 4 sensor trigger thresholds.
type Profile struct {
	Thresholds [4]int `json:"thresholds"`
}

// Player binds a name to one profile so a whole threshold set can be
// switched in a single command.
type Player struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
}

// State is the complete persisted configuration: all profiles, all players,
// and the current/default selection pointers. An empty pointer string means
// "unset".
type State struct {
	Profiles       map[string]Profile `json:"profiles"`
	CurrentProfile string             `json:"current_profile"`
	DefaultProfile string             `json:"default_profile"`
	Players        map[string]Player  `json:"players"`
	CurrentPlayer  string             `json:"current_player"`
}

// DefaultState returns an empty configuration with initialized maps.
func DefaultState() State {
	return State{
		Profiles: make(map[string]Profile),
		Players:  make(map[string]Player),
	}
}

// DeepCopy returns an independent copy of the state.
func (s State) DeepCopy() State {
	next := s
	next.Profiles = make(map[string]Profile, len(s.Profiles))
	for name, p := range s.Profiles {
		next.Profiles[name] = p
	}
	next.Players = make(map[string]Player, len(s.Players))
	for name, p := range s.Players {
		next.Players[name] = p
	}
	return next
}

// Equal reports whether two states hold the same profiles, players, and
// selection pointers.
func (s State) Equal(other State) bool {
	if s.CurrentProfile != other.CurrentProfile ||
		s.DefaultProfile != other.DefaultProfile ||
		s.CurrentPlayer != other.CurrentPlayer {
		return false
	}
	if len(s.Profiles) != len(other.Profiles) || len(s.Players) != len(other.Players) {
		return false
	}
	for name, p := range s.Profiles {
		if op, ok := other.Profiles[name]; !ok || op != p {
			return false
		}
	}
	for name, p := range s.Players {
		if op, ok := other.Players[name]; !ok || op != p {
			return false
		}
	}
	return true
}
