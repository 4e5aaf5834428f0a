package types

import "github.com/ethereum/go-ethereum/common"

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Emitter    common.Address    `json:"emitter"`
	Height     uint64            `json:"height"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type, Emitter: e.Emitter, Height: e.Height}
	if e.Attributes != nil {
		clone.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}
