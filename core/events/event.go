package events

import (
	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/types"
)

// Payload is a structured state change that can be rendered as a chain event.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. the gateway log).
type Emitter interface {
	Emit(emitter common.Address, event *types.Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(common.Address, *types.Event) {}

// Publish renders payload and hands it to sink on behalf of emitter.
func Publish(sink Emitter, emitter common.Address, payload Payload) {
	if sink == nil || payload == nil {
		return
	}
	if ev := payload.Event(); ev != nil {
		sink.Emit(emitter, ev)
	}
}
