// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
	"perun.network/perun-paystream-backend/wire/scval"
)

type Event = xdr.ContractEvent
type EventType int

const (
	EventTypeCreated   EventType = iota // stream created and funded
	EventTypeWithdrawn                  // payee withdrew vested funds
	EventTypeCancelled                  // stream terminated and settled
	EventTypeCompleted                  // last withdrawal drained the stream
)

// ProgramSymbol is the first topic of every event the paystream program emits.
const ProgramSymbol = "paystream"

var (
	StreamTopics = map[xdr.ScSymbol]EventType{
		xdr.ScSymbol("create"):   EventTypeCreated,
		xdr.ScSymbol("withdraw"): EventTypeWithdrawn,
		xdr.ScSymbol("cancel"):   EventTypeCancelled,
		xdr.ScSymbol("complete"): EventTypeCompleted,
	}

	ErrNotPaystreamEvent = errors.New("event was not emitted by the paystream program")
	ErrEventDecode       = errors.New("error while decoding events")
	ErrNoCreateEvent     = errors.New("create event not found")
	ErrNoWithdrawEvent   = errors.New("withdraw event not found")
	ErrNoCancelEvent     = errors.New("cancel event not found")
	ErrNoCompleteEvent   = errors.New("complete event not found")
)

var (
	SymbolStream = xdr.ScSymbol("stream")
	SymbolRecord = xdr.ScSymbol("record")
	SymbolPayout = xdr.ScSymbol("payout")
	SymbolRefund = xdr.ScSymbol("refund")
)

func (t EventType) Symbol() xdr.ScSymbol {
	for sym, et := range StreamTopics {
		if et == t {
			return sym
		}
	}
	return ""
}

func (t EventType) String() string {
	if sym := t.Symbol(); sym != "" {
		return string(sym)
	}
	return "unknown"
}

// StreamEvent is a decoded paystream event. Record is the stream record after the call.
type StreamEvent struct {
	Type   EventType
	Stream types.Address
	Record wire.Stream
	Payout uint64
	Refund uint64
}

// Emitter publishes contract events.
type Emitter interface {
	Emit(topics []xdr.ScVal, data xdr.ScVal)
}

func (e StreamEvent) Topics() ([]xdr.ScVal, error) {
	sym := e.Type.Symbol()
	if sym == "" {
		return nil, errors.Errorf("unknown event type %d", e.Type)
	}
	ns, err := scval.WrapScSymbol(ProgramSymbol)
	if err != nil {
		return nil, err
	}
	fn, err := scval.WrapScSymbol(sym)
	if err != nil {
		return nil, err
	}
	return []xdr.ScVal{ns, fn}, nil
}

func (e StreamEvent) Data() (xdr.ScVal, error) {
	stream, err := scval.WrapAddress(e.Stream)
	if err != nil {
		return xdr.ScVal{}, err
	}
	record, err := e.Record.ToScVal()
	if err != nil {
		return xdr.ScVal{}, err
	}
	payout, err := scval.WrapUint64(xdr.Uint64(e.Payout))
	if err != nil {
		return xdr.ScVal{}, err
	}
	refund, err := scval.WrapUint64(xdr.Uint64(e.Refund))
	if err != nil {
		return xdr.ScVal{}, err
	}
	m, err := wire.MakeSymbolScMap(
		[]xdr.ScSymbol{SymbolStream, SymbolRecord, SymbolPayout, SymbolRefund},
		[]xdr.ScVal{stream, record, payout, refund},
	)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return scval.WrapScMap(m)
}

// Emit publishes e through em.
func (e StreamEvent) Emit(em Emitter) error {
	topics, err := e.Topics()
	if err != nil {
		return err
	}
	data, err := e.Data()
	if err != nil {
		return err
	}
	em.Emit(topics, data)
	return nil
}

// DecodeEvents returns the paystream events among evs. Events of other programs are skipped.
func DecodeEvents(evs []Event) ([]StreamEvent, error) {
	out := make([]StreamEvent, 0, len(evs))
	for i, ev := range evs {
		sev, err := DecodeEvent(ev)
		if errors.Is(err, ErrNotPaystreamEvent) {
			continue
		} else if err != nil {
			return nil, errors.WithMessagef(err, "event %d", i)
		}
		out = append(out, sev)
	}
	return out, nil
}

// DecodeEvent decodes a single event. It returns ErrNotPaystreamEvent if the topics do not carry
// the paystream namespace.
func DecodeEvent(ev Event) (StreamEvent, error) {
	if ev.Body.V0 == nil {
		return StreamEvent{}, ErrNotPaystreamEvent
	}
	topics := ev.Body.V0.Topics
	if len(topics) < 2 {
		return StreamEvent{}, ErrNotPaystreamEvent
	}
	ns, ok := topics[0].GetSym()
	if !ok || ns != ProgramSymbol {
		return StreamEvent{}, ErrNotPaystreamEvent
	}
	fn, ok := topics[1].GetSym()
	if !ok {
		return StreamEvent{}, errors.Wrap(ErrEventDecode, "function topic is not a symbol")
	}
	eventType, found := StreamTopics[fn]
	if !found {
		return StreamEvent{}, errors.Wrapf(ErrEventDecode, "unknown function %q", fn)
	}

	m, err := wire.ExpectScMap(ev.Body.V0.Data, 4)
	if err != nil {
		return StreamEvent{}, errors.Wrap(ErrEventDecode, err.Error())
	}
	sev := StreamEvent{Type: eventType}
	if err := decodeField(m, SymbolStream, func(v xdr.ScVal) (err error) {
		sev.Stream, err = scval.UnwrapAddress(v)
		return
	}); err != nil {
		return StreamEvent{}, err
	}
	if err := decodeField(m, SymbolRecord, sev.Record.FromScVal); err != nil {
		return StreamEvent{}, err
	}
	if err := decodeField(m, SymbolPayout, func(v xdr.ScVal) (err error) {
		sev.Payout, err = scval.UnwrapUint64(v)
		return
	}); err != nil {
		return StreamEvent{}, err
	}
	if err := decodeField(m, SymbolRefund, func(v xdr.ScVal) (err error) {
		sev.Refund, err = scval.UnwrapUint64(v)
		return
	}); err != nil {
		return StreamEvent{}, err
	}
	return sev, nil
}

func decodeField(m xdr.ScMap, key xdr.ScSymbol, decode func(xdr.ScVal) error) error {
	v, err := wire.GetScMapValueFromSymbol(key, m)
	if err != nil {
		return errors.Wrapf(ErrEventDecode, "%s: %v", key, err)
	}
	if err := decode(v); err != nil {
		return errors.Wrapf(ErrEventDecode, "%s: %v", key, err)
	}
	return nil
}

// Find returns the first event of type t.
func Find(evs []StreamEvent, t EventType) (StreamEvent, bool) {
	for _, ev := range evs {
		if ev.Type == t {
			return ev, true
		}
	}
	return StreamEvent{}, false
}

func assertEvent(evs []StreamEvent, t EventType, notFound error) error {
	if _, ok := Find(evs, t); !ok {
		return notFound
	}
	return nil
}

func AssertCreatedEvent(evs []StreamEvent) error {
	return assertEvent(evs, EventTypeCreated, ErrNoCreateEvent)
}

func AssertWithdrawnEvent(evs []StreamEvent) error {
	return assertEvent(evs, EventTypeWithdrawn, ErrNoWithdrawEvent)
}

func AssertCancelledEvent(evs []StreamEvent) error {
	return assertEvent(evs, EventTypeCancelled, ErrNoCancelEvent)
}

func AssertCompletedEvent(evs []StreamEvent) error {
	return assertEvent(evs, EventTypeCompleted, ErrNoCompleteEvent)
}
