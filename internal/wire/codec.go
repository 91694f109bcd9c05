// Package wire implements the length-prefixed little-endian framing used
// to move signals, trading events, and event envelopes across the
// shared-memory bus (§4.1, §6). Every field is little-endian with no
// padding; variable-length strings are u32-length-prefixed; optional f64
// values carry a presence byte.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/pkg/types"
)

// DecodeError names the field or reason a decode failed on, matching §7's
// requirement that decode errors are always surfaced and never partially applied.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode %s: %s", e.Field, e.Reason)
}

func newDecodeError(field, reason string) error {
	return &DecodeError{Field: field, Reason: reason}
}

// --- primitive helpers -----------------------------------------------------

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	writeU64(buf, uint64(v))
}

func writeF64(buf *bytes.Buffer, v float64) {
	writeU64(buf, math.Float64bits(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeOptF64(buf *bytes.Buffer, v *float64) {
	if v == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeF64(buf, *v)
}

func writeTimestamp(buf *bytes.Buffer, t time.Time) {
	writeI64(buf, t.UnixMilli())
}

type reader struct {
	r   *bytes.Reader
	err error
}

func (r *reader) u32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	var tmp [4]byte
	if _, err := io.ReadFull(r.r, tmp[:]); err != nil {
		r.err = newDecodeError(field, "truncated payload")
		return 0
	}
	return binary.LittleEndian.Uint32(tmp[:])
}

func (r *reader) u64(field string) uint64 {
	if r.err != nil {
		return 0
	}
	var tmp [8]byte
	if _, err := io.ReadFull(r.r, tmp[:]); err != nil {
		r.err = newDecodeError(field, "truncated payload")
		return 0
	}
	return binary.LittleEndian.Uint64(tmp[:])
}

func (r *reader) i64(field string) int64 {
	return int64(r.u64(field))
}

func (r *reader) f64(field string) float64 {
	return math.Float64frombits(r.u64(field))
}

func (r *reader) str(field string) string {
	if r.err != nil {
		return ""
	}
	n := r.u32(field)
	if r.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = newDecodeError(field, "truncated payload")
		return ""
	}
	return string(buf)
}

func (r *reader) optF64(field string) *float64 {
	if r.err != nil {
		return nil
	}
	var flag [1]byte
	if _, err := io.ReadFull(r.r, flag[:]); err != nil {
		r.err = newDecodeError(field, "truncated payload")
		return nil
	}
	switch flag[0] {
	case 0:
		return nil
	case 1:
		v := r.f64(field)
		return &v
	default:
		r.err = newDecodeError(field, "invalid presence flag")
		return nil
	}
}

func (r *reader) timestamp(field string) time.Time {
	ms := r.i64(field)
	if r.err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// --- Signal ------------------------------------------------------------

// EncodeSignal produces the wire representation of a Signal. Encoding is
// deterministic: repeated calls on an equal value produce byte-identical output.
func EncodeSignal(s types.Signal) []byte {
	buf := &bytes.Buffer{}
	writeU32(buf, uint32(s.Kind))
	writeU32(buf, s.ExchangeID)
	writeU32(buf, s.SymbolID)
	writeTimestamp(buf, s.Timestamp)

	switch s.Kind {
	case types.SignalAdaptiveSpreadDeviation, types.SignalFixedSpreadDeviation:
		writeF64(buf, s.Percentile)
		writeF64(buf, s.Spread)
		writeF64(buf, s.Threshold)
	case types.SignalFundingRateDirection, types.SignalRealTimeFundingRisk:
		writeF64(buf, s.Rate)
		writeU32(buf, uint32(s.Direction))
	case types.SignalOrderResponse:
		writeString(buf, s.ClientOrderID)
		notional, _ := s.Notional.Float64()
		writeF64(buf, notional)
	}

	return buf.Bytes()
}

// DecodeSignal parses a wire-format Signal. It never partially applies: on
// error the returned Signal is the zero value.
func DecodeSignal(data []byte) (types.Signal, error) {
	r := &reader{r: bytes.NewReader(data)}

	kind := types.SignalKind(r.u32("kind"))
	exch := r.u32("exchange_id")
	sym := r.u32("symbol_id")
	ts := r.timestamp("timestamp")
	if r.err != nil {
		return types.Signal{}, r.err
	}
	if kind >= types.NumSignalKinds {
		return types.Signal{}, newDecodeError("kind", "invalid signal type")
	}

	s := types.Signal{Kind: kind, ExchangeID: exch, SymbolID: sym, Timestamp: ts}

	switch kind {
	case types.SignalAdaptiveSpreadDeviation, types.SignalFixedSpreadDeviation:
		s.Percentile = r.f64("percentile")
		s.Spread = r.f64("spread")
		s.Threshold = r.f64("threshold")
	case types.SignalFundingRateDirection, types.SignalRealTimeFundingRisk:
		s.Rate = r.f64("rate")
		dir := r.u32("direction")
		if r.err == nil && dir > uint32(types.FundingNegative) {
			return types.Signal{}, newDecodeError("direction", "out of range")
		}
		s.Direction = types.FundingDirection(dir)
	case types.SignalOrderResponse:
		s.ClientOrderID = r.str("client_order_id")
		notional := r.f64("notional")
		s.Notional = decimal.NewFromFloat(notional)
	}

	if r.err != nil {
		return types.Signal{}, r.err
	}
	return s, nil
}

// --- TradingEvent --------------------------------------------------------

// EncodeEvent produces the wire representation of the event body only
// (without the sequence-id/timestamp envelope — see EncodeEventMessage).
func EncodeEvent(e types.TradingEvent) []byte {
	buf := &bytes.Buffer{}
	writeU32(buf, uint32(e.Kind))
	writeU32(buf, e.Symbol)

	writeU32(buf, uint32(len(e.ExchangeIDs)))
	for _, id := range e.ExchangeIDs {
		writeU32(buf, id)
	}

	writeString(buf, string(e.Side))
	qty, _ := e.Quantity.Float64()
	writeF64(buf, qty)

	var price *float64
	if e.Price != nil {
		p, _ := e.Price.Float64()
		price = &p
	}
	writeOptF64(buf, price)

	writeString(buf, e.TriggerType)
	writeString(buf, e.Reason)
	writeTimestamp(buf, e.Timestamp)
	writeString(buf, e.TargetClientOrderID)

	return buf.Bytes()
}

// DecodeEvent consumes exactly the event-specific fields written by
// EncodeEvent, and nothing more — required so EventMessage splitting works (§4.1).
func DecodeEvent(data []byte) (types.TradingEvent, error) {
	r := &reader{r: bytes.NewReader(data)}

	kind := types.TradingEventKind(r.u32("kind"))
	symbol := r.u32("symbol")
	n := r.u32("exchange_ids_len")
	if r.err != nil {
		return types.TradingEvent{}, r.err
	}
	if kind > uint32AsEventKind(types.EventModifyOrder) {
		return types.TradingEvent{}, newDecodeError("kind", "invalid event type")
	}

	ids := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		ids = append(ids, r.u32("exchange_ids"))
	}

	side := r.str("side")
	qty := r.f64("quantity")
	price := r.optF64("price")
	triggerType := r.str("trigger_type")
	reason := r.str("reason")
	ts := r.timestamp("timestamp")
	target := r.str("target_client_order_id")

	if r.err != nil {
		return types.TradingEvent{}, r.err
	}

	e := types.TradingEvent{
		Kind:                kind,
		Symbol:              symbol,
		ExchangeIDs:         ids,
		Side:                types.Side(side),
		Quantity:            decimal.NewFromFloat(qty),
		TriggerType:         triggerType,
		Reason:              reason,
		Timestamp:           ts,
		TargetClientOrderID: target,
	}
	if price != nil {
		d := decimal.NewFromFloat(*price)
		e.Price = &d
	}
	return e, nil
}

func uint32AsEventKind(k types.TradingEventKind) types.TradingEventKind { return k }

// EncodeEventMessage frames an EventMessage as event_body || sequence_id(u64) || timestamp_ms(i64).
func EncodeEventMessage(m types.EventMessage) []byte {
	body := EncodeEvent(m.Event)
	buf := &bytes.Buffer{}
	buf.Write(body)
	writeU64(buf, m.SequenceID)
	writeTimestamp(buf, m.Timestamp)
	return buf.Bytes()
}

// DecodeEventMessage splits the trailing 16 bytes (sequence id + timestamp)
// before decoding the event body, per §4.1.
func DecodeEventMessage(data []byte) (types.EventMessage, error) {
	const trailerSize = 8 + 8
	if len(data) < trailerSize {
		return types.EventMessage{}, newDecodeError("event_message", "truncated payload")
	}

	bodyLen := len(data) - trailerSize
	body := data[:bodyLen]
	trailer := data[bodyLen:]

	event, err := DecodeEvent(body)
	if err != nil {
		return types.EventMessage{}, err
	}

	seq := binary.LittleEndian.Uint64(trailer[0:8])
	tsMs := int64(binary.LittleEndian.Uint64(trailer[8:16]))

	return types.EventMessage{
		Event:      event,
		SequenceID: seq,
		Timestamp:  time.UnixMilli(tsMs).UTC(),
	}, nil
}
