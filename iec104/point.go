package iec104

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/baetyl/baetyl-go/v2/errors"
	"github.com/baetyl/baetyl-go/v2/log"
)

// PointOptions configures a new point. IOA and Type are mandatory; the
// remaining fields keep their zero defaults when unset.
type PointOptions struct {
	IOA               uint32
	Type              TypeID
	ReportInterval    time.Duration
	RelatedIOA        *uint32
	RelatedAutoReturn bool
	CommandMode       CommandMode
}

// Point is one addressable information object of a station. Its identity
// (address, type, role) never changes after creation. Value and quality are
// replaced together as one atomic snapshot, scalar configuration fields are
// individually atomic, and the select lock moves by compare-and-swap only,
// so a point is safe to share between the protocol engine, the periodic
// reporter and application calls.
type Point struct {
	address uint32
	typeID  TypeID
	role    Role
	station *Station // non-owning, liveness checked on every use
	log     *log.Logger

	info              atomic.Pointer[Info]
	reportInterval    atomic.Uint32 // milliseconds, 0 disables
	relatedAddress    atomic.Pointer[uint32]
	relatedAutoReturn atomic.Bool
	commandMode       atomic.Uint32
	selectedBy        atomic.Uint32 // current select lock holder, 0 when free

	processedAt atomic.Uint64
	recordedAt  atomic.Uint64

	onReceive            *Callback
	onBeforeRead         *Callback
	onBeforeAutoTransmit *Callback
}

func newPoint(st *Station, opts PointOptions) (*Point, error) {
	kind, ok := opts.Type.Kind()
	if !ok {
		return nil, errors.New(fmt.Sprintf("unrecognized type id %d", opts.Type))
	}
	p := &Point{
		address: opts.IOA,
		typeID:  opts.Type,
		role:    st.Role(),
		station: st,
		log:     st.log.With(log.Any("ioa", opts.IOA)),
	}
	p.info.Store(&Info{Value: zeroValue(kind)})
	p.onReceive = newCallback(
		"point.on_receive",
		"func(point *Point, previous Info, message *IncomingMessage) ResponseState",
		(func(*Point, Info, *IncomingMessage) ResponseState)(nil),
	)
	p.onBeforeRead = newCallback(
		"point.on_before_read",
		"func(point *Point)",
		(func(*Point))(nil),
	)
	p.onBeforeAutoTransmit = newCallback(
		"point.on_before_auto_transmit",
		"func(point *Point)",
		(func(*Point))(nil),
	)
	if opts.ReportInterval != 0 {
		if err := p.SetReportInterval(opts.ReportInterval); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if opts.RelatedIOA != nil {
		if err := p.SetRelatedAddress(*opts.RelatedIOA); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if opts.RelatedAutoReturn {
		if err := p.SetRelatedAutoReturn(true); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if opts.CommandMode != DirectCommand {
		if err := p.SetCommandMode(opts.CommandMode); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return p, nil
}

// Address returns the information object address, unique within the station.
func (p *Point) Address() uint32 { return p.address }

// Type returns the protocol type fixed at creation.
func (p *Point) Type() TypeID { return p.typeID }

// Role returns the side the owning station lives on.
func (p *Point) Role() Role { return p.role }

// Station returns the owning station and false when it has been closed.
// The back reference never extends the station's lifetime.
func (p *Point) Station() (*Station, bool) {
	st := p.station
	if st == nil || st.Closed() {
		return nil, false
	}
	return st, true
}

// Info returns the current value snapshot.
func (p *Point) Info() Info {
	return *p.info.Load()
}

func (p *Point) storeInfo(v Value, q Quality) {
	p.info.Store(&Info{Value: v, Quality: q, UpdatedAt: nowMilliseconds()})
}

// SetInfo replaces value and quality as one unit.
func (p *Point) SetInfo(v Value, q Quality) error {
	if kind, _ := p.typeID.Kind(); v.Kind() != kind {
		return errors.New(fmt.Sprintf("value kind %s does not match point type %s", v.Kind(), p.typeID))
	}
	p.storeInfo(v, q)
	return nil
}

// SetValue replaces the value, keeping the current quality.
func (p *Point) SetValue(v Value) error {
	return errors.Trace(p.SetInfo(v, p.Info().Quality))
}

// SetQuality replaces the quality, keeping the current value.
func (p *Point) SetQuality(q Quality) {
	p.storeInfo(p.Info().Value, q)
}

// UpdatedAt returns the time of the last value mutation in ms since epoch.
func (p *Point) UpdatedAt() uint64 { return p.Info().UpdatedAt }

// ProcessedAt returns the time of the last outgoing transmission.
func (p *Point) ProcessedAt() uint64 { return p.processedAt.Load() }

// RecordedAt returns the time of the last cyclic report; it is only present
// for server-side monitoring points that have reported at least once.
func (p *Point) RecordedAt() (uint64, bool) {
	if p.role != RoleServer || !p.typeID.IsMonitor() {
		return 0, false
	}
	ts := p.recordedAt.Load()
	return ts, ts != 0
}

// ReportInterval returns the periodic reporting interval, 0 when disabled.
func (p *Point) ReportInterval() time.Duration {
	return time.Duration(p.reportInterval.Load()) * time.Millisecond
}

// SetReportInterval configures periodic reporting. Only server-side
// monitoring points report periodically; 0 disables further reports.
func (p *Point) SetReportInterval(d time.Duration) error {
	if p.role != RoleServer || !p.typeID.IsMonitor() {
		return errors.New("report interval requires a server-side monitoring point")
	}
	if d < 0 {
		return errors.New("report interval must not be negative")
	}
	p.reportInterval.Store(uint32(d / time.Millisecond))
	return nil
}

// RelatedAddress returns the paired monitoring point address, false if unset.
func (p *Point) RelatedAddress() (uint32, bool) {
	addr := p.relatedAddress.Load()
	if addr == nil {
		return 0, false
	}
	return *addr, true
}

// SetRelatedAddress pairs a monitoring point for auto-return. Only legal on
// server-side control points.
func (p *Point) SetRelatedAddress(ioa uint32) error {
	if p.role != RoleServer || !p.typeID.IsControl() {
		return errors.New("related address requires a server-side control point")
	}
	if ioa == 0 {
		return errors.New("related address must not be zero")
	}
	addr := ioa
	p.relatedAddress.Store(&addr)
	return nil
}

// ClearRelatedAddress removes the pairing.
func (p *Point) ClearRelatedAddress() {
	p.relatedAddress.Store(nil)
}

// RelatedAutoReturn reports whether a successful command triggers a
// spontaneous transmit of the related monitoring point.
func (p *Point) RelatedAutoReturn() bool { return p.relatedAutoReturn.Load() }

// SetRelatedAutoReturn configures auto-return. Only legal on server-side
// control points.
func (p *Point) SetRelatedAutoReturn(enabled bool) error {
	if p.role != RoleServer || !p.typeID.IsControl() {
		return errors.New("auto return requires a server-side control point")
	}
	p.relatedAutoReturn.Store(enabled)
	return nil
}

// CommandMode returns the command arbitration mode.
func (p *Point) CommandMode() CommandMode {
	return CommandMode(p.commandMode.Load())
}

// SetCommandMode configures command arbitration; only control points carry
// command semantics.
func (p *Point) SetCommandMode(mode CommandMode) error {
	if !p.typeID.IsControl() {
		return errors.New("command mode requires a control point")
	}
	if mode != DirectCommand && mode != SelectAndExecuteCommand {
		return errors.New("unknown command mode")
	}
	p.commandMode.Store(uint32(mode))
	return nil
}

// SelectedBy returns the originator currently holding the select lock,
// false when the lock is free.
func (p *Point) SelectedBy() (uint8, bool) {
	o := p.selectedBy.Load()
	return uint8(o), o != 0
}

// CancelSelect releases the select lock if originator holds it. The lock
// never expires on its own; release is driven by a matching execute or by
// the owning engine calling this.
func (p *Point) CancelSelect(originator uint8) bool {
	return originator != 0 && p.selectedBy.CompareAndSwap(uint32(originator), 0)
}

// SetOnReceive registers the on-receive handler, see OnReceiveFunc. A nil
// handler clears the slot, a signature mismatch is rejected.
func (p *Point) SetOnReceive(handler interface{}) error {
	return errors.Trace(p.onReceive.Set(handler))
}

// SetOnBeforeRead registers the before-read handler, see PointFunc. Only
// server-side points answer reads.
func (p *Point) SetOnBeforeRead(handler interface{}) error {
	if p.role != RoleServer {
		return errors.New("on_before_read handlers require server mode")
	}
	return errors.Trace(p.onBeforeRead.Set(handler))
}

// SetOnBeforeAutoTransmit registers the before-auto-transmit handler, see
// PointFunc. Only server-side points transmit automatically.
func (p *Point) SetOnBeforeAutoTransmit(handler interface{}) error {
	if p.role != RoleServer {
		return errors.New("on_before_auto_transmit handlers require server mode")
	}
	return errors.Trace(p.onBeforeAutoTransmit.Set(handler))
}

// OnReceive handles one incoming command or report addressed to this point
// and returns the outcome. Monitoring values are applied unconditionally;
// commands pass arbitration first: direct commands apply immediately,
// select-and-execute commands apply only when the executing originator
// holds the select lock. Malformed or inapplicable messages yield FAILURE,
// never a panic.
func (p *Point) OnReceive(msg *IncomingMessage) ResponseState {
	if msg == nil || msg.IOA != p.address {
		return ResponseFailure
	}
	kind, _ := p.typeID.Kind()
	if msg.Value.Kind() != kind {
		return ResponseFailure
	}
	if debugEnabled(DebugMessage) {
		p.log.Debug("incoming message",
			log.Any("cause", msg.Cause.String()),
			log.Any("originator", msg.Originator))
	}

	if p.typeID.IsMonitor() {
		if msg.Select {
			return ResponseFailure
		}
		prev := p.Info()
		p.storeInfo(msg.Value, msg.Quality)
		// The handler result is ignored for monitoring points.
		if _, _, err := p.onReceive.call(p, prev, msg); err != nil {
			p.log.Warn("on_receive handler fault", log.Error(err))
		}
		return ResponseSuccess
	}

	switch p.CommandMode() {
	case DirectCommand:
		if msg.Select {
			return ResponseFailure
		}
		return p.executeCommand(msg)
	case SelectAndExecuteCommand:
		o := uint32(msg.Originator)
		if o == 0 {
			return ResponseFailure
		}
		if msg.Select {
			if p.selectedBy.CompareAndSwap(0, o) {
				return ResponseSuccess
			}
			if p.selectedBy.Load() == o {
				// Repeated select by the holder is idempotent.
				return ResponseSuccess
			}
			return ResponseFailure
		}
		// The swap both proves ownership and releases the lock; an
		// execute without a matching select loses here without any
		// side effect.
		if !p.selectedBy.CompareAndSwap(o, 0) {
			return ResponseFailure
		}
		return p.executeCommand(msg)
	}
	return ResponseFailure
}

// executeCommand applies the command value, consults the on-receive handler
// (SUCCESS when none is registered) and performs the auto-return transmit
// on success.
func (p *Point) executeCommand(msg *IncomingMessage) ResponseState {
	prev := p.Info()
	p.storeInfo(msg.Value, msg.Quality)
	state := ResponseSuccess
	out, called, err := p.onReceive.call(p, prev, msg)
	if err != nil {
		p.log.Warn("on_receive handler fault", log.Error(err))
		state = ResponseFailure
	} else if called {
		state = out[0].Interface().(ResponseState)
	}
	if state == ResponseSuccess {
		p.autoReturnRelated()
	}
	return state
}

// autoReturnRelated transmits the paired monitoring point exactly once
// after a successful command execution, when configured.
func (p *Point) autoReturnRelated() {
	if !p.relatedAutoReturn.Load() {
		return
	}
	addr, ok := p.RelatedAddress()
	if !ok {
		return
	}
	st, ok := p.Station()
	if !ok {
		return
	}
	related := st.GetPoint(addr)
	if related == nil {
		p.log.Warn("related point does not exist", log.Any("related", addr))
		return
	}
	if err := related.OnBeforeAutoTransmit(); err != nil {
		p.log.Warn("auto return hook failed", log.Error(err))
		return
	}
	if err := related.Transmit(CauseSpontaneous, QualifierNone); err != nil {
		p.log.Warn("auto return transmit failed", log.Error(err))
	}
}

// OnBeforeRead lets the application refresh the value just before a read or
// interrogation response is built. Handler faults are contained.
func (p *Point) OnBeforeRead() error {
	if p.role != RoleServer {
		return errors.New("on_before_read is only available in server mode")
	}
	if _, _, err := p.onBeforeRead.call(p); err != nil {
		p.log.Warn("on_before_read handler fault", log.Error(err))
	}
	return nil
}

// OnBeforeAutoTransmit lets the application refresh the value just before a
// periodic or auto-return transmission. Handler faults are contained.
func (p *Point) OnBeforeAutoTransmit() error {
	if p.role != RoleServer {
		return errors.New("on_before_auto_transmit is only available in server mode")
	}
	if _, _, err := p.onBeforeAutoTransmit.call(p); err != nil {
		p.log.Warn("on_before_auto_transmit handler fault", log.Error(err))
	}
	return nil
}

// Read requests the current value from the remote server and blocks until
// the response arrived or the station's read timeout elapsed. Only client
// side points issue reads; servers answer them via RespondRead.
func (p *Point) Read() error {
	if p.role != RoleClient {
		return errors.New("read is only available in client mode")
	}
	st, ok := p.Station()
	if !ok {
		return errors.New("station reference is gone")
	}
	conn := st.Connector()
	if conn == nil || !conn.Connected() {
		return errors.New("no active connection")
	}
	return errors.Trace(conn.RequestRead(p.address, st.ReadTimeout()))
}

// RespondRead answers an incoming read or interrogation request: it invokes
// the before-read hook, then transmits the current value with cause REQUEST.
func (p *Point) RespondRead() error {
	if p.role != RoleServer {
		return errors.New("read responses are only available in server mode")
	}
	if err := p.OnBeforeRead(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.Transmit(CauseRequest, QualifierNone))
}

// Transmit hands the current value snapshot to the station's connector and
// stamps the processing time on success.
func (p *Point) Transmit(cause Cause, qualifier Qualifier) error {
	st, ok := p.Station()
	if !ok {
		return errors.New("station reference is gone")
	}
	conn := st.Connector()
	if conn == nil {
		return errors.New("no active connection")
	}
	info := p.Info()
	r := Report{
		IOA:       p.address,
		Type:      p.typeID,
		Value:     info.Value,
		Quality:   info.Quality,
		Cause:     cause,
		Qualifier: qualifier,
	}
	if debugEnabled(DebugPoint) {
		p.log.Debug("transmit", log.Any("cause", cause.String()))
	}
	if err := conn.Send(r); err != nil {
		return errors.Trace(err)
	}
	p.processedAt.Store(nowMilliseconds())
	return nil
}

func (p *Point) String() string {
	related := "None"
	if addr, ok := p.RelatedAddress(); ok {
		related = fmt.Sprint(addr)
	}
	return fmt.Sprintf("<iec104.Point ioa=%d, type=%s, role=%s, report_interval=%s, related=%s, auto_return=%t, command_mode=%s>",
		p.address, p.typeID, p.role, p.ReportInterval(), related, p.RelatedAutoReturn(), p.CommandMode())
}
