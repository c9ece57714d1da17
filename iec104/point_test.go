package iec104

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readCall struct {
	ioa     uint32
	timeout time.Duration
}

type fakeConnector struct {
	mu        sync.Mutex
	reports   []Report
	reads     []readCall
	sendErr   error
	readErr   error
	connected bool
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{connected: true}
}

func (f *fakeConnector) Send(r Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeConnector) RequestRead(ioa uint32, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, readCall{ioa: ioa, timeout: timeout})
	return f.readErr
}

func (f *fakeConnector) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConnector) sent() []Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Report, len(f.reports))
	copy(out, f.reports)
	return out
}

func serverStation(t *testing.T) (*Station, *fakeConnector) {
	t.Helper()
	conn := newFakeConnector()
	return NewStation(47, RoleServer, conn), conn
}

func measurement(msg Value, q Quality, ioa uint32) *IncomingMessage {
	return &IncomingMessage{
		CommonAddress: 47,
		IOA:           ioa,
		Type:          M_ME_NC_1,
		Cause:         CauseSpontaneous,
		Value:         msg,
		Quality:       q,
	}
}

func command(v Value, ioa uint32, originator uint8, sel bool) *IncomingMessage {
	return &IncomingMessage{
		Originator:    originator,
		CommonAddress: 47,
		IOA:           ioa,
		Type:          C_SC_NA_1,
		Cause:         CauseActivation,
		Value:         v,
		Quality:       QualityGood,
		Select:        sel,
	}
}

func TestPointIdentityImmutable(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1, ReportInterval: time.Second})
	require.NoError(t, err)

	assert.Equal(t, uint32(100), p.Address())
	assert.Equal(t, M_ME_NC_1, p.Type())
	assert.Equal(t, RoleServer, p.Role())

	p.OnReceive(measurement(MeasuredValue(3.5), QualityGood, 100))
	assert.NoError(t, p.SetReportInterval(0))
	assert.NoError(t, p.Transmit(CauseSpontaneous, QualifierNone))

	assert.Equal(t, uint32(100), p.Address())
	assert.Equal(t, M_ME_NC_1, p.Type())
	assert.Equal(t, RoleServer, p.Role())
}

func TestPointCreateValidation(t *testing.T) {
	st, _ := serverStation(t)

	_, err := st.AddPoint(PointOptions{IOA: 1, Type: TypeID(250)})
	assert.Error(t, err)

	// report interval on a control point
	_, err = st.AddPoint(PointOptions{IOA: 2, Type: C_SC_NA_1, ReportInterval: time.Second})
	assert.Error(t, err)

	// related address on a monitoring point
	related := uint32(100)
	_, err = st.AddPoint(PointOptions{IOA: 3, Type: M_SP_NA_1, RelatedIOA: &related})
	assert.Error(t, err)

	_, err = st.AddPoint(PointOptions{IOA: 4, Type: M_SP_NA_1, RelatedAutoReturn: true})
	assert.Error(t, err)

	_, err = st.AddPoint(PointOptions{IOA: 0, Type: M_SP_NA_1})
	assert.Error(t, err)

	// client stations do not report periodically
	client := NewStation(47, RoleClient, newFakeConnector())
	_, err = client.AddPoint(PointOptions{IOA: 5, Type: M_ME_NC_1, ReportInterval: time.Second})
	assert.Error(t, err)
}

func TestPointConfigSetters(t *testing.T) {
	st, _ := serverStation(t)
	mon, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	cmd, err := st.AddPoint(PointOptions{IOA: 200, Type: C_SC_NA_1})
	require.NoError(t, err)

	assert.Error(t, mon.SetRelatedAddress(200))
	assert.Error(t, mon.SetRelatedAutoReturn(true))
	assert.Error(t, mon.SetCommandMode(SelectAndExecuteCommand))
	assert.Error(t, cmd.SetReportInterval(time.Second))
	assert.Error(t, cmd.SetRelatedAddress(0))

	require.NoError(t, cmd.SetRelatedAddress(100))
	addr, ok := cmd.RelatedAddress()
	assert.True(t, ok)
	assert.Equal(t, uint32(100), addr)
	cmd.ClearRelatedAddress()
	_, ok = cmd.RelatedAddress()
	assert.False(t, ok)

	require.NoError(t, mon.SetReportInterval(2*time.Second))
	assert.Equal(t, 2*time.Second, mon.ReportInterval())
	require.NoError(t, mon.SetReportInterval(0))
	assert.Equal(t, time.Duration(0), mon.ReportInterval())
}

func TestMonitoringReceive(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)

	var gotPrev Info
	var gotMsg *IncomingMessage
	require.NoError(t, p.SetOnReceive(func(pt *Point, prev Info, msg *IncomingMessage) ResponseState {
		gotPrev = prev
		gotMsg = msg
		// The result of a monitoring hook is ignored.
		return ResponseFailure
	}))

	msg := measurement(MeasuredValue(21.5), QualityOverflow, 100)
	state := p.OnReceive(msg)
	assert.Equal(t, ResponseSuccess, state)

	info := p.Info()
	assert.Equal(t, 21.5, info.Value.Measured())
	assert.Equal(t, QualityOverflow, info.Quality)
	assert.NotZero(t, info.UpdatedAt)
	assert.Equal(t, msg, gotMsg)
	assert.Equal(t, Quality(0), gotPrev.Quality)
}

func TestMonitoringReceiveMismatch(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)

	assert.Equal(t, ResponseFailure, p.OnReceive(nil))
	// wrong address
	assert.Equal(t, ResponseFailure, p.OnReceive(measurement(MeasuredValue(1), QualityGood, 101)))
	// wrong value category
	assert.Equal(t, ResponseFailure, p.OnReceive(&IncomingMessage{IOA: 100, Type: M_SP_NA_1, Value: SingleValue(true)}))
	assert.Zero(t, p.Info().UpdatedAt)
}

func TestDirectCommand(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 200, Type: C_SC_NA_1})
	require.NoError(t, err)

	// no handler registered defaults to success
	state := p.OnReceive(command(SingleValue(true), 200, 5, false))
	assert.Equal(t, ResponseSuccess, state)
	assert.True(t, p.Info().Value.Single())

	// direct mode never touches the select lock
	_, held := p.SelectedBy()
	assert.False(t, held)

	// handler outcome is passed through
	require.NoError(t, p.SetOnReceive(func(pt *Point, prev Info, msg *IncomingMessage) ResponseState {
		return ResponseFailure
	}))
	state = p.OnReceive(command(SingleValue(false), 200, 5, false))
	assert.Equal(t, ResponseFailure, state)

	// a select in direct mode is inapplicable
	state = p.OnReceive(command(SingleValue(true), 200, 5, true))
	assert.Equal(t, ResponseFailure, state)
	_, held = p.SelectedBy()
	assert.False(t, held)
}

func TestSelectAndExecute(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 200, Type: C_SC_NA_1, CommandMode: SelectAndExecuteCommand})
	require.NoError(t, err)

	// select by A
	assert.Equal(t, ResponseSuccess, p.OnReceive(command(SingleValue(true), 200, 5, true)))
	holder, held := p.SelectedBy()
	assert.True(t, held)
	assert.Equal(t, uint8(5), holder)

	// repeated select by the holder is idempotent
	assert.Equal(t, ResponseSuccess, p.OnReceive(command(SingleValue(true), 200, 5, true)))

	// select by B while held fails, holder unchanged
	assert.Equal(t, ResponseFailure, p.OnReceive(command(SingleValue(true), 200, 7, true)))
	holder, held = p.SelectedBy()
	assert.True(t, held)
	assert.Equal(t, uint8(5), holder)

	// execute by B fails, value untouched
	assert.Equal(t, ResponseFailure, p.OnReceive(command(SingleValue(true), 200, 7, false)))
	assert.False(t, p.Info().Value.Single())

	// execute by A succeeds and releases the lock
	assert.Equal(t, ResponseSuccess, p.OnReceive(command(SingleValue(true), 200, 5, false)))
	assert.True(t, p.Info().Value.Single())
	_, held = p.SelectedBy()
	assert.False(t, held)

	// execute without a select fails
	assert.Equal(t, ResponseFailure, p.OnReceive(command(SingleValue(false), 200, 5, false)))
	assert.True(t, p.Info().Value.Single())
}

func TestSelectLockReleasedOnHandlerFailure(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 200, Type: C_SC_NA_1, CommandMode: SelectAndExecuteCommand})
	require.NoError(t, err)
	require.NoError(t, p.SetOnReceive(func(pt *Point, prev Info, msg *IncomingMessage) ResponseState {
		return ResponseFailure
	}))

	require.Equal(t, ResponseSuccess, p.OnReceive(command(SingleValue(true), 200, 5, true)))
	assert.Equal(t, ResponseFailure, p.OnReceive(command(SingleValue(true), 200, 5, false)))
	_, held := p.SelectedBy()
	assert.False(t, held)
}

func TestCancelSelect(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 200, Type: C_SC_NA_1, CommandMode: SelectAndExecuteCommand})
	require.NoError(t, err)

	require.Equal(t, ResponseSuccess, p.OnReceive(command(SingleValue(true), 200, 5, true)))
	assert.False(t, p.CancelSelect(7))
	assert.True(t, p.CancelSelect(5))
	_, held := p.SelectedBy()
	assert.False(t, held)
}

func TestAutoReturn(t *testing.T) {
	st, conn := serverStation(t)
	related := uint32(100)
	_, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	cmd, err := st.AddPoint(PointOptions{
		IOA:               200,
		Type:              C_SE_NC_1,
		RelatedIOA:        &related,
		RelatedAutoReturn: true,
	})
	require.NoError(t, err)

	msg := &IncomingMessage{
		Originator: 5,
		IOA:        200,
		Type:       C_SE_NC_1,
		Cause:      CauseActivation,
		Value:      MeasuredValue(33.0),
		Quality:    QualityGood,
	}
	require.Equal(t, ResponseSuccess, cmd.OnReceive(msg))

	reports := conn.sent()
	require.Len(t, reports, 1)
	assert.Equal(t, uint32(100), reports[0].IOA)
	assert.Equal(t, CauseSpontaneous, reports[0].Cause)

	// disabled auto return transmits nothing
	require.NoError(t, cmd.SetRelatedAutoReturn(false))
	require.Equal(t, ResponseSuccess, cmd.OnReceive(msg))
	assert.Len(t, conn.sent(), 1)

	// failing handler suppresses auto return
	require.NoError(t, cmd.SetRelatedAutoReturn(true))
	require.NoError(t, cmd.SetOnReceive(func(pt *Point, prev Info, msg *IncomingMessage) ResponseState {
		return ResponseFailure
	}))
	require.Equal(t, ResponseFailure, cmd.OnReceive(msg))
	assert.Len(t, conn.sent(), 1)
}

func TestSelectExecuteEndToEnd(t *testing.T) {
	st, conn := serverStation(t)
	related := uint32(100)
	_, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	cmd, err := st.AddPoint(PointOptions{
		IOA:               200,
		Type:              C_SE_NC_1,
		RelatedIOA:        &related,
		RelatedAutoReturn: true,
		CommandMode:       SelectAndExecuteCommand,
	})
	require.NoError(t, err)

	sel := &IncomingMessage{Originator: 5, IOA: 200, Type: C_SE_NC_1, Value: MeasuredValue(0), Select: true}
	require.Equal(t, ResponseSuccess, cmd.OnReceive(sel))
	holder, _ := cmd.SelectedBy()
	assert.Equal(t, uint8(5), holder)

	selB := &IncomingMessage{Originator: 7, IOA: 200, Type: C_SE_NC_1, Value: MeasuredValue(0), Select: true}
	require.Equal(t, ResponseFailure, cmd.OnReceive(selB))
	holder, _ = cmd.SelectedBy()
	assert.Equal(t, uint8(5), holder)

	exec := &IncomingMessage{Originator: 5, IOA: 200, Type: C_SE_NC_1, Value: MeasuredValue(77.5)}
	require.Equal(t, ResponseSuccess, cmd.OnReceive(exec))
	_, held := cmd.SelectedBy()
	assert.False(t, held)
	assert.Equal(t, 77.5, cmd.Info().Value.Measured())

	reports := conn.sent()
	require.Len(t, reports, 1)
	assert.Equal(t, uint32(100), reports[0].IOA)
	assert.Equal(t, CauseSpontaneous, reports[0].Cause)
}

func TestTransmit(t *testing.T) {
	st, conn := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	require.NoError(t, p.SetInfo(MeasuredValue(9.25), QualitySubstituted))

	require.NoError(t, p.Transmit(CauseRequest, QualifierNone))
	reports := conn.sent()
	require.Len(t, reports, 1)
	assert.Equal(t, uint32(100), reports[0].IOA)
	assert.Equal(t, M_ME_NC_1, reports[0].Type)
	assert.Equal(t, 9.25, reports[0].Value.Measured())
	assert.Equal(t, QualitySubstituted, reports[0].Quality)
	assert.Equal(t, CauseRequest, reports[0].Cause)
	assert.NotZero(t, p.ProcessedAt())
}

func TestTransmitWithoutConnection(t *testing.T) {
	st := NewStation(47, RoleServer, nil)
	p, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	assert.Error(t, p.Transmit(CauseSpontaneous, QualifierNone))
	assert.Zero(t, p.ProcessedAt())
}

func TestReadRoles(t *testing.T) {
	server, _ := serverStation(t)
	sp, err := server.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	assert.Error(t, sp.Read())

	conn := newFakeConnector()
	client := NewStation(47, RoleClient, conn)
	client.SetReadTimeout(2 * time.Second)
	cp, err := client.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)

	require.NoError(t, cp.Read())
	require.Len(t, conn.reads, 1)
	assert.Equal(t, uint32(100), conn.reads[0].ioa)
	assert.Equal(t, 2*time.Second, conn.reads[0].timeout)

	conn.connected = false
	assert.Error(t, cp.Read())
}

func TestRespondRead(t *testing.T) {
	st, conn := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	require.NoError(t, p.SetOnBeforeRead(func(pt *Point) {
		_ = pt.SetValue(MeasuredValue(55.5))
	}))

	require.NoError(t, p.RespondRead())
	reports := conn.sent()
	require.Len(t, reports, 1)
	assert.Equal(t, 55.5, reports[0].Value.Measured())
	assert.Equal(t, CauseRequest, reports[0].Cause)

	client := NewStation(47, RoleClient, newFakeConnector())
	cp, err := client.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)
	assert.Error(t, cp.RespondRead())
	assert.Error(t, cp.OnBeforeRead())
	assert.Error(t, cp.OnBeforeAutoTransmit())
}

func TestStationGoneAfterClose(t *testing.T) {
	st, _ := serverStation(t)
	p, err := st.AddPoint(PointOptions{IOA: 100, Type: M_ME_NC_1})
	require.NoError(t, err)

	owner, alive := p.Station()
	assert.True(t, alive)
	assert.Equal(t, st, owner)

	st.Close()
	_, alive = p.Station()
	assert.False(t, alive)
	assert.Error(t, p.Transmit(CauseSpontaneous, QualifierNone))
}
