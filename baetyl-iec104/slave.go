package baetyl_iec104

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	dm "github.com/baetyl/baetyl-go/v2/dmcontext"
	"github.com/baetyl/baetyl-go/v2/errors"
	"github.com/baetyl/baetyl-go/v2/log"
	"github.com/thinkgos/go-iecp5/asdu"
	"github.com/thinkgos/go-iecp5/cs104"

	"github.com/baetyl/baetyl-iec104/iec104"
)

// Slave holds the controlled station image of one remote device together
// with the client link carrying it.
type Slave struct {
	info    *dm.DeviceInfo
	cfg     SlaveConfig
	station *iec104.Station
	client  *cs104.Client
	log     *log.Logger

	connected atomic.Bool
	mu        sync.Mutex
	waiters   map[uint32]chan struct{}
}

func NewSlave(info *dm.DeviceInfo, cfg SlaveConfig) (*Slave, error) {
	slave := &Slave{
		info:    info,
		cfg:     cfg,
		log:     log.L().With(log.Any("slave", cfg.Device)),
		waiters: make(map[uint32]chan struct{}),
	}
	slave.station = iec104.NewStation(cfg.CommonAddress, iec104.RoleClient, slave)
	slave.station.SetReadTimeout(cfg.ReadTimeout)

	option := cs104.NewOption()
	option.SetAutoReconnect(true)
	option.SetReconnectInterval(5 * time.Second)
	if err := option.AddRemoteServer(fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)); err != nil {
		return nil, errors.Trace(err)
	}

	slave.client = cs104.NewClient(slave, option)
	slave.client.LogMode(false)
	slave.client.SetOnConnectHandler(func(client *cs104.Client) {
		slave.connected.Store(true)
		slave.log.Info("connected to server", log.Any("address", cfg.Address), log.Any("port", cfg.Port))
		client.SendStartDt()
	})
	slave.client.SetConnectionLostHandler(func(client *cs104.Client) {
		slave.connected.Store(false)
		slave.log.Warn("connection to server lost", log.Any("address", cfg.Address), log.Any("port", cfg.Port))
	})

	if err := slave.client.Start(); err != nil {
		return nil, errors.Trace(err)
	}
	return slave, nil
}

// AddPoint registers a point of the remote station image from a property
// visitor configuration.
func (s *Slave) AddPoint(prop Property) (*iec104.Point, error) {
	opts := iec104.PointOptions{
		IOA:  prop.IOA,
		Type: iec104.TypeID(prop.TypeID),
	}
	if iec104.TypeID(prop.TypeID).IsControl() && prop.CommandMode == "select" {
		opts.CommandMode = iec104.SelectAndExecuteCommand
	}
	return s.station.AddPoint(opts)
}

func (s *Slave) Close() error {
	s.station.Close()
	s.client.Close()
	return nil
}

// Connected reports whether the station link is up.
func (s *Slave) Connected() bool {
	return s.connected.Load()
}

// Send maps an outgoing command report onto the matching ASDU. Points in
// select mode transmit the select command first and the execute command
// after the configured delay.
func (s *Slave) Send(r iec104.Report) error {
	if !s.connected.Load() {
		return errors.New("no connection to server")
	}
	if !r.Type.IsControl() {
		return errors.New("only control points transmit from the client side")
	}
	selectFirst := false
	if point := s.station.GetPoint(r.IOA); point != nil {
		selectFirst = point.CommandMode() == iec104.SelectAndExecuteCommand
	}
	coa := asdu.CauseOfTransmission{Cause: asdu.Activation}
	ca := asdu.CommonAddr(s.cfg.CommonAddress)

	switch r.Value.Kind() {
	case iec104.KindSingle:
		if selectFirst {
			err := asdu.SingleCmd(s.client, asdu.C_SC_NA_1, coa, ca, asdu.SingleCommandInfo{
				Ioa:   asdu.InfoObjAddr(r.IOA),
				Value: r.Value.Single(),
				Qoc:   asdu.QualifierOfCommand{InSelect: true},
			})
			if err != nil {
				return errors.Trace(err)
			}
			time.Sleep(s.cfg.SelectDelay)
		}
		err := asdu.SingleCmd(s.client, asdu.C_SC_NA_1, coa, ca, asdu.SingleCommandInfo{
			Ioa:   asdu.InfoObjAddr(r.IOA),
			Value: r.Value.Single(),
		})
		return errors.Trace(err)
	case iec104.KindMeasured:
		err := asdu.SetpointCmdFloat(s.client, asdu.C_SE_NC_1, coa, ca, asdu.SetpointCommandFloatInfo{
			Ioa:   asdu.InfoObjAddr(r.IOA),
			Value: float32(r.Value.Measured()),
		})
		return errors.Trace(err)
	default:
		return errors.New(fmt.Sprintf("unsupported command kind %s", r.Value.Kind()))
	}
}

// RequestRead issues a read command for one address and waits until the
// remote station answers with a value for it.
func (s *Slave) RequestRead(ioa uint32, timeout time.Duration) error {
	if !s.connected.Load() {
		return errors.New("no connection to server")
	}
	ch := s.addWaiter(ioa)
	defer s.removeWaiter(ioa)

	coa := asdu.CauseOfTransmission{Cause: asdu.Request}
	if err := asdu.ReadCmd(s.client, coa, asdu.CommonAddr(s.cfg.CommonAddress), asdu.InfoObjAddr(ioa)); err != nil {
		return errors.Trace(err)
	}
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return errors.New(fmt.Sprintf("read of information object %d timed out", ioa))
	}
}

func (s *Slave) addWaiter(ioa uint32) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.waiters[ioa] = ch
	return ch
}

func (s *Slave) removeWaiter(ioa uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, ioa)
}

func (s *Slave) notifyWaiter(ioa uint32) {
	s.mu.Lock()
	ch := s.waiters[ioa]
	s.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Slave) InterrogationHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (s *Slave) CounterInterrogationHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (s *Slave) ReadHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (s *Slave) TestCommandHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (s *Slave) ClockSyncHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (s *Slave) ResetProcessHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (s *Slave) DelayAcquisitionHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

// ASDUHandler feeds monitoring information received from the remote
// station into the point image.
func (s *Slave) ASDUHandler(client asdu.Connect, a *asdu.ASDU) error {
	if a.CommonAddr != asdu.CommonAddr(s.cfg.CommonAddress) {
		return nil
	}
	cause := iec104.Cause(a.Identifier.Coa.Cause)
	originator := uint8(a.Identifier.OrigAddr)
	switch a.Identifier.Type {
	case asdu.M_SP_NA_1, asdu.M_SP_TB_1:
		for _, d := range a.GetSinglePoint() {
			s.dispatch(uint32(d.Ioa), iec104.M_SP_NA_1, iec104.SingleValue(d.Value),
				qualityFromQds(d.Qds), cause, originator)
		}
	case asdu.M_ME_NC_1, asdu.M_ME_TF_1:
		for _, d := range a.GetMeasuredValueFloat() {
			s.dispatch(uint32(d.Ioa), iec104.M_ME_NC_1, iec104.MeasuredValue(float64(d.Value)),
				qualityFromQds(d.Qds), cause, originator)
		}
	case asdu.M_ME_NA_1, asdu.M_ME_ND_1:
		for _, d := range a.GetMeasuredValueNormal() {
			s.dispatch(uint32(d.Ioa), iec104.M_ME_NA_1, iec104.MeasuredValue(float64(d.Value)),
				qualityFromQds(d.Qds), cause, originator)
		}
	case asdu.M_ME_NB_1:
		for _, d := range a.GetMeasuredValueScaled() {
			s.dispatch(uint32(d.Ioa), iec104.M_ME_NB_1, iec104.MeasuredValue(float64(d.Value)),
				qualityFromQds(d.Qds), cause, originator)
		}
	default:
		s.log.Debug("unhandled asdu type", log.Any("type", a.Identifier.Type.String()))
	}
	return nil
}

func (s *Slave) dispatch(ioa uint32, t iec104.TypeID, v iec104.Value, q iec104.Quality, c iec104.Cause, originator uint8) {
	point := s.station.GetPoint(ioa)
	if point == nil {
		return
	}
	msg := &iec104.IncomingMessage{
		Originator:    originator,
		CommonAddress: s.cfg.CommonAddress,
		IOA:           ioa,
		Type:          t,
		Cause:         c,
		Value:         v,
		Quality:       q,
	}
	if point.OnReceive(msg) == iec104.ResponseSuccess {
		s.notifyWaiter(ioa)
	}
}

func qualityFromQds(qds asdu.QualityDescriptor) iec104.Quality {
	q := iec104.QualityGood
	if qds&asdu.QDSOverflow != 0 {
		q = q.With(iec104.QualityOverflow)
	}
	if qds&asdu.QDSBlocked != 0 {
		q = q.With(iec104.QualityBlocked)
	}
	if qds&asdu.QDSSubstituted != 0 {
		q = q.With(iec104.QualitySubstituted)
	}
	if qds&asdu.QDSNotTopical != 0 {
		q = q.With(iec104.QualityNonTopical)
	}
	if qds&asdu.QDSInvalid != 0 {
		q = q.With(iec104.QualityInvalid)
	}
	return q
}
