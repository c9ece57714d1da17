package baetyl_iec104

import (
	"errors"
	"time"

	dm "github.com/baetyl/baetyl-go/v2/dmcontext"
	v2log "github.com/baetyl/baetyl-go/v2/log"
	"github.com/baetyl/baetyl-go/v2/spec/v1"

	"github.com/baetyl/baetyl-iec104/iec104"
)

type IEC104 struct {
	ctx    dm.Context
	log    *v2log.Logger
	cfg    *Config
	slaves map[string]*Slave
	ws     map[string]*Worker
}

func NewIEC104(ctx dm.Context, cfg *Config) (*IEC104, error) {
	log := ctx.Log().With(v2log.Any("module", "baetyl-iec104"))
	infos := make(map[string]dm.DeviceInfo)
	for _, info := range ctx.GetAllDevices() {
		infos[info.Name] = info
	}
	slaves := make(map[string]*Slave)
	for _, sCfg := range cfg.Slaves {
		if info, ok := infos[sCfg.Device]; ok {
			slave, err := NewSlave(&info, sCfg)
			if err != nil {
				log.Error("failed to create slave instance", v2log.Any("device", sCfg.Device), v2log.Error(err))
				continue
			}
			ctx.Online(&info)
			slaves[sCfg.Device] = slave
		}
	}
	ws := make(map[string]*Worker)
	for _, job := range cfg.Jobs {
		slave := slaves[job.Device]
		if slave == nil {
			log.Error("device of job not exist", v2log.Any("device", job.Device))
			continue
		}
		for _, prop := range job.Properties {
			if _, err := slave.AddPoint(prop); err != nil {
				log.Error("failed to add point", v2log.Any("device", job.Device),
					v2log.Any("ioa", prop.IOA), v2log.Error(err))
			}
		}
		ws[job.Device] = NewWorker(job, slave, ctx, log)
	}
	drv := &IEC104{
		ctx:    ctx,
		log:    log,
		cfg:    cfg,
		slaves: slaves,
		ws:     ws,
	}
	if err := ctx.RegisterDeltaCallback(drv.DeltaCallback); err != nil {
		return nil, err
	}
	if err := ctx.RegisterPropertyGetCallback(drv.PropertyGetCallback); err != nil {
		return nil, err
	}
	for _, worker := range ws {
		go drv.working(worker)
	}
	return drv, nil
}

func (d *IEC104) working(w *Worker) {
	ticker := time.NewTicker(w.job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := w.Execute()
			if err != nil {
				d.log.Error("failed to execute job", v2log.Error(err))
			}
		case <-d.ctx.WaitChan():
			d.log.Warn("worker stopped", v2log.Any("device", w.job.Device))
			return
		}
	}
}

func (d *IEC104) Close() error {
	for _, slave := range d.slaves {
		if err := slave.Close(); err != nil {
			d.log.Warn("failed to close slave", v2log.Error(err))
		}
	}
	return nil
}

// DeltaCallback writes desired property changes to the remote station as
// commands on the matching control points.
func (d *IEC104) DeltaCallback(info *dm.DeviceInfo, delta v1.Delta) error {
	w, ok := d.ws[info.Name]
	if !ok {
		d.log.Warn("worker not exist according to device", v2log.Any("device", info.Name))
		return errors.New("worker not exist")
	}
	accessTemplate, err := w.ctx.GetAccessTemplates(info)
	if err != nil {
		d.log.Warn("get access template err", v2log.Any("device", info.Name))
		return err
	}
	for key, val := range delta {
		id, err := getConfigIdByModelName(key, accessTemplate)
		if id == "" || err != nil {
			d.log.Warn("prop not exist", v2log.Any("name", key))
			continue
		}
		propName, err := getMappingName(id, accessTemplate)
		if err != nil {
			d.log.Warn("prop name not exist", v2log.Any("id", id))
			continue
		}

		for _, prop := range w.job.Properties {
			if propName != prop.Name {
				continue
			}
			point := w.slave.station.GetPoint(prop.IOA)
			if point == nil {
				continue
			}
			value, err := commandValue(point.Type(), val)
			if err != nil {
				return err
			}
			if err := point.SetInfo(value, iec104.QualityGood); err != nil {
				return err
			}
			if err := point.Transmit(iec104.CauseActivation, iec104.QualifierNone); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *IEC104) PropertyGetCallback(info *dm.DeviceInfo, properties []string) error {
	w, ok := d.ws[info.Name]
	if !ok {
		d.log.Warn("worker not exist according to device", v2log.Any("device", info.Name))
		return errors.New("worker not exist")
	}
	if err := w.Execute(); err != nil {
		return err
	}
	return nil
}
