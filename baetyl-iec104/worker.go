package baetyl_iec104

import (
	dm "github.com/baetyl/baetyl-go/v2/dmcontext"
	"github.com/baetyl/baetyl-go/v2/errors"
	"github.com/baetyl/baetyl-go/v2/log"
	v1 "github.com/baetyl/baetyl-go/v2/spec/v1"
)

type Worker struct {
	job   Job
	slave *Slave
	ctx   dm.Context
	log   *log.Logger
}

func NewWorker(job Job, slave *Slave, ctx dm.Context, log *log.Logger) *Worker {
	return &Worker{
		job:   job,
		slave: slave,
		ctx:   ctx,
		log:   log,
	}
}

// Execute collects the current point image and reports it upstream. Values
// with bad quality or without a received value yet are left out.
func (w *Worker) Execute() error {
	temp := make(map[string]interface{})
	for _, prop := range w.job.Properties {
		point := w.slave.station.GetPoint(prop.IOA)
		if point == nil {
			continue
		}
		info := point.Info()
		if info.UpdatedAt == 0 {
			continue
		}
		if !info.Quality.IsGood() {
			w.log.Warn("skipping value with bad quality",
				log.Any("ioa", prop.IOA), log.Any("quality", info.Quality.FlagString()))
			continue
		}
		temp[prop.Name] = info.Value.Native()
	}

	r := v1.Report{}
	accessTemplate, err := w.ctx.GetAccessTemplates(w.slave.info)
	if err != nil {
		return errors.Trace(err)
	}
	for _, model := range accessTemplate.Mappings {
		args := make(map[string]interface{})
		params, err := dm.ParseExpression(model.Expression)
		if err != nil {
			return errors.Trace(err)
		}
		for _, param := range params {
			id := param[1:]
			mappingName, err := getMappingName(id, accessTemplate)
			if err != nil {
				return errors.Trace(err)
			}
			args[param] = temp[mappingName]
		}
		modelValue, err := dm.ExecExpression(model.Expression, args, model.Type)
		if err != nil {
			return errors.Trace(err)
		}
		r[model.Attribute] = modelValue
	}

	if err := w.ctx.ReportDeviceProperties(w.slave.info, r); err != nil {
		return errors.Trace(err)
	}
	return nil
}
