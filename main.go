package main

import (
	"strconv"

	dm "github.com/baetyl/baetyl-go/v2/dmcontext"
	"github.com/baetyl/baetyl-go/v2/utils"
	"gopkg.in/yaml.v2"

	"github.com/baetyl/baetyl-iec104/baetyl-iec104"
)

func main() {
	dm.Run(func(ctx dm.Context) error {
		cfg, err := genConfig(ctx)
		if err != nil {
			return err
		}
		drv, err := baetyl_iec104.NewIEC104(ctx, cfg)
		if err != nil {
			return err
		}
		defer drv.Close()
		ctx.Wait()
		return nil
	})
}

func genConfig(ctx dm.Context) (*baetyl_iec104.Config, error) {
	cfg := &baetyl_iec104.Config{}
	var slaves []baetyl_iec104.SlaveConfig
	var jobs []baetyl_iec104.Job

	// generate slave
	var slave baetyl_iec104.SlaveConfig
	if err := yaml.Unmarshal([]byte(ctx.GetDriverConfig()), &slave); err != nil {
		return nil, err
	}

	// generate job
	for _, devInfo := range ctx.GetAllDevices() {
		accessConfig := devInfo.AccessConfig
		if accessConfig.Custom == nil {
			continue
		}
		slave.Device = devInfo.Name
		var job baetyl_iec104.Job
		if err := yaml.Unmarshal([]byte(*accessConfig.Custom), &job); err != nil {
			return nil, err
		}
		job.Interval = slave.Interval
		job.Device = slave.Device
		if job.CommonAddress == 0 {
			job.CommonAddress = slave.CommonAddress
		}

		// generate jobMap
		jobMaps := make(map[string]baetyl_iec104.Property)
		devTpl, err := ctx.GetAccessTemplates(&devInfo)
		if err != nil {
			return nil, err
		}
		if devTpl != nil && devTpl.Properties != nil && len(devTpl.Properties) > 0 {
			for _, prop := range devTpl.Properties {
				if visitor := prop.Visitor.Custom; visitor != nil {
					var jobMap baetyl_iec104.Property
					if err := yaml.Unmarshal([]byte(*visitor), &jobMap); err != nil {
						return nil, err
					}
					jobMap.Id = prop.Id
					jobMap.Name = prop.Name
					jobMap.Type = prop.Type
					jobMap.Mode = prop.Mode
					jobMaps[strconv.FormatUint(uint64(jobMap.IOA), 10)] = jobMap
				}
			}
		}
		slaves = append(slaves, slave)
		job.Properties = jobMaps
		jobs = append(jobs, job)
	}
	cfg.Jobs = jobs
	cfg.Slaves = slaves
	if err := utils.SetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
