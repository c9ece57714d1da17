package baetyl_iec104

import "time"

type Config struct {
	Slaves []SlaveConfig `yaml:"slaves" json:"slaves"`
	Jobs   []Job         `yaml:"jobs" json:"jobs"`
}

type SlaveConfig struct {
	Device        string        `yaml:"device" json:"device"`
	Address       string        `yaml:"address" json:"address"`
	Port          int           `yaml:"port" json:"port" default:"2404"`
	CommonAddress uint16        `yaml:"commonAddress" json:"commonAddress" default:"1"`
	Interval      time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	ReadTimeout   time.Duration `yaml:"readTimeout" json:"readTimeout" default:"5s"`
	SelectDelay   time.Duration `yaml:"selectDelay" json:"selectDelay" default:"200ms"`
}

type Job struct {
	Device        string              `yaml:"device" json:"device"`
	CommonAddress uint16              `yaml:"commonAddress" json:"commonAddress"`
	Interval      time.Duration       `yaml:"interval" json:"interval" default:"15s"`
	Properties    map[string]Property `yaml:"properties" json:"properties"`
}

type Property struct {
	Id   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
	Mode string `yaml:"mode" json:"mode"`

	IOA         uint32 `yaml:"ioa" json:"ioa"`
	TypeID      uint8  `yaml:"typeId" json:"typeId"`
	CommandMode string `yaml:"commandMode" json:"commandMode"`
}
