package crmquery

import (
	"time"

	"dibs-assistant/internal/common/config"
)

type Config struct {
	Timeout    time.Duration
	MaxRecords int
}

func LoadConfig(wcfg config.WorkerConfig, crm config.CRMConfig) *Config {
	c := &Config{
		Timeout:    config.GetDuration(wcfg.Timeout),
		MaxRecords: crm.MaxRecordsShow,
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}
