package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SchedulerTuning controls batch job cadence. Loaded from an optional
// scheduler.yml so operators can retune jobs without a rebuild.
type SchedulerTuning struct {
	RunIntervalSeconds int      `mapstructure:"runIntervalSeconds"`
	JobTimeoutSeconds  int      `mapstructure:"jobTimeoutSeconds"`
	BatchSize          int      `mapstructure:"batchSize"`
	EnabledJobs        []string `mapstructure:"enabledJobs"`
}

func DefaultSchedulerTuning() SchedulerTuning {
	return SchedulerTuning{
		RunIntervalSeconds: 60,
		JobTimeoutSeconds:  30,
		BatchSize:          50,
	}
}

type SchedulerTuningHolder struct {
	current atomic.Value // holds SchedulerTuning
}

func NewSchedulerTuningHolder() (*SchedulerTuningHolder, error) {
	v := viper.New()

	v.SetConfigName("scheduler")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/docbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultSchedulerTuning()
		v.SetDefault("scheduler.runIntervalSeconds", defaults.RunIntervalSeconds)
		v.SetDefault("scheduler.jobTimeoutSeconds", defaults.JobTimeoutSeconds)
		v.SetDefault("scheduler.batchSize", defaults.BatchSize)
	}

	var tuning SchedulerTuning
	if err := v.UnmarshalKey("scheduler", &tuning); err != nil {
		return nil, err
	}
	if err := validateSchedulerTuning(tuning); err != nil {
		return nil, err
	}

	holder := &SchedulerTuningHolder{}
	holder.current.Store(tuning)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SchedulerTuning
		if err := v.UnmarshalKey("scheduler", &updated); err != nil {
			log.Printf("[scheduler-config] reload failed: %v", err)
			return
		}
		if err := validateSchedulerTuning(updated); err != nil {
			log.Printf("[scheduler-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[scheduler-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticSchedulerTuningHolder wraps fixed tuning values with no file
// watching, for tests and one-shot tools.
func NewStaticSchedulerTuningHolder(tuning SchedulerTuning) *SchedulerTuningHolder {
	holder := &SchedulerTuningHolder{}
	holder.current.Store(tuning)
	return holder
}

func (h *SchedulerTuningHolder) Get() SchedulerTuning {
	return h.current.Load().(SchedulerTuning)
}

func validateSchedulerTuning(tuning SchedulerTuning) error {
	if tuning.RunIntervalSeconds < 0 || tuning.JobTimeoutSeconds < 0 || tuning.BatchSize < 0 {
		return errors.New("scheduler tuning values cannot be negative")
	}
	return nil
}
