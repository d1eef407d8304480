package config

import (
	"fmt"
	"runtime"

	"github.com/fluxorio/workpool/pkg/core/concurrency"
)

// MaxWorkers bounds pool.workers in settings files
const MaxWorkers = 4096

// PoolSettings is the on-disk shape of a worker pool deployment
type PoolSettings struct {
	Pool struct {
		Name         string `yaml:"name" json:"name"`
		Workers      int    `yaml:"workers" json:"workers"` // 0 means one per CPU
		DrainPolicy  string `yaml:"drain_policy" json:"drain_policy"`
		LockOSThread bool   `yaml:"lock_os_thread" json:"lock_os_thread"`
		Debug        bool   `yaml:"debug" json:"debug"`
	} `yaml:"pool" json:"pool"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Addr    string `yaml:"addr" json:"addr"`
	} `yaml:"metrics" json:"metrics"`

	Tracing struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
		Pretty  bool `yaml:"pretty" json:"pretty"`
	} `yaml:"tracing" json:"tracing"`
}

// DefaultPoolSettings returns settings used when no file is given
func DefaultPoolSettings() PoolSettings {
	var s PoolSettings
	s.Pool.Name = "workpool"
	s.Pool.DrainPolicy = concurrency.DrainAll.String()
	s.Metrics.Addr = ":9102"
	return s
}

// LoadPoolSettings starts from DefaultPoolSettings, overlays path (if any)
// and PREFIX_* environment variables, then validates the result.
func LoadPoolSettings(path, prefix string) (PoolSettings, error) {
	s := DefaultPoolSettings()
	if err := LoadWithEnv(path, prefix, &s); err != nil {
		return s, err
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks worker bounds and the drain policy name
func (s *PoolSettings) Validate() error {
	return Validate(s,
		RangeValidator("Pool.Workers", 0, MaxWorkers),
		ValidatorFunc(func(interface{}) error {
			_, err := concurrency.ParseDrainPolicy(s.Pool.DrainPolicy)
			return err
		}),
		ValidatorFunc(func(interface{}) error {
			if s.Metrics.Enabled && s.Metrics.Addr == "" {
				return fmt.Errorf("metrics.addr is required when metrics are enabled")
			}
			return nil
		}),
	)
}

// WorkerPoolConfig converts the settings into a pool configuration.
// Logger, Observer and Tracer are left for the caller to fill in.
func (s *PoolSettings) WorkerPoolConfig() (concurrency.WorkerPoolConfig, error) {
	if err := s.Validate(); err != nil {
		return concurrency.WorkerPoolConfig{}, err
	}

	policy, err := concurrency.ParseDrainPolicy(s.Pool.DrainPolicy)
	if err != nil {
		return concurrency.WorkerPoolConfig{}, err
	}

	workers := s.Pool.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return concurrency.WorkerPoolConfig{
		Name:         s.Pool.Name,
		Workers:      workers,
		DrainPolicy:  policy,
		LockOSThread: s.Pool.LockOSThread,
	}, nil
}
