package config

import (
	"errors"
	"fmt"
)

// Validation range constants.
const (
	minWorkerCount = 1
	maxWorkerCount = 256
	minQueryTimeout = 1
	minHealthCheck  = 0 // 0 disables the periodic health-check timer
)

// Validate checks all configuration values and returns every error found,
// joined with errors.Join, so a caller sees the complete validation report
// in one pass instead of fixing errors one at a time.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.SchemaClass == "" {
		errs = append(errs, errors.New("config: schema_class must not be empty"))
	}

	if cfg.ConnectInfo.Driver == "" {
		errs = append(errs, errors.New("config: connect.driver must not be empty"))
	}

	if cfg.ConnectInfo.DSN == "" {
		errs = append(errs, errors.New("config: connect.dsn must not be empty"))
	}

	if cfg.WorkerCount < minWorkerCount || cfg.WorkerCount > maxWorkerCount {
		errs = append(errs, fmt.Errorf(
			"config: worker_count must be between %d and %d, got %d",
			minWorkerCount, maxWorkerCount, cfg.WorkerCount))
	}

	if cfg.QueryTimeoutSecs < minQueryTimeout {
		errs = append(errs, fmt.Errorf(
			"config: query_timeout_seconds must be >= %d, got %d",
			minQueryTimeout, cfg.QueryTimeoutSecs))
	}

	if cfg.CacheTTLSecs < 0 {
		errs = append(errs, errors.New("config: cache_ttl_seconds must not be negative"))
	}

	if cfg.HealthCheckSecs < minHealthCheck {
		errs = append(errs, errors.New("config: health_check_interval_seconds must not be negative"))
	}

	errs = append(errs, validateRetry(&cfg.Retry)...)

	return errors.Join(errs...)
}

func validateRetry(r *RetryPolicy) []error {
	if !r.Enabled {
		return nil
	}

	var errs []error

	if r.MaxRetries < 0 {
		errs = append(errs, errors.New("config: retry.max_retries must not be negative"))
	}

	if r.Factor <= 0 {
		errs = append(errs, errors.New("config: retry.factor must be positive"))
	}

	return errs
}
