package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
)

func fmtDomainErr(domain string, err error) error {
	return errors.WrapError(err, errors.CategoryConfig, fmt.Sprintf("apply %s defaults", domain)).Fatal().Build()
}

// ValidateConfig checks values that defaults cannot repair. Destinations are
// not validated here; whether any resolves is decided once flags and
// environment have been layered on top.
func ValidateConfig(cfg *Config) error {
	if port := cfg.Destinations.Remote.Port; port != "" {
		if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
			return errors.ValidationError("destinations.remote.port must be a TCP port").
				WithContext("port", port).Build()
		}
	}

	for i, ex := range cfg.Triage.Extractors {
		if ex.Label == "" || ex.Pattern == "" {
			return errors.ValidationError("triage extractor needs label and pattern").
				WithContext("index", i).Build()
		}
		if ex.Before < 0 || ex.After < 0 {
			return errors.ValidationError("triage extractor context must not be negative").
				WithContext("label", ex.Label).Build()
		}
		if _, err := regexp.Compile(ex.Pattern); err != nil {
			return errors.WrapError(err, errors.CategoryValidation, "invalid triage pattern").
				Fatal().WithContext("label", ex.Label).Build()
		}
	}

	w, err := ParseWorkflow(string(cfg.Daemon.Workflow))
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid daemon.workflow").Fatal().Build()
	}
	cfg.Daemon.Workflow = w
	if cfg.Daemon.Interval != "" {
		d, err := time.ParseDuration(cfg.Daemon.Interval)
		if err != nil || d <= 0 {
			return errors.ValidationError("daemon.interval must be a positive duration").
				WithContext("interval", cfg.Daemon.Interval).Build()
		}
	}
	return nil
}
