package config

import (
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/normalization"
)

// Workflow selects how a run lays out destinations and what it runs before building.
type Workflow string

const (
	WorkflowNightly Workflow = "nightly"
	WorkflowRelease Workflow = "release"
)

var workflowNormalizer = normalization.NewNormalizer("workflow", map[string]Workflow{
	"nightly": WorkflowNightly,
	"release": WorkflowRelease,
}, WorkflowNightly)

// ParseWorkflow validates a workflow name; empty means nightly.
func ParseWorkflow(raw string) (Workflow, error) {
	return workflowNormalizer.Parse(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer("log level", map[string]LogLevel{
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer("log format", map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}
