package logfields

import (
	"fmt"
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyWorkflow    = "workflow"
	KeyTarget      = "target"
	KeyCodename    = "codename"
	KeyArtifact    = "artifact"
	KeyDestination = "destination"
	KeyAddress     = "address"
	KeyCategory    = "category"
	KeyCommand     = "command"
	KeyExitCode    = "exit_code"
	KeyPath        = "path"
	KeySize        = "size"
	KeyChecksum    = "md5sum"
	KeyDurationMS  = "duration_ms"
	KeyDuration    = "duration"
	KeyScheduleID  = "schedule_id"
	KeyStatus      = "status"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr          { return slog.String(KeyRunID, id) }
func Workflow(w string) slog.Attr        { return slog.String(KeyWorkflow, w) }
func Target(t string) slog.Attr          { return slog.String(KeyTarget, t) }
func Codename(c string) slog.Attr        { return slog.String(KeyCodename, c) }
func Artifact(name string) slog.Attr     { return slog.String(KeyArtifact, name) }
func Destination(kind string) slog.Attr  { return slog.String(KeyDestination, kind) }
func Address(addr string) slog.Attr      { return slog.String(KeyAddress, addr) }
func Category(c string) slog.Attr        { return slog.String(KeyCategory, c) }
func Command(c string) slog.Attr         { return slog.String(KeyCommand, c) }
func ExitCode(code int) slog.Attr        { return slog.Int(KeyExitCode, code) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Size(n int64) slog.Attr             { return slog.Int64(KeySize, n) }
func Checksum(sum string) slog.Attr      { return slog.String(KeyChecksum, sum) }
func ScheduleID(id string) slog.Attr     { return slog.String(KeyScheduleID, id) }
func Status(s string) slog.Attr          { return slog.String(KeyStatus, s) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Duration(d time.Duration) slog.Attr { return slog.String(KeyDuration, Pretty(d)) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Pretty renders a duration the way run reports show it: whole seconds, with
// hours and minutes spelled out once they are non-zero ("1h 02m 05s").
func Pretty(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
