package diagnostics

import "time"

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

const (
	CodeDriverFlush = "DRIVER.FLUSH"
	CodeSleepDone   = "MODE.SLEEP_DONE"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// DriverFlush reports a frame the driver failed to push.
func DriverFlush(err error, driver string) Diagnostic {
	return Diagnostic{
		Time:     time.Now(),
		Severity: Warn,
		Code:     CodeDriverFlush,
		Summary:  "Frame not flushed to the strip",
		Detail:   err.Error(),
		LikelyCauses: []string{
			"SPI/PWM device busy or unplugged",
			"insufficient permissions on the device node",
		},
		SuggestedFixes: []string{"check wiring and power", "run with driver=sim to isolate hardware"},
		Evidence:       map[string]any{"driver": driver},
	}
}

// SleepDone reports that a Sleep fade finished and the strip went dark.
func SleepDone() Diagnostic {
	return Diagnostic{
		Time:     time.Now(),
		Severity: Info,
		Code:     CodeSleepDone,
		Summary:  "Sleep cycle complete, strip switched off",
	}
}
