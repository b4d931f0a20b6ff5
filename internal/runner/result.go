package runner

import "time"

// Result describes one completed execution.
type Result struct {
	RunID     string        `json:"run_id"`               // unique identifier for this execution
	Command   string        `json:"command"`              // command text as executed
	Dir       string        `json:"dir,omitempty"`        // expanded working directory
	ExitCode  int           `json:"exit_code"`            // -signum if killed by a signal
	Signal    string        `json:"signal,omitempty"`     // e.g. SIGKILL
	OutputLog []string      `json:"output_log,omitempty"` // nil unless buffering was requested
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

// Passed reports whether the execution exited with want.
func (r *Result) Passed(want int) bool {
	return r.ExitCode == want
}
