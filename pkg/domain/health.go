package domain

import "time"

// HealthEvent is one liveness/health change observed by the watch agent.
//
// ExitCode is present only on death reports; Complete does not require it.
type HealthEvent struct {
	ContainerId string `json:"id"`
	Appname     string `json:"appname"`
	Alive       *bool  `json:"alive"`
	Healthy     *bool  `json:"healthy"`
	ExitCode    *int   `json:"exitCode,omitempty"`
}

// Complete reports whether every field is present.
// Incomplete events are discarded by the reconcile loop.
func (ev HealthEvent) Complete() bool {
	return ev.ContainerId != "" && ev.Appname != "" && ev.Alive != nil && ev.Healthy != nil
}

// HealthSample is one point of the rolling health window of a container,
// evaluated by tackle situation expressions.
type HealthSample struct {
	ContainerId string
	At          time.Time
	Alive       bool
	Healthy     bool
}
