package domain

import (
	"fmt"
)

// OverrideStatus is an operator-forced status on a container,
// taking precedence over whatever the scheduler reports.
type OverrideStatus int

const (
	// no override. status is derived from health info.
	OverrideNone OverrideStatus = iota

	// container is deployed for debugging. keep it out of load balancers.
	OverrideDebug

	// removal is in progress. the record disappears when the core confirms.
	OverrideRemoving
)

func (s OverrideStatus) String() string {
	switch s {
	case OverrideNone:
		return "none"
	case OverrideDebug:
		return "debug"
	case OverrideRemoving:
		return "removing"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

func AsOverrideStatus(s string) (OverrideStatus, error) {
	switch s {
	case "none":
		return OverrideNone, nil
	case "debug":
		return OverrideDebug, nil
	case "removing":
		return OverrideRemoving, nil
	}
	return OverrideNone, fmt.Errorf("unknown override status: %s", s)
}

// HealthInfo is the last state reported by the watch agent.
//
// It is written by the reconcile loop only. Everything else must read it
// fresh from the store, never from an in-process copy.
type HealthInfo struct {
	Running  bool              `json:"running"`
	Healthy  bool              `json:"healthy"`
	ExitCode *int              `json:"exitCode,omitempty"`
	Publish  map[string]string `json:"publish,omitempty"`
}

// Container is a placed workload instance.
//
// ContainerId is assigned by the core scheduler and globally unique.
// Revision backs optimistic concurrency control: updates name the revision
// they read, and lose (Conflict) when someone else got there first.
type Container struct {
	ContainerId    string
	Appname        string
	Commit         string
	ComboName      string
	EntrypointName string
	Envname        string
	CpuQuota       float64
	Memory         int64
	Zone           string
	Podname        string
	Nodename       string
	OverrideStatus OverrideStatus
	Initialized    bool
	Health         HealthInfo
	Revision       int
}

func (c Container) ShortId() string {
	if len(c.ContainerId) <= 7 {
		return c.ContainerId
	}
	return c.ContainerId[:7]
}

func (c Container) ShortCommit() string {
	if len(c.Commit) <= 7 {
		return c.Commit
	}
	return c.Commit[:7]
}

func (c Container) IsRemoving() bool {
	return c.OverrideStatus == OverrideRemoving
}

func (c Container) IsDebug() bool {
	return c.OverrideStatus == OverrideDebug
}

// Status derives the user-facing status of this container.
func (c Container) Status() string {
	if c.IsDebug() {
		return "debug"
	}
	if c.IsRemoving() {
		return "removing"
	}
	if !c.Health.Running {
		return "dead"
	}
	if !c.Health.Healthy {
		return "sick"
	}
	return "running"
}

func (c Container) String() string {
	return fmt.Sprintf(
		"<container %s:%s:%s:%s:%s>",
		c.Zone, c.Appname, c.ShortCommit(), c.EntrypointName, c.ShortId(),
	)
}

// ContainerFindQuery filters containers. Zero-value fields do not filter.
type ContainerFindQuery struct {
	Appname        string
	Commit         string // prefix match
	EntrypointName string
	Zone           string
}
