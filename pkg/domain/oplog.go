package domain

import "time"

// OpType tags audit log entries by the operation performed.
type OpType string

const (
	OpCreateContainer OpType = "create-container"
	OpRemoveContainer OpType = "remove-container"
	OpBuildImage      OpType = "build-image"
)

// OpLog is one audit record. Detail is operation-specific JSON.
type OpLog struct {
	Actor   string
	OpType  OpType
	Appname string
	Commit  string
	Detail  map[string]interface{}
	At      time.Time
}
