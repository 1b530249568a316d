package core

// Message is one element of a remote-operation result stream.
//
// A stream is ordered, but not sorted by subject: the final outcome for a
// given subject id is the last message referencing it.
type Message struct {
	// subject id: container id, or build id for build streams.
	Id string `json:"id"`

	Success bool `json:"success"`

	// in-progress / finished / error, meaningful for build streams.
	Status string `json:"status,omitempty"`

	// human-readable error text. see pkg/tasks/remove for classification.
	Error string `json:"error,omitempty"`

	// placement, present on create results.
	Podname  string `json:"podname,omitempty"`
	Nodename string `json:"nodename,omitempty"`

	// build progress payload. On a finished build message this is the
	// resulting image tag.
	Progress string `json:"progress,omitempty"`

	Publish map[string]string `json:"publish,omitempty"`
}

const (
	StatusInProgress = "in-progress"
	StatusFinished   = "finished"
	StatusError      = "error"
)

// BuildRequest asks the core to build an image for (repo, commit).
type BuildRequest struct {
	Repo        string `json:"repo"`
	Commit      string `json:"commit"`
	RequesterId string `json:"requesterId"`
	ArtifactRef string `json:"artifactRef,omitempty"`
}

// RemoveRequest names containers to remove. Ids are full ids.
type RemoveRequest struct {
	Ids []string `json:"ids"`
}
