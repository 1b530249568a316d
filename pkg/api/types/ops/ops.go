// Package ops declares the request and response bodies of the operation
// APIs.
package ops

// DeployRequest asks for containers of one combo of a built release.
type DeployRequest struct {
	Appname string `json:"appname"`
	Commit  string `json:"commit"`
	Combo   string `json:"combo"`

	// overrides. zero values defer to the combo.
	Count    int    `json:"count,omitempty"`
	Zone     string `json:"zone,omitempty"`
	Envname  string `json:"envname,omitempty"`
	Nodename string `json:"nodename,omitempty"`

	Debug     bool   `json:"debug,omitempty"`
	ExtraArgs string `json:"extraArgs,omitempty"`
}

// RemoveRequest names containers (ids or unique prefixes) of one zone.
type RemoveRequest struct {
	Ids  []string `json:"ids"`
	Zone string   `json:"zone"`
}

// UpgradeRequest replaces containers with replicas of the given release.
type UpgradeRequest struct {
	Appname string   `json:"appname"`
	Commit  string   `json:"commit"`
	Ids     []string `json:"ids"`

	// "SAME" (or empty) inherits each container's envname.
	Envname string `json:"envname,omitempty"`

	// seconds. zero defers to the release manifest.
	ErectionTimeout int `json:"erectionTimeout,omitempty"`
}

// BuildRequest builds the image of a registered release.
type BuildRequest struct {
	Appname string `json:"appname"`
	Commit  string `json:"commit"`
}

// RegisterReleaseRequest stores a release with its manifest text.
type RegisterReleaseRequest struct {
	Appname  string `json:"appname"`
	Commit   string `json:"commit"`
	Manifest string `json:"manifest"`
}

type ReleaseDetail struct {
	Appname string `json:"appname"`
	Commit  string `json:"commit"`
	Image   string `json:"image,omitempty"`
	Raw     bool   `json:"raw"`
}

// DebugRequest flips the debug override of a container.
type DebugRequest struct {
	Debug bool `json:"debug"`
}

type ContainerDetail struct {
	Id          string            `json:"id"`
	Appname     string            `json:"appname"`
	Commit      string            `json:"commit"`
	Combo       string            `json:"combo"`
	Entrypoint  string            `json:"entrypoint"`
	Envname     string            `json:"envname,omitempty"`
	Zone        string            `json:"zone"`
	Podname     string            `json:"podname,omitempty"`
	Nodename    string            `json:"nodename,omitempty"`
	CpuQuota    float64           `json:"cpuQuota"`
	Memory      int64             `json:"memory"`
	Status      string            `json:"status"`
	Initialized bool              `json:"initialized"`
	Publish     map[string]string `json:"publish,omitempty"`
}
