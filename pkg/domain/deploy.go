package domain

// EnvnameInherit is a sentinel envname for upgrade deployments,
// meaning "inherit the envname of the container being replaced".
const EnvnameInherit = "SAME"

// DeployOptions is everything the core scheduler needs to place
// containers for one (app, release, combo) triple.
type DeployOptions struct {
	Appname    string            `json:"appname"`
	Image      string            `json:"image"`
	Podname    string            `json:"podname"`
	Nodename   string            `json:"nodename"`
	Entrypoint string            `json:"entrypoint"`
	ComboName  string            `json:"comboName"`
	Envname    string            `json:"envname"`
	CpuQuota   float64           `json:"cpuQuota"`
	Memory     int64             `json:"memory"`
	Count      int               `json:"count"`
	Networks   map[string]string `json:"networks"`
	Env        []string          `json:"env"`
	Zone       string            `json:"zone"`
	Manifest   string            `json:"manifest"`
	Raw        bool              `json:"raw"`
	Debug      bool              `json:"debug"`
	ExtraArgs  string            `json:"extraArgs"`
}

// OptionsOf rebuilds DeployOptions for a single replacement of c.
// The node pin is cleared so that the scheduler re-places freely.
func OptionsOf(c Container, manifest string) DeployOptions {
	return DeployOptions{
		Appname:    c.Appname,
		Podname:    c.Podname,
		Nodename:   "",
		Entrypoint: c.EntrypointName,
		ComboName:  c.ComboName,
		Envname:    c.Envname,
		CpuQuota:   c.CpuQuota,
		Memory:     c.Memory,
		Count:      1,
		Zone:       c.Zone,
		Manifest:   manifest,
		Debug:      c.IsDebug(),
	}
}
