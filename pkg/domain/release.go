package domain

import (
	"time"

	"github.com/opst/stevedore/pkg/domain/spec"
)

// App is a deployable application, identified by name.
type App struct {
	Name    string
	Repo    string
	OwnerId int
}

// Release is an immutable build artifact descriptor for one
// (application, commit) pair.
//
// Image is empty until a build finishes, or until the release is marked
// raw (its manifest has no build clause; the base image is used directly).
type Release struct {
	ReleaseId int
	Appname   string
	Commit    string
	Image     string
	Manifest  spec.Manifest

	// ManifestText is the stored manifest verbatim. Deployments pass it
	// through to the core untouched.
	ManifestText string

	CreatedAt time.Time
}

func (r Release) ShortCommit() string {
	if len(r.Commit) <= 7 {
		return r.Commit
	}
	return r.Commit[:7]
}

// Raw releases skip the build step.
func (r Release) Raw() bool {
	return r.Manifest.Build == ""
}

// ErectionTimeout is how long an upgrade waits for a replacement
// container to become healthy before rolling back.
func (r Release) ErectionTimeout() time.Duration {
	return time.Duration(r.Manifest.ErectionTimeout) * time.Second
}

// Subscribers returns the audiences to notify about this release,
// falling back to fallback when the manifest declares none.
func (r Release) Subscribers(fallback ...string) []string {
	if len(r.Manifest.Subscribers) != 0 {
		return r.Manifest.Subscribers
	}
	return fallback
}
