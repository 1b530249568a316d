package db

import (
	"context"

	"github.com/opst/stevedore/pkg/domain"
)

// ReleaseInterface stores apps and their releases.
type ReleaseInterface interface {
	// GetApp finds an app by name.
	//
	// Returns
	//
	// - error: dberrors.Missing when the app does not exist.
	GetApp(ctx context.Context, name string) (domain.App, error)

	// GetByAppAndCommit finds the release of app at commit.
	// commit can be a prefix.
	//
	// Returns
	//
	// - error: dberrors.Missing when app or release does not exist.
	GetByAppAndCommit(ctx context.Context, appname string, commit string) (domain.Release, error)

	// Register creates a release for (appname, commit) with the given
	// manifest text. (appname, commit) is unique.
	//
	// Returns
	//
	// - error: dberrors.Duplicate when the release exists already.
	Register(ctx context.Context, appname string, commit string, manifest string) (domain.Release, error)

	// SetImage records the built image of a release.
	//
	// The image reference is validated before writing; a reference the
	// registry cannot parse is rejected.
	SetImage(ctx context.Context, releaseId int, image string) error

	// AppsWithTackleRules returns the latest release of each app whose
	// manifest declares tackle rules.
	AppsWithTackleRules(ctx context.Context) ([]domain.Release, error)

	// AppsWithCrontab returns the latest release of each app whose
	// manifest declares crontab entries.
	AppsWithCrontab(ctx context.Context) ([]domain.Release, error)
}
