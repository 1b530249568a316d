package mock

import (
	"context"
	"errors"

	"github.com/opst/stevedore/pkg/domain"
	dbmock "github.com/opst/stevedore/internal/db/mock"
	kdb "github.com/opst/stevedore/pkg/domain/release/db"
)

type GetByAppAndCommitArgs struct {
	Appname string
	Commit  string
}

type RegisterArgs struct {
	Appname  string
	Commit   string
	Manifest string
}

type SetImageArgs struct {
	ReleaseId int
	Image     string
}

type ReleaseInterface struct {
	Impl struct {
		GetApp              func(ctx context.Context, name string) (domain.App, error)
		GetByAppAndCommit   func(ctx context.Context, appname string, commit string) (domain.Release, error)
		Register            func(ctx context.Context, appname string, commit string, manifest string) (domain.Release, error)
		SetImage            func(ctx context.Context, releaseId int, image string) error
		AppsWithTackleRules func(ctx context.Context) ([]domain.Release, error)
		AppsWithCrontab     func(ctx context.Context) ([]domain.Release, error)
	}

	Calls struct {
		GetApp              dbmock.CallLog[string]
		GetByAppAndCommit   dbmock.CallLog[GetByAppAndCommitArgs]
		Register            dbmock.CallLog[RegisterArgs]
		SetImage            dbmock.CallLog[SetImageArgs]
		AppsWithTackleRules dbmock.CallLog[struct{}]
		AppsWithCrontab     dbmock.CallLog[struct{}]
	}
}

func NewReleaseInterface() *ReleaseInterface {
	return &ReleaseInterface{}
}

var _ kdb.ReleaseInterface = &ReleaseInterface{}

func (m *ReleaseInterface) GetApp(ctx context.Context, name string) (domain.App, error) {
	m.Calls.GetApp = append(m.Calls.GetApp, name)
	if m.Impl.GetApp != nil {
		return m.Impl.GetApp(ctx, name)
	}

	panic(errors.New("it should not be called"))
}

func (m *ReleaseInterface) GetByAppAndCommit(ctx context.Context, appname string, commit string) (domain.Release, error) {
	m.Calls.GetByAppAndCommit = append(m.Calls.GetByAppAndCommit, GetByAppAndCommitArgs{
		Appname: appname, Commit: commit,
	})
	if m.Impl.GetByAppAndCommit != nil {
		return m.Impl.GetByAppAndCommit(ctx, appname, commit)
	}

	panic(errors.New("it should not be called"))
}

func (m *ReleaseInterface) Register(ctx context.Context, appname string, commit string, manifest string) (domain.Release, error) {
	m.Calls.Register = append(m.Calls.Register, RegisterArgs{
		Appname: appname, Commit: commit, Manifest: manifest,
	})
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, appname, commit, manifest)
	}

	panic(errors.New("it should not be called"))
}

func (m *ReleaseInterface) SetImage(ctx context.Context, releaseId int, image string) error {
	m.Calls.SetImage = append(m.Calls.SetImage, SetImageArgs{ReleaseId: releaseId, Image: image})
	if m.Impl.SetImage != nil {
		return m.Impl.SetImage(ctx, releaseId, image)
	}

	panic(errors.New("it should not be called"))
}

func (m *ReleaseInterface) AppsWithTackleRules(ctx context.Context) ([]domain.Release, error) {
	m.Calls.AppsWithTackleRules = append(m.Calls.AppsWithTackleRules, struct{}{})
	if m.Impl.AppsWithTackleRules != nil {
		return m.Impl.AppsWithTackleRules(ctx)
	}

	panic(errors.New("it should not be called"))
}

func (m *ReleaseInterface) AppsWithCrontab(ctx context.Context) ([]domain.Release, error) {
	m.Calls.AppsWithCrontab = append(m.Calls.AppsWithCrontab, struct{}{})
	if m.Impl.AppsWithCrontab != nil {
		return m.Impl.AppsWithCrontab(ctx)
	}

	panic(errors.New("it should not be called"))
}
