package mock

import (
	"context"
	"errors"

	mocks "github.com/opst/stevedore/internal/db/mock"
	"github.com/opst/stevedore/pkg/scm"
)

type GetCommitArgs struct {
	Project string
	Ref     string
}

type GetFileContentArgs struct {
	Project string
	Path    string
	Ref     string
}

type SCM struct {
	Impl struct {
		GetCommit      func(ctx context.Context, project string, ref string) (scm.Commit, error)
		GetFileContent func(ctx context.Context, project string, path string, ref string) ([]byte, error)
	}
	Calls struct {
		GetCommit      mocks.CallLog[GetCommitArgs]
		GetFileContent mocks.CallLog[GetFileContentArgs]
	}
}

var _ scm.Interface = &SCM{}

func New() *SCM {
	return &SCM{}
}

func (m *SCM) GetCommit(ctx context.Context, project string, ref string) (scm.Commit, error) {
	m.Calls.GetCommit = append(m.Calls.GetCommit, GetCommitArgs{Project: project, Ref: ref})
	if m.Impl.GetCommit == nil {
		panic(errors.New("it should not be called"))
	}
	return m.Impl.GetCommit(ctx, project, ref)
}

func (m *SCM) GetFileContent(ctx context.Context, project string, path string, ref string) ([]byte, error) {
	m.Calls.GetFileContent = append(m.Calls.GetFileContent, GetFileContentArgs{Project: project, Path: path, Ref: ref})
	if m.Impl.GetFileContent == nil {
		panic(errors.New("it should not be called"))
	}
	return m.Impl.GetFileContent(ctx, project, path, ref)
}
