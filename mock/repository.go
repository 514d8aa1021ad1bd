package mock

import (
	"context"

	"github.com/fwojciec/docindex"
)

var _ docindex.RepositoryService = (*RepositoryService)(nil)

// RepositoryService is a mock implementation of docindex.RepositoryService.
type RepositoryService struct {
	TreeFn func(ctx context.Context, owner, repo, ref string) (*docindex.RepositoryTree, error)
}

func (s *RepositoryService) Tree(ctx context.Context, owner, repo, ref string) (*docindex.RepositoryTree, error) {
	return s.TreeFn(ctx, owner, repo, ref)
}
