package docindex

import "context"

// RepositoryTree lists the files of a code repository at one ref.
type RepositoryTree struct {
	Owner string
	Repo  string
	Ref   string
	Paths []string
}

// RepositoryService lists repository files on a code hosting service.
type RepositoryService interface {
	// Tree returns all file paths of the repository at ref. An empty ref
	// means the default branch; the resolved ref is returned in the tree.
	Tree(ctx context.Context, owner, repo, ref string) (*RepositoryTree, error)
}
