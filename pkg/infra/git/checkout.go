package git

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// Fetcher clones repositories with go-git
type Fetcher struct{}

// NewFetcher creates a Fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Checkout clones req.CloneURL at req.Tag into req.Dir and checks out the
// tagged commit
func (f *Fetcher) Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.Checkout, error) {
	logger := ctxlog.From(ctx)
	tagRef := plumbing.NewTagReferenceName(req.Tag)

	opts := &git.CloneOptions{
		URL:           req.CloneURL,
		ReferenceName: tagRef,
		SingleBranch:  true,
		NoCheckout:    true,
	}
	if !req.Token.IsEmpty() {
		opts.Auth = &http.BasicAuth{
			Username: "x-access-token",
			Password: req.Token.Unsafe(),
		}
	}

	logger.Info("Cloning repository",
		"url", req.CloneURL,
		"tag", req.Tag,
		"dir", req.Dir,
	)

	repo, err := git.PlainCloneContext(ctx, req.Dir, false, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to clone repository",
			goerr.V("url", req.CloneURL),
			goerr.V("tag", req.Tag),
			goerr.T(types.ErrTagProvisioning),
		)
	}

	commit, tagHash, err := resolveTag(repo, tagRef)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve tag",
			goerr.V("tag", req.Tag),
			goerr.T(types.ErrTagProvisioning),
		)
	}

	// Pushes of annotated tags report the tag object, not the commit
	if req.CommitSHA != "" && commit.Hash.String() != req.CommitSHA && tagHash.String() != req.CommitSHA {
		return nil, goerr.New("tag does not point to the pushed commit",
			goerr.V("tag", req.Tag),
			goerr.V("expected", req.CommitSHA),
			goerr.V("actual", commit.Hash.String()),
			goerr.T(types.ErrTagProvisioning),
		)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get worktree", goerr.T(types.ErrTagProvisioning))
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: commit.Hash, Force: true}); err != nil {
		return nil, goerr.Wrap(err, "failed to check out commit",
			goerr.V("commit", commit.Hash.String()),
			goerr.T(types.ErrTagProvisioning),
		)
	}

	logger.Info("Checked out tag",
		"tag", req.Tag,
		"commit", commit.Hash.String(),
	)

	return &model.Checkout{
		Dir:       req.Dir,
		CommitSHA: commit.Hash.String(),
	}, nil
}

// resolveTag peels lightweight and annotated tags down to their commit. It
// also returns the hash the reference points to.
func resolveTag(repo *git.Repository, name plumbing.ReferenceName) (*object.Commit, plumbing.Hash, error) {
	ref, err := repo.Reference(name, true)
	if err != nil {
		return nil, plumbing.ZeroHash, goerr.Wrap(err, "tag reference not found", goerr.V("ref", name.String()))
	}

	var commit *object.Commit
	tagObj, err := repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, err = tagObj.Commit()
	case errors.Is(err, plumbing.ErrObjectNotFound):
		commit, err = repo.CommitObject(ref.Hash())
	default:
		err = goerr.Wrap(err, "failed to read tag object", goerr.V("ref", name.String()))
	}
	if err != nil {
		return nil, plumbing.ZeroHash, err
	}
	return commit, ref.Hash(), nil
}
