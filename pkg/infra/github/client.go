package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// statusContext is the context name of commit statuses posted by tagship
const statusContext = "tagship/release"

// Client reports run state to GitHub and issues clone tokens
type Client struct {
	githubClient *github.Client
	itr          *ghinstallation.Transport
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte) (*Client, error) {
	// Create GitHub App transport
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID),
		)
	}

	return &Client{
		githubClient: github.NewClient(&http.Client{Transport: itr}),
		itr:          itr,
	}, nil
}

// NewClientWithHTTP creates a client against baseURL with a plain HTTP client
func NewClientWithHTTP(httpClient *http.Client, baseURL string) (*Client, error) {
	c := github.NewClient(httpClient)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid GitHub API URL", goerr.V("url", baseURL))
	}
	c.BaseURL = u
	return &Client{githubClient: c}, nil
}

// CloneToken returns an installation token usable for HTTPS git clones
func (c *Client) CloneToken(ctx context.Context) (types.Secret, error) {
	if c.itr == nil {
		return "", nil
	}
	token, err := c.itr.Token(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get installation token")
	}
	return types.Secret(token), nil
}

// ReportStatus sets the commit status of the tagged commit
func (c *Client) ReportStatus(ctx context.Context, run *model.Run) error {
	if run.Repository.Owner == "" || run.Repository.Name == "" || run.CommitSHA == "" {
		ctxlog.From(ctx).Debug("Skip commit status, repository or commit unknown", "run_id", run.ID)
		return nil
	}

	state, description := statusOf(run)
	status := &github.RepoStatus{
		State:       github.Ptr(state),
		Description: github.Ptr(description),
		Context:     github.Ptr(statusContext),
	}

	if _, _, err := c.githubClient.Repositories.CreateStatus(ctx,
		run.Repository.Owner, run.Repository.Name, run.CommitSHA, status); err != nil {
		return goerr.Wrap(err, "failed to create commit status",
			goerr.V("repo", run.Repository.FullName()),
			goerr.V("commit", run.CommitSHA),
			goerr.V("state", state),
		)
	}
	return nil
}

func statusOf(run *model.Run) (string, string) {
	switch run.Status {
	case model.RunStatusSucceeded:
		return "success", fmt.Sprintf("%s published", run.Tag)
	case model.RunStatusFailed:
		if step, ok := run.FailedStep(); ok {
			return "failure", fmt.Sprintf("%s failed at %s", run.Tag, step)
		}
		return "failure", fmt.Sprintf("%s failed", run.Tag)
	default:
		return "pending", fmt.Sprintf("releasing %s", run.Tag)
	}
}
