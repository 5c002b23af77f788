package model

import (
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const tagRefPrefix = "refs/tags/"

// Repository identifies the source repository of a release
type Repository struct {
	Owner    string `json:"owner" firestore:"owner"`
	Name     string `json:"name" firestore:"name"`
	CloneURL string `json:"clone_url" firestore:"clone_url"`
}

// FullName returns "owner/name", or an empty string when unknown
func (x Repository) FullName() string {
	if x.Owner == "" || x.Name == "" {
		return ""
	}
	return x.Owner + "/" + x.Name
}

// TriggerEvent is a pushed reference that may start a pipeline run
type TriggerEvent struct {
	Ref        string // Full ref, e.g. refs/tags/v1.2.0
	CommitSHA  string // Commit the ref points to; empty when unknown
	Repository Repository
	Pusher     string
	DeliveryID string
}

// TagRef returns the full ref name of a tag
func TagRef(tag string) string {
	return tagRefPrefix + tag
}

// TriggerSpec selects which pushed refs start the pipeline
type TriggerSpec struct {
	Tags []string // glob patterns in path.Match syntax
}

// Match returns the tag name when ref is a tag matching one of the patterns.
// Branches and other refs never match.
func (x TriggerSpec) Match(ref string) (string, bool) {
	tag, ok := strings.CutPrefix(ref, tagRefPrefix)
	if !ok || tag == "" {
		return "", false
	}

	for _, pattern := range x.Tags {
		if matched, err := path.Match(pattern, tag); err == nil && matched {
			return tag, true
		}
	}
	return "", false
}

// Validate checks that every pattern is well formed
func (x TriggerSpec) Validate() error {
	if len(x.Tags) == 0 {
		return goerr.New("no tag pattern configured")
	}
	for _, pattern := range x.Tags {
		if _, err := path.Match(pattern, ""); err != nil {
			return goerr.Wrap(err, "invalid tag pattern", goerr.V("pattern", pattern))
		}
	}
	return nil
}
