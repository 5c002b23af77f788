package model

import "strings"

// ArtifactKind is the distribution type of a built file
type ArtifactKind string

const (
	ArtifactSdist ArtifactKind = "sdist"
	ArtifactWheel ArtifactKind = "bdist_wheel"
)

// PackageMetadata is the core metadata embedded in a distribution file
type PackageMetadata struct {
	MetadataVersion string
	Name            string
	Version         string
	Summary         string
	RequiresPython  string
}

// Artifact is a distribution file produced by the build step
type Artifact struct {
	Path      string
	Filename  string
	Kind      ArtifactKind
	PyVersion string // "source" for sdists, python tag for wheels
	Size      int64
	SHA256    string
	MD5       string
	Metadata  PackageMetadata
}

// NormalizeVersion folds a version string to the form used for comparison
func NormalizeVersion(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.TrimPrefix(v, "v")
}

// TagVersion derives the package version a tag announces, e.g. v1.2.0 -> 1.2.0
func TagVersion(tag string) string {
	return NormalizeVersion(tag)
}

// MatchesTag reports whether the artifact carries the version announced by tag
func (x *Artifact) MatchesTag(tag string) bool {
	return NormalizeVersion(x.Metadata.Version) == TagVersion(tag)
}
