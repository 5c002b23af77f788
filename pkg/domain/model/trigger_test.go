package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/domain/model"
)

func TestTriggerSpec_Match(t *testing.T) {
	spec := model.TriggerSpec{Tags: []string{"v*"}}

	tests := []struct {
		name    string
		ref     string
		wantTag string
		wantOK  bool
	}{
		{name: "version tag", ref: "refs/tags/v1.2.0", wantTag: "v1.2.0", wantOK: true},
		{name: "pre-release tag", ref: "refs/tags/v2.0.0rc1", wantTag: "v2.0.0rc1", wantOK: true},
		{name: "tag without v prefix", ref: "refs/tags/release-1.2.0", wantOK: false},
		{name: "branch named like a version", ref: "refs/heads/v1.2.0", wantOK: false},
		{name: "main branch", ref: "refs/heads/main", wantOK: false},
		{name: "bare tag name", ref: "v1.2.0", wantOK: false},
		{name: "empty tag", ref: "refs/tags/", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ok := spec.Match(tt.ref)
			gt.Value(t, ok).Equal(tt.wantOK)
			gt.Value(t, tag).Equal(tt.wantTag)
		})
	}
}

func TestTriggerSpec_MatchMultiplePatterns(t *testing.T) {
	spec := model.TriggerSpec{Tags: []string{"v[0-9]*", "release/*"}}

	tag, ok := spec.Match("refs/tags/release/1.0")
	gt.True(t, ok)
	gt.Value(t, tag).Equal("release/1.0")

	_, ok = spec.Match("refs/tags/vnext")
	gt.False(t, ok)
}

func TestTriggerSpec_Validate(t *testing.T) {
	gt.NoError(t, model.TriggerSpec{Tags: []string{"v*"}}.Validate())
	gt.Error(t, model.TriggerSpec{}.Validate())
	gt.Error(t, model.TriggerSpec{Tags: []string{"v[1-"}}.Validate())
}

func TestRepository_FullName(t *testing.T) {
	gt.Value(t, model.Repository{Owner: "octo", Name: "pkg"}.FullName()).Equal("octo/pkg")
	gt.Value(t, model.Repository{Name: "pkg"}.FullName()).Equal("")
}
