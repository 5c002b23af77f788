package model

import "github.com/m-mizutani/tagship/pkg/domain/types"

// Credential authenticates uploads to the registry
type Credential struct {
	Username string
	Token    types.Secret
}

// CheckoutRequest describes which revision to materialize and where
type CheckoutRequest struct {
	CloneURL  string
	Tag       string
	CommitSHA string // expected commit, verified when set
	Dir       string
	Token     types.Secret
}

// Checkout is a materialized working tree
type Checkout struct {
	Dir       string
	CommitSHA string
}
