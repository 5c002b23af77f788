package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify pipeline failures
var (
	ErrTagConfig       = goerr.NewTag("config")
	ErrTagProvisioning = goerr.NewTag("provisioning")
	ErrTagBuild        = goerr.NewTag("build")
	ErrTagPublish      = goerr.NewTag("publish")
	ErrTagConflict     = goerr.NewTag("conflict")
	ErrTagDuplicate    = goerr.NewTag("duplicate")
	ErrTagAuth         = goerr.NewTag("auth")
	ErrTagNotFound     = goerr.NewTag("not_found")
)
