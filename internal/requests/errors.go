package requests

import "errors"

var (
	ErrEmptyTag        = errors.New("requests: empty tag")
	ErrInvalidWorkflow = errors.New("requests: workflow must provide both accept and deny")
	ErrUnknownTag      = errors.New("requests: tag is not registered")
	ErrNoRequester     = errors.New("requests: requester id is required")

	ErrNoIdentityResolver = errors.New("requests: identity resolver is not configured")
)
