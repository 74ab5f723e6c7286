package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidName         = errors.New("invalid name")
	ErrMissingCreatedDate  = errors.New("missing created date")
	ErrInvalidSnapshot     = errors.New("invalid snapshot")
	ErrUnknownFormat       = errors.New("unknown format")
	ErrInvalidArtifactName = errors.New("invalid artifact name")
)
