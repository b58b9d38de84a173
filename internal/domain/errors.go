package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrIdentification     = errors.New("identification failed")
	ErrDescription        = errors.New("description generation failed")
	ErrRenderFailed       = errors.New("render failed")
	ErrRenderTimeout      = errors.New("render timed out")
	ErrUpload             = errors.New("upload failed")
	ErrDuplicateOperation = errors.New("duplicate operation")
)
