package models

import "errors"

var (
	// ErrParse indicates malformed or unrecognized playlist or attribute syntax.
	ErrParse = errors.New("parse error")

	// ErrEmpty indicates a structurally valid input with no usable items after filtering.
	ErrEmpty = errors.New("empty playlist")

	// ErrNetwork indicates a transport failure or an unusable HTTP response.
	ErrNetwork = errors.New("network error")

	// ErrIO indicates a local filesystem failure.
	ErrIO = errors.New("io error")

	// ErrConfig indicates an invalid proxy, filter or option specification.
	ErrConfig = errors.New("config error")
)
