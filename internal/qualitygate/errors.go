package qualitygate

import "errors"

var (
	ErrNotFound    = errors.New("quality gate not found")
	ErrInvalidGate = errors.New("invalid quality gate")
)
