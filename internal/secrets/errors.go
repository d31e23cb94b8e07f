package secrets

import "errors"

var (
	// ErrInvalidRegex indicates an allow-list pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allow-list file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")

	// ErrDetectorInit indicates the Gitleaks detector could not be built.
	ErrDetectorInit = errors.New("secret detector initialization failed")
)
