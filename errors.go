package sequencer

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	ErrCodeInvalidBotType     = "INVALID_BOT_TYPE"
	ErrCodeInvalidStartMode   = "INVALID_START_MODE"
	ErrCodeMissingModeField   = "MISSING_MODE_FIELD"
	ErrCodeInvalidDescriptor  = "INVALID_DESCRIPTOR"
	ErrCodeEmptySequence      = "EMPTY_SEQUENCE"
	ErrCodeControllerFailed   = "CONTROLLER_FAILED"
	ErrCodeSequenceLoadFailed = "SEQUENCE_LOAD_FAILED"
)

var (
	ErrInvalidBotType = errors.New("bot type is invalid", errors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidBotType)
	ErrInvalidStartMode = errors.New("start mode does not apply to bot type", errors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidStartMode)
	ErrMissingModeField = errors.New("required field missing for start mode", errors.CategoryValidation).
				WithTextCode(ErrCodeMissingModeField)
	ErrInvalidDescriptor = errors.New("execution descriptor is invalid", errors.CategoryValidation).
				WithTextCode(ErrCodeInvalidDescriptor)
	ErrEmptySequence = errors.New("sequence has no executions", errors.CategoryBadInput).
				WithTextCode(ErrCodeEmptySequence)
	ErrSequenceLoadFailed = errors.New("sequence file could not be loaded", errors.CategoryBadInput).
				WithTextCode(ErrCodeSequenceLoadFailed)
)

// configurationCodes are the failures absorbed at the build boundary.
var configurationCodes = map[string]bool{
	ErrCodeInvalidBotType:    true,
	ErrCodeInvalidStartMode:  true,
	ErrCodeMissingModeField:  true,
	ErrCodeInvalidDescriptor: true,
}

// NewError clones base with a custom message, source and metadata.
func NewError(base *errors.Error, message string, source error, metadata map[string]any) *errors.Error {
	if base == nil {
		base = ErrInvalidDescriptor
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of a go-errors error in the chain.
func ErrorCode(err error) string {
	var ge *errors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsConfigurationError reports whether err is a configuration error: an
// invalid bot type, a mode that does not apply, or a missing mode field.
func IsConfigurationError(err error) bool {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if ge, ok := e.(*errors.Error); ok && configurationCodes[ge.TextCode] {
			return true
		}
	}
	return false
}
