package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCompanyBusy is returned when a cascade is already running for the company.
	ErrCompanyBusy = errors.New("a cascade is already running for this company")
	// ErrRunExists is returned when a caller-chosen run id is already taken.
	ErrRunExists = errors.New("a cascade run with this id already exists")
	// ErrUnknownStage is matched by UnknownStageError.
	ErrUnknownStage = errors.New("unknown stage")
)

// ConfigurationError reports missing or invalid process configuration.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// NoDataError means a prerequisite collection is empty (e.g. no personas yet).
type NoDataError struct {
	What      string
	CompanyID uuid.UUID
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no %s for company %s", e.What, e.CompanyID)
}

type RowFailure struct {
	Index int
	Err   error
}

// PartialWriteError lists rows that could not be written while others succeeded.
type PartialWriteError struct {
	Collection string
	Attempted  int
	Failed     []RowFailure
}

func (e *PartialWriteError) Error() string {
	msg := fmt.Sprintf("%s: %d of %d rows failed", e.Collection, len(e.Failed), e.Attempted)
	if len(e.Failed) > 0 && e.Failed[0].Err != nil {
		msg += ": " + e.Failed[0].Err.Error()
	}
	return msg
}

// ExternalServiceError wraps a failed call to a text/image generation service.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

type TimeoutError struct {
	Stage   StageID
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stage %q timed out after %s", e.Stage, e.Timeout)
}

type UnknownStageError struct {
	Stage string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Stage)
}

func (e *UnknownStageError) Is(target error) bool { return target == ErrUnknownStage }
