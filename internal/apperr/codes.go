// Package apperr provides structured domain errors with a stable code and an
// error class that outer adapters translate to transport statuses.
package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

// Class groups codes by how a caller should react to them.
type Class string

const (
	ClassValidation Class = "validation"
	ClassConflict   Class = "conflict"
	ClassNotFound   Class = "not_found"
	ClassOutOfRange Class = "out_of_range"
	ClassForbidden  Class = "forbidden"
	ClassInternal   Class = "internal"
)

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidArgument is a generic input violation.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Level table
	CodeLevelOutOfRange Code = "LEVEL_OUT_OF_RANGE"

	// Task errors
	CodeTaskTitleEmpty           Code = "TASK_TITLE_EMPTY"
	CodeTaskInvalidPriority      Code = "TASK_INVALID_PRIORITY"
	CodeTaskInvalidComplexity    Code = "TASK_INVALID_COMPLEXITY"
	CodeTaskObjectiveIndex       Code = "TASK_OBJECTIVE_INDEX_OUT_OF_BOUNDS"
	CodeTaskObjectivesIncomplete Code = "TASK_OBJECTIVES_INCOMPLETE"
	CodeTaskNotNew               Code = "TASK_NOT_NEW"
	CodeTaskNotAccepted          Code = "TASK_NOT_ACCEPTED"
	CodeTaskCompleted            Code = "TASK_COMPLETED"
	CodeTaskNotFound             Code = "TASK_NOT_FOUND"
	CodeTaskInvalidStatusFilter  Code = "TASK_INVALID_STATUS_FILTER"
	CodeTaskStateChanged         Code = "TASK_STATE_CHANGED"

	// Project errors
	CodeProjectTitleInvalid Code = "PROJECT_TITLE_INVALID"
	CodeProjectLimitReached Code = "PROJECT_LIMIT_REACHED"
	CodeProjectNotFound     Code = "PROJECT_NOT_FOUND"

	// Character errors
	CodeCharacterNotFound Code = "CHARACTER_NOT_FOUND"
	CodeCharacterExists   Code = "CHARACTER_EXISTS"

	// Invitation errors
	CodeInvitationSelf       Code = "INVITATION_SELF"
	CodeInvitationMember     Code = "INVITATION_ALREADY_MEMBER"
	CodeInvitationDuplicate  Code = "INVITATION_DUPLICATE"
	CodeInvitationNotPending Code = "INVITATION_NOT_PENDING"
	CodeInvitationNotFound   Code = "INVITATION_NOT_FOUND"

	// API keys
	CodeAPIKeyNotFound Code = "API_KEY_NOT_FOUND"

	// Authorization
	CodeForbidden Code = "FORBIDDEN"

	// Storage
	CodeNotFound  Code = "NOT_FOUND"
	CodeAmbiguous Code = "AMBIGUOUS"
)

var codeClasses = map[Code]Class{
	CodeInvalidArgument: ClassValidation,

	CodeLevelOutOfRange: ClassOutOfRange,

	CodeTaskTitleEmpty:           ClassValidation,
	CodeTaskInvalidPriority:      ClassValidation,
	CodeTaskInvalidComplexity:    ClassValidation,
	CodeTaskObjectiveIndex:       ClassValidation,
	CodeTaskObjectivesIncomplete: ClassValidation,
	CodeTaskInvalidStatusFilter:  ClassValidation,
	CodeTaskNotNew:               ClassConflict,
	CodeTaskNotAccepted:          ClassConflict,
	CodeTaskCompleted:            ClassConflict,
	CodeTaskStateChanged:         ClassConflict,
	CodeTaskNotFound:             ClassNotFound,

	CodeProjectTitleInvalid: ClassValidation,
	CodeProjectLimitReached: ClassForbidden,
	CodeProjectNotFound:     ClassNotFound,

	CodeCharacterNotFound: ClassNotFound,
	CodeCharacterExists:   ClassConflict,

	CodeInvitationSelf:       ClassValidation,
	CodeInvitationMember:     ClassValidation,
	CodeInvitationDuplicate:  ClassValidation,
	CodeInvitationNotPending: ClassConflict,
	CodeInvitationNotFound:   ClassNotFound,

	CodeAPIKeyNotFound: ClassNotFound,

	CodeForbidden: ClassForbidden,
	CodeNotFound:  ClassNotFound,
	CodeAmbiguous: ClassConflict,
}

// Class returns the error class for this code.
func (c Code) Class() Class {
	if class, ok := codeClasses[c]; ok {
		return class
	}
	return ClassInternal
}

// HTTPStatus maps the code to an HTTP status for transport adapters.
func (c Code) HTTPStatus() int {
	switch c.Class() {
	case ClassValidation:
		return http.StatusUnprocessableEntity
	case ClassConflict:
		return http.StatusConflict
	case ClassNotFound:
		return http.StatusNotFound
	case ClassForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
