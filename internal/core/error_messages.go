package core

// error_messages.go maps technical errors to operator-facing messages with a
// code that can be quoted in tickets.
//
//	SRC001  Source unavailable     the input file is missing or unreadable
//	DB001   Chunk write failed     a chunk transaction was rolled back
//	DB002   Connection refused     the database is not reachable
//	DB003   Deadlock               conflicting writes, retry the run
//	RUN001  Duplicate run          the run id was used before
//	RUN002  Run in progress        another run holds the ingestion slot
//	RUN003  Run cancelled          cancelled or timed out between chunks
//	RUN004  Run not found          unknown run id
//	FOOD001 Food not found         unknown food code
//	ERR000  Unexpected error       check the logs

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is an error description safe to show outside the service.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrSourceUnavailable, UserMessage{
		Message: "The nutrition source file could not be read",
		Action:  "Check INGEST_SOURCE_PATH and file permissions",
		Code:    "SRC001",
	}},
	{ErrDuplicateRun, UserMessage{
		Message: "This run id has already been used",
		Action:  "Start the run with a new id",
		Code:    "RUN001",
	}},
	{ErrRunInProgress, UserMessage{
		Message: "Another ingestion run is in progress",
		Action:  "Wait for it to finish and try again",
		Code:    "RUN002",
	}},
	{ErrRunCancelled, UserMessage{
		Message: "The run was cancelled",
		Action:  "Committed chunks were kept; start a new run to finish the import",
		Code:    "RUN003",
	}},
	{ErrRunNotFound, UserMessage{
		Message: "Run not found",
		Action:  "Verify the run id",
		Code:    "RUN004",
	}},
	{ErrFoodNotFound, UserMessage{
		Message: "Food not found",
		Action:  "Verify the food code",
		Code:    "FOOD001",
	}},
}

// Chunk failures are refined by the driver text they wrap.
var chunkPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Check the database and rerun; committed chunks were kept",
		Code:    "DB002",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting writes",
		Action:  "Rerun the import; upserts are idempotent",
		Code:    "DB003",
	}},
}

var chunkWriteMessage = UserMessage{
	Message: "A chunk could not be written",
	Action:  "Check the database logs and rerun; upserts are idempotent",
	Code:    "DB001",
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the service logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a UserMessage. A nil error maps to
// the zero message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if errors.Is(err, ErrChunkWriteFailed) {
		text := strings.ToLower(err.Error())
		for _, p := range chunkPatterns {
			if strings.Contains(text, p.pattern) {
				return p.msg
			}
		}
		return chunkWriteMessage
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
