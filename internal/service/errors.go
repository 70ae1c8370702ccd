package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/repository"
)

var (
	// ErrForbidden indicates the actor lacks the capability for the operation.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentRequired indicates staff submitted work without naming the student.
	ErrStudentRequired = errors.New("student id required")
	// ErrStudentInactive indicates the student was deactivated.
	ErrStudentInactive = errors.New("student is inactive")
	// ErrStudentExists indicates the email is already registered.
	ErrStudentExists = errors.New("student already registered")
	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates the quiz attempt does not exist.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
	// ErrScoreNotFound indicates the attempt has not been graded yet.
	ErrScoreNotFound = errors.New("quiz score not found")
	// ErrVideoNotFound indicates the video submission does not exist.
	ErrVideoNotFound = errors.New("video submission not found")
	// ErrInvalidVideoLink indicates the link is not a shareable Google Drive video.
	ErrInvalidVideoLink = errors.New("video link must be a Google Drive file link")
	// ErrUploadTooLarge indicates the uploaded video exceeds the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the uploaded file is not a video.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrStorageUnavailable indicates no video storage is configured.
	ErrStorageUnavailable = errors.New("video storage not configured")
	// ErrAnalyzerUnavailable indicates no video analyzer is configured.
	ErrAnalyzerUnavailable = errors.New("video analyzer not configured")
	// ErrAnalysisFailed indicates the external analyzer could not rate the video.
	ErrAnalysisFailed = errors.New("video analysis failed")
	// ErrResultNotFound indicates the student has no final result yet.
	ErrResultNotFound = errors.New("result not found")
	// ErrSelectionRunNotFound indicates no selection run matches.
	ErrSelectionRunNotFound = errors.New("selection run not found")

	// ErrDuplicateAttempt is returned under the reject re-submission policy.
	ErrDuplicateAttempt = repository.ErrDuplicateAttempt
	// ErrConcurrencyConflict is returned when a ledger row changed underneath a write.
	ErrConcurrencyConflict = repository.ErrConcurrencyConflict
	// ErrAlreadyReleased is returned when releasing a run twice.
	ErrAlreadyReleased = repository.ErrAlreadyReleased
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
