package apperror

import (
	"errors"
	"fmt"
	"time"
)

// Kind — категория прикладной ошибки. В HTTP-коды её переводит только
// транспортный слой.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

// ConflictDetails описывает занявшую ресурс бронь.
type ConflictDetails struct {
	BookedBy string         `json:"bookedBy"`
	ClubName string         `json:"clubName,omitempty"`
	UserType string         `json:"userType"`
	StartsAt time.Time      `json:"starts_at"`
	EndsAt   time.Time      `json:"ends_at"`
}

type Error struct {
	Kind    Kind
	Message string
	Details *ConflictDetails
	Err     error // исходная причина, если есть
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// ConflictWith — конфликт с деталями о занявшей брони.
func ConflictWith(details *ConflictDetails, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Details: details}
}

func Unavailable(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Internal оборачивает неклассифицированный сбой хранилища или рантайма.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf возвращает категорию ошибки; всё неразмеченное считается Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// DetailsOf достаёт ConflictDetails, если они есть.
func DetailsOf(err error) *ConflictDetails {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Details
	}
	return nil
}
