// Package apperr описывает таксономию ошибок чата.
//
// Конкретные ошибки оборачивают один из sentinel-значений через %w,
// поэтому вызывающий код проверяет вид ошибки через errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrTransport  = errors.New("transport error")
)

// Validation некорректный ввод, отклоняется до любых изменений
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// NotFound ссылка на несуществующую комнату или сообщение
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Forbidden доступ к комнате без членства
func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

// Transport ошибка уровня соединения, только логируется
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Code короткий код ошибки для клиентских фреймов и JSON-ответов
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}
