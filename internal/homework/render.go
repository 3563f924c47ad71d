package homework

import (
	"errors"
	"fmt"
)

// Render produces the human-readable text sent to the chat for a failed cycle.
func Render(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("Сбой в работе программы: %v", err)
	}
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case EndpointUnreachable:
		msg := fmt.Sprintf("URL %s не отвечает.", e.Context)
		if e.Err != nil {
			msg += fmt.Sprintf(" (%v)", e.Err)
		}
		return msg
	case MalformedPayload, UnexpectedShape:
		return "Неверный тип данных"
	case EmptyResponse:
		return "Нет данных в ответе"
	case MissingField:
		return fmt.Sprintf("Ключ отсутствует: %s", e.Context)
	case UnknownStatus:
		return fmt.Sprintf("Неизвестный статус работы: %s", e.Context)
	case DeliveryFailed:
		return fmt.Sprintf("Сбой при отправке сообщения: %v", e)
	case ConfigurationMissing:
		return fmt.Sprintf("Переменная окружения %s отсутствует", e.Context)
	default:
		return fmt.Sprintf("Сбой в работе программы: %v", e)
	}
}
