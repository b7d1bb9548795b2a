package domain

import "errors"

var (
	// ErrForbidden - действие доступно только хосту комнаты
	ErrForbidden = errors.New("forbidden")
	// ErrNotMember - пользователь не состоит в комнате
	ErrNotMember = errors.New("not a room member")
	// ErrInvalidContent - пустое или слишком длинное сообщение
	ErrInvalidContent = errors.New("invalid message content")
	// ErrInvalidKey - ключ не подошел; не раскрывает, существует ли комната
	ErrInvalidKey = errors.New("invalid room key")
	// ErrAlreadyPending - у пользователя уже есть заявка на рассмотрении
	ErrAlreadyPending = errors.New("join request already pending")
	// ErrApprovalRequired - вход возможен только по одобренной заявке
	ErrApprovalRequired = errors.New("join approval required")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")

	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrTransportUnavailable = errors.New("transport unavailable")
)

// IsRetryable сообщает, можно ли повторить операцию позже
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTransportUnavailable)
}

var codes = []struct {
	err  error
	code string
}{
	{ErrForbidden, "forbidden"},
	{ErrNotMember, "not_member"},
	{ErrInvalidContent, "invalid_content"},
	{ErrInvalidKey, "invalid_key"},
	{ErrAlreadyPending, "already_pending"},
	{ErrApprovalRequired, "approval_required"},
	{ErrNotFound, "not_found"},
	{ErrInvalidInput, "invalid_input"},
	{ErrStoreUnavailable, "store_unavailable"},
	{ErrTransportUnavailable, "transport_unavailable"},
}

// Code - стабильный код ошибки для клиентов
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return "internal"
}

// PublicMessage - текст ошибки без подробностей драйверов и транспорта
func PublicMessage(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			if c.err == ErrInvalidInput {
				return err.Error()
			}

			return c.err.Error()
		}
	}

	return "internal error"
}
