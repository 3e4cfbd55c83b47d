package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexibleInt - номер места, принимается как число или как строка с числом
type FlexibleInt int

// UnmarshalJSON поддерживает парсинг числа из строки и из числа
func (fi *FlexibleInt) UnmarshalJSON(data []byte) error {
	str := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if str == "" || str == "null" {
		return fmt.Errorf("seat number is required")
	}

	value, err := strconv.Atoi(str)
	if err != nil {
		return fmt.Errorf("invalid seat number: %s", str)
	}
	*fi = FlexibleInt(value)
	return nil
}

// SeatRef - место в запросе клиента
type SeatRef struct {
	Row  string      `json:"row" binding:"required"`
	Seat FlexibleInt `json:"seat" binding:"required"`
}

// SeatsRequest - тело запросов reserve/release/purchase/intent
type SeatsRequest struct {
	Seats []SeatRef `json:"seats" binding:"required,min=1,dive"`
}

// ReserveRequest - запрос на удержание мест
type ReserveRequest struct {
	Seats       []SeatRef `json:"seats" binding:"required,min=1,dive"`
	HoldSeconds int       `json:"hold_seconds,omitempty"`
}

// PriceRequest - запрос на расчет стоимости
type PriceRequest struct {
	Seats []SeatRef  `json:"seats" binding:"required,min=1,dive"`
	Phase PricePhase `json:"phase,omitempty"`
}

// CompletePaymentRequest - подтверждение покупки по внешнему платежу
type CompletePaymentRequest struct {
	Seats      []SeatRef `json:"seats" binding:"required,min=1,dive"`
	PaymentRef string    `json:"payment_ref" binding:"required"`
}

// ReleaseResponse - результат освобождения мест
type ReleaseResponse struct {
	Released int      `json:"released"`
	Failed   []string `json:"failed,omitempty"`
}

// ListSeatsResponseItem - элемент карты мест
type ListSeatsResponseItem struct {
	Row           string     `json:"row"`
	Seat          int        `json:"seat"`
	Status        SeatStatus `json:"status"`
	Price         string     `json:"price"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	HeldByMe      bool       `json:"held_by_me,omitempty"`
}

// ListTicketsResponseItem - билет пользователя
type ListTicketsResponseItem struct {
	EventID   int64     `json:"event_id"`
	Row       string    `json:"row"`
	Seat      int       `json:"seat"`
	Barcode   string    `json:"barcode"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketDocument is the search projection of a sold ticket.
type TicketDocument struct {
	Barcode    string    `json:"barcode"`
	EventID    int64     `json:"event_id"`
	Row        string    `json:"row"`
	Seat       int       `json:"seat"`
	SeatLabel  string    `json:"seat_label"`
	UserID     int64     `json:"user_id"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	SoldAt     time.Time `json:"sold_at"`
}
