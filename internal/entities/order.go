package entities

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderKind is one of the paid lookup products.
type OrderKind string

const (
	OrderBiometric OrderKind = "biometric"
	OrderCallList  OrderKind = "call_list"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
)

var (
	ErrOrderKindUnknown      = errors.New("order kind must be biometric or call_list")
	ErrOrderQueryRequired    = errors.New("nid or phone number is required")
	ErrDeliveryEmailRequired = errors.New("a valid delivery email is required for email delivery")
	ErrOrderProcessed        = errors.New("order has already been processed")
	ErrPDFRequired           = errors.New("a pdf url is required to complete an order")
	ErrInsufficientBalance   = errors.New("insufficient wallet balance")
)

// Order is a paid lookup request fulfilled by an admin with a PDF.
type Order struct {
	ID              string          `json:"id" db:"id"`
	UserID          int64           `json:"userId" db:"user_id"`
	Kind            OrderKind       `json:"kind" db:"kind"`
	NID             string          `json:"nid,omitempty" db:"nid"`
	Phone           string          `json:"phone,omitempty" db:"phone"`
	Note            string          `json:"note,omitempty" db:"note"`
	Price           decimal.Decimal `json:"price" db:"price"`
	EmailDelivery   bool            `json:"emailDelivery" db:"email_delivery"`
	DeliveryEmail   *string         `json:"deliveryEmail,omitempty" db:"delivery_email"`
	Status          OrderStatus     `json:"status" db:"status"`
	PDFURL          *string         `json:"pdfUrl,omitempty" db:"pdf_url"`
	RejectionReason *string         `json:"rejectionReason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// NewOrder validates the input and prices the order from settings.
func NewOrder(userID int64, kind OrderKind, nid, phone, note string, emailDelivery bool, deliveryEmail string, settings Settings, now time.Time) (*Order, error) {
	var price decimal.Decimal
	switch kind {
	case OrderBiometric:
		price = settings.BiometricPrice
	case OrderCallList:
		price = settings.CallListPrice
	default:
		return nil, ErrOrderKindUnknown
	}

	nid, phone = strings.TrimSpace(nid), strings.TrimSpace(phone)
	if nid == "" && phone == "" {
		return nil, ErrOrderQueryRequired
	}

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          kind,
		NID:           nid,
		Phone:         phone,
		Note:          strings.TrimSpace(note),
		EmailDelivery: emailDelivery,
		Status:        OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if emailDelivery {
		if _, err := mail.ParseAddress(deliveryEmail); err != nil {
			return nil, ErrDeliveryEmailRequired
		}
		o.DeliveryEmail = &deliveryEmail
		price = price.Add(settings.EmailAddonPrice)
	}
	o.Price = price

	return o, nil
}

// Complete attaches the result PDF.
func (o *Order) Complete(pdfURL string, now time.Time) error {
	if o.Status != OrderStatusPending {
		return ErrOrderProcessed
	}
	if pdfURL = strings.TrimSpace(pdfURL); pdfURL == "" {
		return ErrPDFRequired
	}
	o.Status = OrderStatusCompleted
	o.PDFURL = &pdfURL
	o.UpdatedAt = now
	return nil
}

// EmailDelivery asks a mailer to send a completed order's PDF to the address
// the user paid the add-on for.
type EmailDelivery struct {
	OrderID string    `json:"orderId"`
	UserID  int64     `json:"userId"`
	Kind    OrderKind `json:"kind"`
	Email   string    `json:"email"`
	PDFURL  string    `json:"pdfUrl"`
}

// EmailDeliveryRequest returns the delivery for a completed order that was
// placed with the email add-on.
func (o *Order) EmailDeliveryRequest() (EmailDelivery, bool) {
	if o.Status != OrderStatusCompleted || !o.EmailDelivery || o.DeliveryEmail == nil || o.PDFURL == nil {
		return EmailDelivery{}, false
	}
	return EmailDelivery{
		OrderID: o.ID,
		UserID:  o.UserID,
		Kind:    o.Kind,
		Email:   *o.DeliveryEmail,
		PDFURL:  *o.PDFURL,
	}, true
}

// Reject closes the order; the caller refunds the price.
func (o *Order) Reject(reason string, now time.Time) error {
	if o.Status != OrderStatusPending {
		return ErrOrderProcessed
	}
	o.Status = OrderStatusRejected
	if reason = strings.TrimSpace(reason); reason != "" {
		o.RejectionReason = &reason
	}
	o.UpdatedAt = now
	return nil
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID *int64
	Status *OrderStatus
}
