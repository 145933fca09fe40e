package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

// OrderService sells biometric and call-list lookups against the wallet.
type OrderService struct {
	logger     *slog.Logger
	transactor ports.Transactor
	repo       ports.OrderRepository
	outbox     ports.OutboxRepository
	wallets    *WalletService
	settings   *SettingsService
	now        func() time.Time
}

func NewOrderService(
	logger *slog.Logger,
	transactor ports.Transactor,
	repo ports.OrderRepository,
	outbox ports.OutboxRepository,
	wallets *WalletService,
	settings *SettingsService,
) *OrderService {
	return &OrderService{
		logger:     logger,
		transactor: transactor,
		repo:       repo,
		outbox:     outbox,
		wallets:    wallets,
		settings:   settings,
		now:        time.Now,
	}
}

type PlaceOrder struct {
	Kind          entities.OrderKind `json:"kind"`
	NID           string             `json:"nid"`
	Phone         string             `json:"phone"`
	Note          string             `json:"note"`
	EmailDelivery bool               `json:"emailDelivery"`
	DeliveryEmail string             `json:"deliveryEmail"`
}

// Place prices the order and debits the wallet in one transaction.
func (s *OrderService) Place(ctx context.Context, userID int64, in PlaceOrder) (*entities.Order, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	order, err := entities.NewOrder(userID, in.Kind, in.NID, in.Phone, in.Note, in.EmailDelivery, in.DeliveryEmail, *settings, s.now().UTC())
	if err != nil {
		return nil, apperrors.BadRequest(apperrors.WithError(err))
	}

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertOrder(ctx, order); err != nil {
			return err
		}

		_, booked, err := s.wallets.Book(ctx, LedgerEntry{
			UserID:        userID,
			Type:          entities.EntryOrderPayment,
			Amount:        order.Price.Neg(),
			ReferenceType: entities.ReferenceOrderPayment,
			ReferenceID:   order.ID,
			Notes:         fmt.Sprintf("%s order", order.Kind),
		})
		if err != nil {
			return walletException(err)
		}
		if !booked {
			return fmt.Errorf("order %s was already charged", order.ID)
		}

		return recordEvent(ctx, s.outbox, entities.EventOrderPlaced, order.ID, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order placed", "order_id", order.ID, "user_id", userID, "kind", order.Kind, "price", order.Price.String())
	return order, nil
}

// Complete attaches the result PDF to a pending order. Orders placed with the
// email add-on also get an email delivery event.
func (s *OrderService) Complete(ctx context.Context, adminID int64, id, pdfURL string) (*entities.Order, error) {
	var order *entities.Order

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.lock(ctx, id); err != nil {
			return err
		}
		if err = order.Complete(pdfURL, s.now().UTC()); err != nil {
			return orderException(err)
		}
		if err = s.repo.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if err = recordEvent(ctx, s.outbox, entities.EventOrderCompleted, order.ID, order); err != nil {
			return err
		}
		if delivery, ok := order.EmailDeliveryRequest(); ok {
			return recordEvent(ctx, s.outbox, entities.EventOrderEmailRequested, order.ID, delivery)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order completed", "order_id", order.ID, "admin_id", adminID)
	return order, nil
}

// Reject closes a pending order and refunds its price once.
func (s *OrderService) Reject(ctx context.Context, adminID int64, id, reason string) (*entities.Order, error) {
	var order *entities.Order

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.lock(ctx, id); err != nil {
			return err
		}
		if err = order.Reject(reason, s.now().UTC()); err != nil {
			return orderException(err)
		}
		if err = s.repo.UpdateOrder(ctx, order); err != nil {
			return err
		}

		_, booked, err := s.wallets.Book(ctx, LedgerEntry{
			UserID:        order.UserID,
			Type:          entities.EntryOrderRefund,
			Amount:        order.Price,
			ReferenceType: entities.ReferenceOrderRefund,
			ReferenceID:   order.ID,
			Notes:         fmt.Sprintf("refund of %s order", order.Kind),
		})
		if err != nil {
			return walletException(err)
		}
		if !booked {
			return apperrors.Conflict(apperrors.WithError(entities.ErrOrderProcessed))
		}

		return recordEvent(ctx, s.outbox, entities.EventOrderRejected, order.ID, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order rejected and refunded", "order_id", order.ID, "admin_id", adminID, "amount", order.Price.String())
	return order, nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID int64) ([]entities.Order, error) {
	return s.list(ctx, entities.OrderFilter{UserID: &userID})
}

func (s *OrderService) ListForAdmin(ctx context.Context, status *entities.OrderStatus) ([]entities.Order, error) {
	return s.list(ctx, entities.OrderFilter{Status: status})
}

func (s *OrderService) list(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []entities.Order{}
	}
	return orders, nil
}

func (s *OrderService) lock(ctx context.Context, id string) (*entities.Order, error) {
	order, err := s.repo.LockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound(apperrors.WithMessage("order not found"))
	}
	return order, nil
}

func orderException(err error) error {
	switch {
	case errors.Is(err, entities.ErrOrderProcessed):
		return apperrors.Conflict(apperrors.WithError(err))
	case errors.Is(err, entities.ErrPDFRequired):
		return apperrors.BadRequest(apperrors.WithError(err))
	}
	return err
}
