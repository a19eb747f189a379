package services

import (
	"context"
	"fmt"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/pkg/utils"
)

// UpdateOrderStatusRequest is used for updating the status of an order.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderService reads finalized orders and moves them through their lifecycle.
type OrderService interface {
	GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, error)
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	GetKitchenQueue(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, req UpdateOrderStatusRequest) (*models.Order, error)
}

type orderService struct {
	orderRepo repositories.OrderRepository
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(or repositories.OrderRepository) OrderService {
	return &orderService{orderRepo: or}
}

func (s *orderService) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, error) {
	if filters.OrderType != nil && !models.IsValidOrderType(*filters.OrderType) {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrValidation, *filters.OrderType)
	}
	for _, st := range filters.Statuses {
		if !models.IsValidOrderStatus(st) {
			return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, st)
		}
	}
	orders, err := s.orderRepo.List(ctx, filters)
	if err != nil {
		return nil, backendError("list orders", err, nil)
	}
	return orders, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, backendError("get order", err, ErrOrderNotFound)
	}
	return order, nil
}

// GetKitchenQueue lists orders whose status belongs to the kitchen view.
func (s *orderService) GetKitchenQueue(ctx context.Context) ([]models.Order, error) {
	statuses := make([]string, 0, len(models.KitchenStatuses))
	for _, st := range models.KitchenStatuses {
		statuses = append(statuses, string(st))
	}
	orders, err := s.orderRepo.List(ctx, models.OrderFilters{Statuses: statuses})
	if err != nil {
		return nil, backendError("list kitchen orders", err, nil)
	}
	return orders, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID int64, req UpdateOrderStatusRequest) (*models.Order, error) {
	if !models.IsValidOrderStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, req.Status)
	}
	next := models.OrderStatus(req.Status)

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, backendError("get order", err, ErrOrderNotFound)
	}
	if !order.Status.CanTransitionTo(next, order.OrderType) {
		return nil, models.TransitionError("order", order.Status, next)
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, orderID, next)
	if err != nil {
		return nil, backendError("update order status", err, ErrOrderNotFound)
	}
	utils.LogInfo("Order status changed", map[string]interface{}{"order_id": orderID, "from": string(order.Status), "to": string(next)})
	return updated, nil
}
