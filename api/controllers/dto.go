package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
)

type cartResponse struct {
	ID            uuid.UUID          `json:"id"`
	CouponCode    *string            `json:"coupon_code,omitempty"`
	Currency      string             `json:"currency"`
	SubtotalCents int                `json:"subtotal_cents"`
	DiscountCents int                `json:"discount_cents"`
	TaxCents      int                `json:"tax_cents"`
	ShippingCents int                `json:"shipping_cents"`
	TotalCents    int                `json:"total_cents"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	Items         []cartItemResponse `json:"items"`
}

type cartItemResponse struct {
	ID                uuid.UUID  `json:"id"`
	ProductID         uuid.UUID  `json:"product_id"`
	VariationID       *uuid.UUID `json:"variation_id,omitempty"`
	Quantity          int        `json:"quantity"`
	UnitPriceCents    int        `json:"unit_price_cents"`
	LineSubtotalCents int        `json:"line_subtotal_cents"`
}

func newCartResponse(cart *models.Cart) *cartResponse {
	if cart == nil {
		return nil
	}
	items := make([]cartItemResponse, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = cartItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			VariationID:       item.VariationID,
			Quantity:          item.Quantity,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
		}
	}
	return &cartResponse{
		ID:            cart.ID,
		CouponCode:    cart.CouponCode,
		Currency:      string(cart.Currency),
		SubtotalCents: cart.SubtotalCents,
		DiscountCents: cart.DiscountCents,
		TaxCents:      cart.TaxCents,
		ShippingCents: cart.ShippingCents,
		TotalCents:    cart.TotalCents,
		ExpiresAt:     cart.ExpiresAt,
		Items:         items,
	}
}

type orderResponse struct {
	ID            uuid.UUID                    `json:"id"`
	OrderNumber   string                       `json:"order_number"`
	Status        string                       `json:"status"`
	PaymentStatus string                       `json:"payment_status"`
	PaymentMethod string                       `json:"payment_method"`
	CouponCode    *string                      `json:"coupon_code,omitempty"`
	Currency      string                       `json:"currency"`
	SubtotalCents int                          `json:"subtotal_cents"`
	DiscountCents int                          `json:"discount_cents"`
	TaxCents      int                          `json:"tax_cents"`
	ShippingCents int                          `json:"shipping_cents"`
	TotalCents    int                          `json:"total_cents"`
	Notes         *string                      `json:"notes,omitempty"`
	Items         []orderItemResponse          `json:"items"`
	StatusHistory []orderStatusHistoryResponse `json:"status_history,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
}

type orderItemResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	VariationID    *uuid.UUID `json:"variation_id,omitempty"`
	ProductName    string     `json:"product_name"`
	SKU            string     `json:"sku"`
	VariationName  *string    `json:"variation_name,omitempty"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Quantity       int        `json:"quantity"`
	TotalCents     int        `json:"total_cents"`
}

type orderStatusHistoryResponse struct {
	Status    string    `json:"status"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newOrderResponse(order *models.Order) *orderResponse {
	if order == nil {
		return nil
	}
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariationID:    item.VariationID,
			ProductName:    item.ProductName,
			SKU:            item.SKU,
			VariationName:  item.VariationName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			TotalCents:     item.TotalCents,
		}
	}
	history := make([]orderStatusHistoryResponse, len(order.StatusHistory))
	for i, entry := range order.StatusHistory {
		history[i] = orderStatusHistoryResponse{
			Status:    string(entry.Status),
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		}
	}
	return &orderResponse{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaymentMethod: string(order.PaymentMethod),
		CouponCode:    order.CouponCode,
		Currency:      string(order.Currency),
		SubtotalCents: order.SubtotalCents,
		DiscountCents: order.DiscountCents,
		TaxCents:      order.TaxCents,
		ShippingCents: order.ShippingCents,
		TotalCents:    order.TotalCents,
		Notes:         order.Notes,
		Items:         items,
		StatusHistory: history,
		CreatedAt:     order.CreatedAt,
	}
}
