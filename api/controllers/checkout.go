package controllers

import (
	"net/http"

	"github.com/jadorel/afrimarket-backend/api/responses"
	"github.com/jadorel/afrimarket-backend/api/validators"
	checkoutsvc "github.com/jadorel/afrimarket-backend/internal/checkout"
	paymentssvc "github.com/jadorel/afrimarket-backend/internal/payments"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
	"github.com/jadorel/afrimarket-backend/pkg/types"
)

// Checkout converts the caller's cart into an order. Gateway-paid orders get
// a checkout session opened in the same request so the client can redirect
// straight to the payment page.
func Checkout(svc checkoutsvc.Service, payments paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		owner, _, err := cartOwner(r, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.Execute(r.Context(), owner, checkoutsvc.Input{
			CustomerEmail:   payload.CustomerEmail,
			CustomerPhone:   payload.CustomerPhone,
			PaymentMethod:   method,
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{Order: newOrderResponse(order)}
		if method == enums.PaymentMethodFedaPay && payments != nil {
			intent, payErr := payments.Initialize(r.Context(), order.ID)
			if payErr != nil {
				// The order exists and the cart is already consumed, so
				// the client must get the order back even when the
				// gateway call fails. Payment can be retried via
				// POST /orders/{orderID}/payment.
				logg.Error(r.Context(), "checkout payment initialization failed", payErr)
				msg := "payment initialization failed"
				resp.PaymentError = &msg
				responses.WriteSuccessStatus(w, http.StatusCreated, resp)
				return
			}
			resp.Payment = intent
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

type checkoutResponse struct {
	Order        *orderResponse              `json:"order"`
	Payment      *paymentssvc.CheckoutIntent `json:"payment,omitempty"`
	PaymentError *string                     `json:"payment_error,omitempty"`
}

type checkoutRequest struct {
	CustomerEmail   string         `json:"customer_email" validate:"required,email"`
	CustomerPhone   *string        `json:"customer_phone,omitempty"`
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	ShippingAddress types.Address  `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address `json:"billing_address,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
}
