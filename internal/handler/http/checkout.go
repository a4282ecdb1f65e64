package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Innie4/LaceandLegacy/internal/checkout"
	"github.com/Innie4/LaceandLegacy/internal/order"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
	"github.com/Innie4/LaceandLegacy/pkg/httputil"
	"github.com/Innie4/LaceandLegacy/pkg/middleware"
	"github.com/Innie4/LaceandLegacy/pkg/validator"
)

// CheckoutHandler handles checkout submission and session lookup.
type CheckoutHandler struct {
	service *checkout.Service
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *checkout.Service, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// AddressRequest is the shipping address part of a checkout submission.
type AddressRequest struct {
	FullName    string `json:"full_name" validate:"required,min=1,max=200"`
	AddressLine string `json:"address_line" validate:"required,min=1,max=500"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code" validate:"required"`
	Country     string `json:"country" validate:"required,len=2"`
	Phone       string `json:"phone"`
}

// CardRequest is the payment card part of a checkout submission.
type CardRequest struct {
	Number string `json:"number" validate:"required"`
	Holder string `json:"holder" validate:"required"`
	Expiry string `json:"expiry" validate:"required"`
	CVV    string `json:"cvv" validate:"required"`
}

// SubmitRequest is the JSON request body for submitting a checkout.
type SubmitRequest struct {
	ShippingAddress AddressRequest `json:"shipping_address" validate:"required"`
	Card            CardRequest    `json:"card" validate:"required"`
}

// Submit handles POST /api/v1/checkout
//
// A declined payment returns 402 with the failed session attached so the
// client can show the decline reason without a second request.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req SubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.service.Submit(r.Context(), userID, checkout.SubmitInput{
		ShippingAddress: order.Address{
			FullName:    req.ShippingAddress.FullName,
			AddressLine: req.ShippingAddress.AddressLine,
			City:        req.ShippingAddress.City,
			State:       req.ShippingAddress.State,
			PostalCode:  req.ShippingAddress.PostalCode,
			Country:     req.ShippingAddress.Country,
			Phone:       req.ShippingAddress.Phone,
		},
		Card: checkout.Card{
			Number: req.Card.Number,
			Holder: req.Card.Holder,
			Expiry: req.Card.Expiry,
			CVV:    req.Card.CVV,
		},
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrPaymentDeclined) && session != nil {
			httputil.WriteJSON(w, http.StatusPaymentRequired, httputil.Response{
				Data: session,
				Error: &httputil.ErrorResponse{
					Code:    "PAYMENT_DECLINED",
					Message: session.FailureReason,
				},
			})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: session})
}

// GetSession handles GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "id")

	session, err := h.service.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}
