package terminal

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/checkout"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/refund"
)

// Handler exposes the operator terminal: cart, checkout and refund workflow.
type Handler struct {
	registry       *Registry
	catalog        cart.Catalog
	checkout       *checkout.Service
	taxBps         int
	maxDiscountBps int
	logger         zerolog.Logger
	checkoutMW     []func(http.Handler) http.Handler
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Registry       *Registry
	Catalog        cart.Catalog
	Checkout       *checkout.Service
	TaxBps         int
	MaxDiscountBps int
	Logger         zerolog.Logger

	// CheckoutMiddleware wraps POST /checkout only.
	CheckoutMiddleware []func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	maxDiscount := cfg.MaxDiscountBps
	if maxDiscount <= 0 {
		maxDiscount = pricing.BpsDenominator
	}
	return &Handler{
		registry:       cfg.Registry,
		catalog:        cfg.Catalog,
		checkout:       cfg.Checkout,
		taxBps:         cfg.TaxBps,
		maxDiscountBps: pricing.ClampBps(maxDiscount),
		logger:         cfg.Logger,
		checkoutMW:     cfg.CheckoutMiddleware,
	}
}

// CartView is the terminal state rendered after every cart call.
type CartView struct {
	Lines              []model.LineItem    `json:"lines"`
	Pricing            pricing.Summary     `json:"pricing"`
	PaymentMethod      model.PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentMethodLabel string              `json:"paymentMethodLabel,omitempty"`
	Operator           string              `json:"operator"`
}

type addLineRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
}

type quantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type discountRequest struct {
	DiscountBps     *int     `json:"discountBps" validate:"omitempty,gte=0,lte=10000"`
	DiscountPercent *float64 `json:"discountPercent" validate:"omitempty,gte=0,lte=100"`
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,paymentmethod"`
}

type checkoutRequest struct {
	CustomerName  string `json:"customerName" validate:"max=120"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,max=254"`
}

type searchRequest struct {
	Term string `json:"term" validate:"required"`
}

type selectRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

type refundItemRequest struct {
	Quantity int    `json:"quantity" validate:"gte=0"`
	Reason   string `json:"reason" validate:"omitempty,refundreason"`
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h.registry == nil || h.catalog == nil || h.checkout == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "terminal not configured", nil)
		return false
	}
	return true
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if !h.configured(w) {
		return nil, false
	}
	op, ok := common.OperatorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return nil, false
	}
	return h.registry.Session(op), true
}

func decode(r *http.Request, dst any) error {
	if err := common.DecodeJSON(r, dst); err != nil {
		return err
	}
	return model.ValidateStruct(dst)
}

func (h *Handler) view(s *Session) CartView {
	v := CartView{
		Lines:         s.Cart.Lines(),
		Pricing:       s.Cart.Pricing(s.DiscountBps, h.taxBps),
		PaymentMethod: s.PaymentMethod,
		Operator:      s.Operator.Name,
	}
	if s.PaymentMethod != "" {
		v.PaymentMethodLabel = s.PaymentMethod.Label()
	}
	return v
}

// writeCart renders the cart. A stock shortfall from a clamped quantity is
// reported alongside the cart rather than as a failure.
func (h *Handler) writeCart(w http.ResponseWriter, s *Session, status int, warning error) {
	body := map[string]any{"data": h.view(s)}
	if appErr, ok := common.AsAppError(warning); ok {
		body["warning"] = common.ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	common.JSON(w, status, body)
}

// Cart handles GET /api/v1/terminal/cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	h.writeCart(w, s, http.StatusOK, nil)
}

// AddLine handles POST /api/v1/terminal/cart/lines.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req addLineRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	s.Lock()
	defer s.Unlock()
	if err := s.Cart.AddLine(r.Context(), h.catalog, req.ProductID); err != nil {
		common.WriteError(w, err)
		return
	}
	h.writeCart(w, s, http.StatusOK, nil)
}

// SetQuantity handles PATCH /api/v1/terminal/cart/lines/{productId}.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := common.Int64Param(r, "productId")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req quantityRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	s.Lock()
	defer s.Unlock()
	err = s.Cart.SetQuantity(r.Context(), h.catalog, id, req.Delta)
	if err != nil && !errors.Is(err, model.ErrInsufficientStock) {
		common.WriteError(w, err)
		return
	}
	h.writeCart(w, s, http.StatusOK, err)
}

// RemoveLine handles DELETE /api/v1/terminal/cart/lines/{productId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := common.Int64Param(r, "productId")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Cart.RemoveLine(id)
	h.writeCart(w, s, http.StatusOK, nil)
}

// ClearCart handles DELETE /api/v1/terminal/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	s.ResetSale()
	h.writeCart(w, s, http.StatusOK, nil)
}

// SetDiscount handles PUT /api/v1/terminal/cart/discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req discountRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	bps := 0
	switch {
	case req.DiscountBps != nil:
		bps = *req.DiscountBps
	case req.DiscountPercent != nil:
		bps = pricing.PercentToBps(*req.DiscountPercent)
	}
	if bps > h.maxDiscountBps {
		common.WriteError(w, model.Errorf(model.ErrValidation, "diskon maksimal %d bps", h.maxDiscountBps))
		return
	}
	s.Lock()
	defer s.Unlock()
	s.DiscountBps = pricing.ClampBps(bps)
	h.writeCart(w, s, http.StatusOK, nil)
}

// SetPaymentMethod handles PUT /api/v1/terminal/cart/payment-method.
func (h *Handler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req paymentMethodRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	s.Lock()
	defer s.Unlock()
	s.PaymentMethod = model.ParsePaymentMethod(req.PaymentMethod)
	h.writeCart(w, s, http.StatusOK, nil)
}

// Checkout handles POST /api/v1/terminal/checkout. The session stays locked
// for the payment delay so the cart cannot change underneath it.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	s.Lock()
	defer s.Unlock()
	tx, err := h.checkout.Complete(r.Context(), checkout.Request{
		Lines:         s.Cart.Lines(),
		PaymentMethod: s.PaymentMethod,
		DiscountBps:   s.DiscountBps,
		Operator:      s.Operator.Name,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.logger.Info().Str("operator_id", s.Operator.ID).Msg("checkout abandoned")
		}
		common.WriteError(w, err)
		return
	}
	s.ResetSale()
	common.Data(w, http.StatusCreated, tx)
}

// RefundState handles GET /api/v1/terminal/refund.
func (h *Handler) RefundState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, s.Refund.Snapshot())
}

// RefundSearch handles POST /api/v1/terminal/refund/search.
func (h *Handler) RefundSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if _, err := s.Refund.Search(r.Context(), strings.TrimSpace(req.Term)); err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s.Refund.Snapshot())
}

// RefundSelect handles POST /api/v1/terminal/refund/select.
func (h *Handler) RefundSelect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if _, err := s.Refund.SelectTransaction(r.Context(), strings.TrimSpace(req.TransactionID)); err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s.Refund.Snapshot())
}

// RefundSelectItem handles PUT /api/v1/terminal/refund/items/{productId}.
func (h *Handler) RefundSelectItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := common.Int64Param(r, "productId")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req refundItemRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	snap, err := s.Refund.SelectItem(refund.Selection{
		ProductID: id,
		Quantity:  req.Quantity,
		Reason:    model.ParseRefundReason(req.Reason),
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// RefundDeselectItem handles DELETE /api/v1/terminal/refund/items/{productId}.
func (h *Handler) RefundDeselectItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := common.Int64Param(r, "productId")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	snap, err := s.Refund.DeselectItem(id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// RefundConfirm handles POST /api/v1/terminal/refund/confirm.
func (h *Handler) RefundConfirm(w http.ResponseWriter, r *http.Request) {
	h.refundStep(w, r, (*refund.Workflow).Confirm)
}

// RefundBack handles POST /api/v1/terminal/refund/back.
func (h *Handler) RefundBack(w http.ResponseWriter, r *http.Request) {
	h.refundStep(w, r, (*refund.Workflow).Back)
}

func (h *Handler) refundStep(w http.ResponseWriter, r *http.Request, step func(*refund.Workflow) (refund.Snapshot, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := step(s.Refund)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// RefundProcess handles POST /api/v1/terminal/refund/process.
func (h *Handler) RefundProcess(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	rf, err := s.Refund.Process(r.Context(), s.Operator.Name)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, rf)
}

// RefundCancel handles POST /api/v1/terminal/refund/cancel.
func (h *Handler) RefundCancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Refund.Cancel(); err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s.Refund.Snapshot())
}

// Routes mounts the terminal endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/cart", h.Cart)
	r.Post("/cart/lines", h.AddLine)
	r.Patch("/cart/lines/{productId}", h.SetQuantity)
	r.Delete("/cart/lines/{productId}", h.RemoveLine)
	r.Delete("/cart", h.ClearCart)
	r.Put("/cart/discount", h.SetDiscount)
	r.Put("/cart/payment-method", h.SetPaymentMethod)
	r.With(h.checkoutMW...).Post("/checkout", h.Checkout)
	r.Get("/refund", h.RefundState)
	r.Post("/refund/search", h.RefundSearch)
	r.Post("/refund/select", h.RefundSelect)
	r.Put("/refund/items/{productId}", h.RefundSelectItem)
	r.Delete("/refund/items/{productId}", h.RefundDeselectItem)
	r.Post("/refund/confirm", h.RefundConfirm)
	r.Post("/refund/back", h.RefundBack)
	r.Post("/refund/process", h.RefundProcess)
	r.Post("/refund/cancel", h.RefundCancel)
}
