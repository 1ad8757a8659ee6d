package pos

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"github.com/wholesale-pos/wholesale-pos/internal/assistant"
	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/checkout"
	"github.com/wholesale-pos/wholesale-pos/internal/platform/httpx"
	"github.com/wholesale-pos/wholesale-pos/internal/remotesync"
	"github.com/wholesale-pos/wholesale-pos/internal/settings"
)

const (
	defaultSalesLimit = 50
	maxSalesLimit     = 500
)

// Handler wires the JSON API for the store.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the store handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the store routes on r, which is expected to be the
// /api sub-router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}", h.replaceProduct)
	r.Patch("/products/{id}", h.patchProduct)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Get("/categories", h.listCategories)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addCartItem)
		r.Patch("/items/{productID}", h.changeCartItem)
		r.Delete("/items/{productID}", h.removeCartItem)
	})

	r.Post("/checkout", h.checkout)
	r.Get("/sales", h.listSales)
	r.Get("/dashboard", h.dashboard)

	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.putSettings)

	r.Get("/sync/status", h.syncStatus)
	r.Post("/sync/pull", h.syncPull)
	r.Post("/sync/test", h.syncTest)
	r.Post("/sync/push", h.syncPush)

	r.Post("/assistant/ask", h.ask)
}

type productResponse struct {
	Product catalog.Product `json:"product"`
	Sync    string          `json:"sync"`
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
}

type cartDeltaRequest struct {
	Delta int `json:"delta"`
}

type testConnectionRequest struct {
	URL string `json:"url"`
}

type askRequest struct {
	Query string `json:"query"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	httpx.JSON(w, http.StatusOK, h.service.SearchProducts(q.Get("q"), q.Get("category")))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Product(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, pending, err := h.service.AddProduct(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, productResponse{Product: p, Sync: pending.State()})
}

func (h *Handler) replaceProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, pending, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productResponse{Product: p, Sync: pending.State()})
}

func (h *Handler) patchProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductPatchInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, pending, err := h.service.PatchProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productResponse{Product: p, Sync: pending.State()})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"sync": pending.State()})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Categories())
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Cart())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.ClearCart())
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	view, err := h.service.AddToCart(strings.TrimSpace(req.ProductID))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) changeCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartDeltaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	view, err := h.service.ChangeCartQuantity(chi.URLParam(r, "productID"), req.Delta)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveFromCart(chi.URLParam(r, "productID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	sale, pending, err := h.service.Checkout(r.Context(), r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"sale": sale, "sync": pending.State()})
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	limit := defaultSalesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if limit == 0 || limit > maxSalesLimit {
		limit = maxSalesLimit
	}
	httpx.JSON(w, http.StatusOK, h.service.Sales(limit))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Dashboard())
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Settings())
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var cfg settings.AppConfig
	if err := httpx.DecodeJSON(r, &cfg); err != nil {
		h.respondError(w, r, err)
		return
	}
	saved, err := h.service.UpdateSettings(r.Context(), cfg)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.SyncStatus())
}

func (h *Handler) syncPull(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LoadFromRemote(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) syncTest(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	products, err := h.service.TestConnection(r.Context(), req.URL)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "products": len(products)})
}

func (h *Handler) syncPush(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.PushToRemote()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"sync": pending.State()})
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	answer, err := h.service.Ask(r.Context(), req.Query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		permErr      *remotesync.PermissionError
		malformedErr *remotesync.MalformedResponseError
		networkErr   *remotesync.NetworkError
		remoteErr    *remotesync.RemoteError
	)
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrCartItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCheckout), errors.Is(err, catalog.ErrDuplicateID):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		httpx.Problem(w, http.StatusConflict, "Empty Cart", err.Error())
	case errors.Is(err, ErrIDMismatch), errors.Is(err, catalog.ErrNegativeStock), errors.Is(err, catalog.ErrMissingID):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Product", err.Error())
	case errors.Is(err, assistant.ErrEmptyQuery):
		httpx.Problem(w, http.StatusBadRequest, "Empty Question", err.Error())
	case errors.Is(err, settings.ErrSyncDisabled):
		httpx.Problem(w, http.StatusConflict, "Sync Not Configured", err.Error())
	case errors.Is(err, ErrAssistantUnavailable), errors.Is(err, assistant.ErrNotConfigured):
		httpx.Problem(w, http.StatusServiceUnavailable, "Assistant Unavailable", err.Error())
	case errors.Is(err, assistant.ErrEmptyAnswer):
		httpx.Problem(w, http.StatusBadGateway, "Assistant Error", err.Error())
	case errors.As(err, &permErr):
		httpx.Problem(w, http.StatusBadGateway, "Remote Permission Denied", err.Error())
	case errors.As(err, &malformedErr):
		httpx.Problem(w, http.StatusBadGateway, "Malformed Remote Response", err.Error())
	case errors.As(err, &remoteErr):
		httpx.Problem(w, http.StatusBadGateway, "Remote Error", err.Error())
	case errors.As(err, &networkErr):
		if errors.Is(err, context.DeadlineExceeded) {
			httpx.Problem(w, http.StatusGatewayTimeout, "Remote Timeout", err.Error())
			return
		}
		httpx.Problem(w, http.StatusBadGateway, "Remote Unreachable", err.Error())
	default:
		if isServerError(err) {
			h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

func isServerError(err error) bool {
	var fieldErr httpx.FieldErrors
	return !errors.As(err, &fieldErr) &&
		!errors.Is(err, httpx.ErrValidation) &&
		!errors.Is(err, httpx.ErrNotFound) &&
		!errors.Is(err, httpx.ErrConflict)
}
