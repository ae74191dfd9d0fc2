// Package gateway exposes the HTTP surface of the platform and forwards
// every request as an asynchronous request/reply exchange to the backing
// workers.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/ory/herodot"
	"github.com/pkg/errors"

	"github.com/C0kke/FitFashion/pkg/bridge"
	"github.com/C0kke/FitFashion/pkg/stats"
	"github.com/C0kke/FitFashion/pkg/transport"
)

const (
	ProductsHandlerPath = "/products"
	CartHandlerPath     = "/cart"
	OrdersHandlerPath   = "/orders"
	AuthHandlerPath     = "/auth"
)

// Dispatcher sends a request over a messaging transport and blocks until
// the matching reply arrives. *bridge.Dispatcher satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, destination, pattern string, data interface{}, opts ...bridge.SendOption) (json.RawMessage, error)
}

// Route pairs a dispatcher with the destination its requests go to.
type Route struct {
	Dispatcher  Dispatcher
	Destination string
}

type Handler struct {
	Products Route
	Cart     Route
	Auth     Route
	W        herodot.Writer
	Stats    *stats.Collector
}

func NewHandler(products, cart, auth Route, w herodot.Writer, collector *stats.Collector) *Handler {
	return &Handler{
		Products: products,
		Cart:     cart,
		Auth:     auth,
		W:        w,
		Stats:    collector,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(ProductsHandlerPath, h.ListProducts).Methods("GET", "OPTIONS")
	r.HandleFunc(ProductsHandlerPath, h.CreateProduct).Methods("POST", "OPTIONS")
	r.HandleFunc(ProductsHandlerPath+"/{id}", h.GetProduct).Methods("GET", "OPTIONS")
	r.HandleFunc(ProductsHandlerPath+"/{id}", h.UpdateProduct).Methods("PATCH", "OPTIONS")
	r.HandleFunc(ProductsHandlerPath+"/{id}/stock/decrease", h.DecreaseStock).Methods("POST", "OPTIONS")

	r.HandleFunc(CartHandlerPath+"/{userId}", h.GetCart).Methods("GET", "OPTIONS")
	r.HandleFunc(CartHandlerPath+"/{userId}/items", h.AddCartItem).Methods("POST", "OPTIONS")
	r.HandleFunc(CartHandlerPath+"/{userId}/items/{productId}", h.RemoveCartItem).Methods("DELETE", "OPTIONS")
	r.HandleFunc(CartHandlerPath+"/{userId}/checkout", h.Checkout).Methods("POST", "OPTIONS")
	r.HandleFunc(OrdersHandlerPath, h.ListAllOrders).Methods("GET", "OPTIONS")
	r.HandleFunc(OrdersHandlerPath+"/{userId}", h.ListOrders).Methods("GET", "OPTIONS")

	r.HandleFunc(AuthHandlerPath+"/login", h.Login).Methods("POST", "OPTIONS")
	r.HandleFunc(AuthHandlerPath+"/register", h.Register).Methods("POST", "OPTIONS")
	r.HandleFunc(AuthHandlerPath+"/profile", h.GetProfile).Methods("GET", "OPTIONS")
	r.HandleFunc(AuthHandlerPath+"/profile", h.UpdateProfile).Methods("PATCH", "OPTIONS")
	r.HandleFunc(AuthHandlerPath+"/users", h.ListUsers).Methods("GET", "OPTIONS")
	r.HandleFunc(AuthHandlerPath+"/users/{id}", h.AdminUpdateUser).Methods("PATCH", "OPTIONS")
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.Products, "find_all_products", struct{}{})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.Products, "find_one_product", map[string]string{"id": mux.Vars(r)["id"]})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, h.Products, "create_product", data)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	data["id"] = json.RawMessage(`"` + mux.Vars(r)["id"] + `"`)
	h.dispatch(w, r, h.Products, "update_product", data)
}

func (h *Handler) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	data["id"] = json.RawMessage(`"` + mux.Vars(r)["id"] + `"`)
	h.dispatch(w, r, h.Products, "decrease_stock", data)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.Cart, "get_cart_by_user", map[string]string{"userId": mux.Vars(r)["userId"]})
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	data["userId"] = json.RawMessage(`"` + mux.Vars(r)["userId"] + `"`)
	h.dispatch(w, r, h.Cart, "add_item_to_cart", data)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.dispatch(w, r, h.Cart, "remove_item_from_cart", map[string]string{
		"userId":    vars["userId"],
		"productId": vars["productId"],
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	// The body carries the shipping address the orders worker requires.
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	data["userId"] = json.RawMessage(`"` + mux.Vars(r)["userId"] + `"`)
	h.dispatch(w, r, h.Cart, "process_checkout", data)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.Cart, "get_user_orders", map[string]string{"userId": mux.Vars(r)["userId"]})
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.Cart, "get_all_orders", struct{}{})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, h.Auth, "LOGIN", data)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, h.Auth, "REGISTER", data)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.Auth, "GET_PROFILE", struct{}{})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, h.Auth, "UPDATE_PROFILE", data)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.Auth, "LIST_USERS", struct{}{})
}

func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	data["id"] = json.RawMessage(`"` + mux.Vars(r)["id"] + `"`)
	h.dispatch(w, r, h.Auth, "ADMIN_UPDATE_USER", data)
}

// decodeBody reads the request body into a generic object so route
// parameters can be merged in before dispatching.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	data := make(map[string]json.RawMessage)
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.W.WriteError(w, r, &herodot.DefaultError{
			CodeField:  http.StatusBadRequest,
			ErrorField: "request body is not a JSON object",
		})
		return nil, false
	}
	return data, true
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, route Route, pattern string, data interface{}) {
	var opts []bridge.SendOption
	if token := bearerToken(r); token != "" {
		opts = append(opts, bridge.WithToken(token))
	}

	raw, err := route.Dispatcher.Send(r.Context(), route.Destination, pattern, data, opts...)
	h.Stats.RecordDispatch(route.Destination, dispatchOutcome(err))
	if err != nil {
		h.writeDispatchError(w, r, err)
		return
	}

	h.W.Write(w, r, raw)
}

func dispatchOutcome(err error) string {
	switch {
	case err == nil:
		return stats.OutcomeResolved
	case errors.Is(err, bridge.ErrTimeout):
		return stats.OutcomeTimeout
	default:
		var domainErr *bridge.DomainError
		if errors.As(err, &domainErr) {
			return stats.OutcomeDomain
		}
		return stats.OutcomeFailed
	}
}

func (h *Handler) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *bridge.DomainError
	switch {
	case errors.Is(err, bridge.ErrTimeout):
		h.W.WriteError(w, r, &herodot.DefaultError{
			CodeField:  http.StatusGatewayTimeout,
			ErrorField: "upstream service did not respond in time",
		})
	case errors.Is(err, transport.ErrNotReady):
		h.W.WriteError(w, r, &herodot.DefaultError{
			CodeField:  http.StatusServiceUnavailable,
			ErrorField: "message broker is unavailable",
		})
	case errors.As(err, &domainErr):
		code := domainErr.Status()
		if code < 400 || code > 599 {
			code = http.StatusBadGateway
		}
		h.W.WriteError(w, r, &herodot.DefaultError{
			CodeField:  code,
			ErrorField: domainErr.Error(),
		})
	default:
		h.W.WriteError(w, r, errors.WithStack(err))
	}
}

// bearerToken extracts the opaque credential from the Authorization
// header. Both "Bearer x" and "Token x" prefixes are accepted.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	for _, prefix := range []string{"Bearer ", "Token "} {
		if strings.HasPrefix(auth, prefix) {
			return strings.TrimPrefix(auth, prefix)
		}
	}
	return auth
}
