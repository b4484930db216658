// routes/routes.go
package routes

import (
	"net/http"

	"aeroclub-shop/controllers"
	"aeroclub-shop/middleware"
	"aeroclub-shop/utils"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, gate *middleware.Gate, userController *controllers.UserController, orderController *controllers.OrderController) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "ok"})
	}).Methods("GET")

	// Public routes
	router.HandleFunc("/users/register", userController.Register).Methods("POST")
	router.HandleFunc("/users/login", userController.Login).Methods("POST")

	// Authenticated user routes
	me := router.PathPrefix("/users/me").Subrouter()
	me.Use(gate.Authenticate, gate.ResolveRole)
	me.HandleFunc("", userController.GetProfile).Methods("GET")
	me.HandleFunc("", userController.UpdateProfile).Methods("PUT")

	// Admin user routes
	users := router.PathPrefix("/users").Subrouter()
	users.Use(gate.Authenticate, gate.RequireAdmin)
	users.HandleFunc("", userController.ListUsers).Methods("GET")
	users.HandleFunc("/{id}", userController.GetUser).Methods("GET")
	users.HandleFunc("/{id}/role", userController.SetRole).Methods("PUT")
	users.HandleFunc("/{id}/active", userController.SetActive).Methods("PUT")

	// Admin order routes. Registered first so /orders/stats/overview is not taken for an id.
	adminOrders := router.PathPrefix("/orders").Subrouter()
	adminOrders.Use(gate.Authenticate, gate.RequireAdmin)
	adminOrders.HandleFunc("", orderController.GetAllOrders).Methods("GET")
	adminOrders.HandleFunc("/stats/overview", orderController.GetOrderStats).Methods("GET")
	adminOrders.HandleFunc("/{id}/status", orderController.UpdateOrderStatus).Methods("PUT")

	// Owner order routes
	orders := router.PathPrefix("/orders").Subrouter()
	orders.Use(gate.Authenticate, gate.ResolveRole)
	orders.HandleFunc("", orderController.CreateOrder).Methods("POST")
	orders.HandleFunc("/from-cart", orderController.CreateOrderFromCart).Methods("POST")
	orders.HandleFunc("/my-orders", orderController.GetMyOrders).Methods("GET")
	orders.HandleFunc("/{id}", orderController.UpdateShippingAddress).Methods("PUT")
	orders.HandleFunc("/{id}/payment", orderController.ProcessPayment).Methods("POST")

	// Owner or admin
	ownerOrAdmin := router.PathPrefix("/orders").Subrouter()
	ownerOrAdmin.Use(gate.Authenticate, gate.ResolveRole)
	ownerOrAdmin.HandleFunc("/{id}", orderController.GetOrder).Methods("GET")
	ownerOrAdmin.HandleFunc("/{id}", orderController.DeleteOrder).Methods("DELETE")
}
