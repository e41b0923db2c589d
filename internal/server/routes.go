package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.loggingMw, s.maxBytesMw)

	api.HandleFunc("/fetch-product", s.productFetch()).Methods(http.MethodPost)
	api.HandleFunc("/user/register", s.userRegister()).Methods(http.MethodPost)
	api.HandleFunc("/user/login", s.userLogin()).Methods(http.MethodPost)
	api.HandleFunc("/user/password-reset/request", s.passwordResetRequest()).Methods(http.MethodPost)
	api.HandleFunc("/user/password-reset/confirm", s.passwordResetConfirm()).Methods(http.MethodPost)

	authAPI := api.NewRoute().Subrouter()
	authAPI.Use(s.authMw)
	authAPI.HandleFunc("/user/logout", s.userLogout()).Methods(http.MethodPost)
	authAPI.HandleFunc("/user/profile", s.userProfile()).Methods(http.MethodGet)
	authAPI.HandleFunc("/add-to-cart", s.cartAdd()).Methods(http.MethodPost)
	authAPI.HandleFunc("/cart", s.cartGet()).Methods(http.MethodGet)
	authAPI.HandleFunc("/cart/{productID}", s.cartRemove()).Methods(http.MethodDelete)
	authAPI.HandleFunc("/stats", s.userStats()).Methods(http.MethodGet)

	api.PathPrefix("").Handler(s.notFoundHandler())

	return r
}
