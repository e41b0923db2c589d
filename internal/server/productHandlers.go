package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"pricepal/internal/client"
	"pricepal/internal/model"
)

func (s Server) productFetch() http.HandlerFunc {
	type request struct {
		AmazonURL string `json:"amazon_url"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("productFetch: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		o, err := s.Amazon.AmazonGetProduct(r.Context(), req.AmazonURL)
		if err != nil {
			if errors.Is(err, client.ErrProductIdentifier) {
				s.Logger.Debugf("productFetch: No product ID in URL: %s, err: %v", req.AmazonURL, err)
				http.Error(w, "No Amazon product ID found in URL", http.StatusBadRequest)
				return
			}
			if errors.Is(err, client.ErrAmazonFetch) {
				s.Logger.Errorf("productFetch: Error fetching product page for URL: %s, err: %v", req.AmazonURL, err)
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			s.Logger.Errorf("productFetch: Error getting product for URL: %s, err: %v", req.AmazonURL, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, o, http.StatusOK)
	}
}

func (s Server) cartAdd() http.HandlerFunc {
	type request struct {
		AmazonURL   string  `json:"amazon_url"`
		TargetPrice float64 `json:"target_price"`
	}
	type response struct {
		Success   bool          `json:"success"`
		ProductID string        `json:"product_id"`
		Product   model.Product `json:"product"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("cartAdd: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("cartAdd: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if req.TargetPrice <= 0 {
			s.Logger.Debugf("cartAdd: Invalid target price: %f, UserID: %s", req.TargetPrice, uc.user.ID.Hex())
			http.Error(w, "Target price must be greater than zero", http.StatusBadRequest)
			return
		}

		o, err := s.Amazon.AmazonGetProduct(r.Context(), req.AmazonURL)
		if err != nil {
			if errors.Is(err, client.ErrProductIdentifier) {
				s.Logger.Debugf("cartAdd: No product ID in URL: %s, err: %v", req.AmazonURL, err)
				http.Error(w, "No Amazon product ID found in URL", http.StatusBadRequest)
				return
			}
			if errors.Is(err, client.ErrAmazonFetch) {
				s.Logger.Errorf("cartAdd: Error fetching product page for URL: %s, err: %v", req.AmazonURL, err)
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			s.Logger.Errorf("cartAdd: Error getting product for URL: %s, err: %v", req.AmazonURL, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if _, err = s.DB.ProductFindActiveByUserAndASIN(r.Context(), uc.user.ID.Hex(), o.ASIN); err == nil {
			s.Logger.Debugf("cartAdd: ASIN: %s already tracked by UserID: %s", o.ASIN, uc.user.ID.Hex())
			http.Error(w, "Product is already being tracked", http.StatusUnprocessableEntity)
			return
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			s.Logger.Errorf("cartAdd: Error finding Product with ASIN: %s for UserID: %s, err: %v",
				o.ASIN, uc.user.ID.Hex(), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		p := model.Product{
			UserID:       uc.user.ID.Hex(),
			ASIN:         o.ASIN,
			URL:          o.URL,
			Name:         o.Name,
			ImageURL:     o.ImageURL,
			CurrentPrice: o.Price,
			TargetPrice:  req.TargetPrice,
			LowestPrice:  o.Price,
			IsActive:     true,
		}
		id, err := s.DB.ProductInsert(r.Context(), p)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				s.Logger.Debugf("cartAdd: Error duplicate key when inserting Product with ASIN: %s for UserID: %s, err: %v",
					o.ASIN, uc.user.ID.Hex(), err)
				http.Error(w, "Product is already being tracked", http.StatusUnprocessableEntity)
				return
			}
			s.Logger.Errorf("cartAdd: Error inserting Product, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			s.Logger.Errorf("cartAdd: Error parsing inserted ProductID: %s, err: %v", id, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		p.ID = oid

		s.notifyTrackingStarted(uc.user, p)
		s.writeJsonResponse(w, response{
			Success:   true,
			ProductID: id,
			Product:   p,
		}, http.StatusCreated)
	}
}

func (s Server) cartGet() http.HandlerFunc {
	type response struct {
		Products       []model.Product `json:"products"`
		TotalProducts  int             `json:"total_products"`
		ActiveProducts int             `json:"active_products"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("cartGet: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		products, err := s.DB.ProductsFindByUser(r.Context(), uc.user.ID.Hex())
		if err != nil {
			s.Logger.Errorf("cartGet: Error finding Products for UserID: %s, err: %v", uc.user.ID.Hex(), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		active := 0
		for _, p := range products {
			if p.IsActive {
				active++
			}
		}
		s.writeJsonResponse(w, response{
			Products:       products,
			TotalProducts:  len(products),
			ActiveProducts: active,
		}, http.StatusOK)
	}
}

func (s Server) cartRemove() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("cartRemove: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		productID := mux.Vars(r)["productID"]

		p, err := s.DB.ProductFindOne(r.Context(), productID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, primitive.ErrInvalidHex) {
				s.Logger.Debugf("cartRemove: Product not found with ProductID: %s, err: %v", productID, err)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("cartRemove: Error finding Product with ProductID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if p.UserID != uc.user.ID.Hex() {
			s.Logger.Debugf("cartRemove: UserID: %s does not own ProductID: %s", uc.user.ID.Hex(), productID)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		if err = s.DB.ProductDelete(r.Context(), productID); err != nil {
			s.Logger.Errorf("cartRemove: Error deleting Product with ProductID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) userStats() http.HandlerFunc {
	type response struct {
		TotalProducts   int     `json:"total_products"`
		ActiveProducts  int     `json:"active_products"`
		CompletedAlerts int     `json:"completed_alerts"`
		TotalSavings    float64 `json:"total_savings"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userStats: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		products, err := s.DB.ProductsFindByUser(r.Context(), uc.user.ID.Hex())
		if err != nil {
			s.Logger.Errorf("userStats: Error finding Products for UserID: %s, err: %v", uc.user.ID.Hex(), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		resp := response{TotalProducts: len(products)}
		for _, p := range products {
			if p.IsActive {
				resp.ActiveProducts++
				continue
			}
			resp.CompletedAlerts++
			if saved := p.TargetPrice - p.LowestPrice; saved > 0 {
				resp.TotalSavings += saved
			}
		}
		s.writeJsonResponse(w, resp, http.StatusOK)
	}
}
