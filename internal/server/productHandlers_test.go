package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"pricepal/internal/model"
)

func authedRequest(method string, target string, body string, u model.User) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	uc := userContext{user: u, tokenID: "test-token"}
	return r.WithContext(setUserContext(r.Context(), uc))
}

func withMuxVars(r *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(r, vars)
}

func TestCartAdd(t *testing.T) {
	store := newFakeStore()
	u := store.addUser(model.User{Name: "Asha", Email: "asha@example.com"})
	url := "https://www.amazon.in/dp/B08N5WRWNW"
	fetcher := &fakeFetcher{
		observations: map[string]model.Observation{
			url: {
				ASIN: "B08N5WRWNW", URL: url, Name: "Echo Dot (4th Gen)",
				Price: 4499, Availability: model.AvailabilityInStock,
			},
		},
		failURLs: map[string]bool{},
		fetches:  map[string]int{},
	}
	mailer := &fakeMailer{}
	s := newTestServer(store, fetcher, mailer, newFakeCache())

	t.Run("creates tracking and sends email", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.cartAdd()(w, authedRequest(http.MethodPost, "/api/add-to-cart",
			`{"amazon_url":"`+url+`","target_price":3999}`, u))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusCreated, w.Body)
		}
		var resp struct {
			Success bool          `json:"success"`
			Product model.Product `json:"product"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("error decoding response, err: %v", err)
		}
		if !resp.Success {
			t.Error("response success = false")
		}
		p := resp.Product
		if p.ASIN != "B08N5WRWNW" || p.TargetPrice != 3999 || p.CurrentPrice != 4499 ||
			p.LowestPrice != 4499 || !p.IsActive {
			t.Errorf("unexpected Product in response: %+v", p)
		}
		sent := mailer.sentEmails()
		if len(sent) != 1 || sent[0] != "tracking-started:asha@example.com" {
			t.Errorf("sent emails = %v, want tracking-started", sent)
		}
	})

	t.Run("rejects duplicate active tracking", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.cartAdd()(w, authedRequest(http.MethodPost, "/api/add-to-cart",
			`{"amazon_url":"`+url+`","target_price":3500}`, u))

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("rejects non-positive target price", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.cartAdd()(w, authedRequest(http.MethodPost, "/api/add-to-cart",
			`{"amazon_url":"`+url+`","target_price":0}`, u))

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects URL without product ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.cartAdd()(w, authedRequest(http.MethodPost, "/api/add-to-cart",
			`{"amazon_url":"https://www.amazon.in/gp/bestsellers","target_price":100}`, u))

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCartRemove(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser(model.User{Name: "Asha", Email: "asha@example.com"})
	other := store.addUser(model.User{Name: "Ravi", Email: "ravi@example.com"})
	p := store.addProduct(model.Product{
		UserID: owner.ID.Hex(), ASIN: "B08N5WRWNW", URL: "https://www.amazon.in/dp/B08N5WRWNW",
		Name: "Echo Dot", TargetPrice: 3999, IsActive: true,
	})
	fetcher := &fakeFetcher{fetches: map[string]int{}}
	s := newTestServer(store, fetcher, &fakeMailer{}, newFakeCache())

	t.Run("forbids removing another user's product", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := authedRequest(http.MethodDelete, "/api/cart/"+p.ID.Hex(), "", other)
		r = withMuxVars(r, map[string]string{"productID": p.ID.Hex()})
		s.cartRemove()(w, r)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
		if _, ok := store.products[p.ID.Hex()]; !ok {
			t.Error("product was deleted by a non-owner")
		}
	})

	t.Run("owner removes product", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := authedRequest(http.MethodDelete, "/api/cart/"+p.ID.Hex(), "", owner)
		r = withMuxVars(r, map[string]string{"productID": p.ID.Hex()})
		s.cartRemove()(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body)
		}
		if _, ok := store.products[p.ID.Hex()]; ok {
			t.Error("product still present after removal")
		}
	})

	t.Run("unknown product ID is not found", func(t *testing.T) {
		unknown := primitive.NewObjectID().Hex()
		w := httptest.NewRecorder()
		r := authedRequest(http.MethodDelete, "/api/cart/"+unknown, "", owner)
		r = withMuxVars(r, map[string]string{"productID": unknown})
		s.cartRemove()(w, r)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestUserStats(t *testing.T) {
	store := newFakeStore()
	u := store.addUser(model.User{Name: "Asha", Email: "asha@example.com"})
	store.addProduct(model.Product{UserID: u.ID.Hex(), ASIN: "AAAAAAAAAA", TargetPrice: 1000, LowestPrice: 1200, IsActive: true})
	store.addProduct(model.Product{UserID: u.ID.Hex(), ASIN: "BBBBBBBBBB", TargetPrice: 1000, LowestPrice: 900, IsActive: false})
	store.addProduct(model.Product{UserID: u.ID.Hex(), ASIN: "CCCCCCCCCC", TargetPrice: 500, LowestPrice: 500, IsActive: false})
	fetcher := &fakeFetcher{fetches: map[string]int{}}
	s := newTestServer(store, fetcher, &fakeMailer{}, newFakeCache())

	w := httptest.NewRecorder()
	s.userStats()(w, authedRequest(http.MethodGet, "/api/stats", "", u))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		TotalProducts   int     `json:"total_products"`
		ActiveProducts  int     `json:"active_products"`
		CompletedAlerts int     `json:"completed_alerts"`
		TotalSavings    float64 `json:"total_savings"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("error decoding response, err: %v", err)
	}
	if resp.TotalProducts != 3 || resp.ActiveProducts != 1 || resp.CompletedAlerts != 2 {
		t.Errorf("counts = %d/%d/%d, want 3/1/2", resp.TotalProducts, resp.ActiveProducts, resp.CompletedAlerts)
	}
	if resp.TotalSavings != 100 {
		t.Errorf("TotalSavings = %f, want 100", resp.TotalSavings)
	}
}
