package server

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"pricepal/internal/cache"
	"pricepal/internal/logger"
	"pricepal/internal/model"
)

type fakeStore struct {
	mu           sync.Mutex
	products     map[string]model.Product
	users        map[string]model.User
	priceUpdates map[string][]float64
	deactivated  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:     map[string]model.Product{},
		users:        map[string]model.User{},
		priceUpdates: map[string][]float64{},
		deactivated:  map[string]bool{},
	}
}

func (f *fakeStore) addProduct(p model.Product) model.Product {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.products[p.ID.Hex()] = p
	return p
}

func (f *fakeStore) addUser(u model.User) model.User {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.users[u.ID.Hex()] = u
	return u
}

func (f *fakeStore) ProductInsert(_ context.Context, p model.Product) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addProduct(p).ID.Hex(), nil
}

func (f *fakeStore) ProductFindOne(_ context.Context, productID string) (model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return p, mongo.ErrNoDocuments
	}
	return p, nil
}

func (f *fakeStore) ProductFindActiveByUserAndASIN(_ context.Context, userID string, asin string) (model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.IsActive && p.UserID == userID && p.ASIN == asin {
			return p, nil
		}
	}
	return model.Product{}, mongo.ErrNoDocuments
}

func (f *fakeStore) ProductsFindByUser(_ context.Context, userID string) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ps []model.Product
	for _, p := range f.products {
		if p.UserID == userID {
			ps = append(ps, p)
		}
	}
	return ps, nil
}

func (f *fakeStore) ProductsFindActive(_ context.Context) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ps []model.Product
	for _, p := range f.products {
		if p.IsActive {
			ps = append(ps, p)
		}
	}
	return ps, nil
}

func (f *fakeStore) ProductPricesUpdate(_ context.Context, productID primitive.ObjectID, currentPrice float64, lowestPrice float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID.Hex()]
	if !ok {
		return errors.New("product not found")
	}
	p.CurrentPrice = currentPrice
	p.LowestPrice = lowestPrice
	f.products[productID.Hex()] = p
	f.priceUpdates[productID.Hex()] = append(f.priceUpdates[productID.Hex()], currentPrice)
	return nil
}

func (f *fakeStore) ProductDeactivate(_ context.Context, productID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID.Hex()]
	if !ok || !p.IsActive {
		return errors.New("no active product to deactivate")
	}
	p.IsActive = false
	f.products[productID.Hex()] = p
	f.deactivated[productID.Hex()] = true
	return nil
}

func (f *fakeStore) ProductDelete(_ context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, productID)
	return nil
}

func (f *fakeStore) UserInsert(_ context.Context, u model.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUser(u).ID.Hex(), nil
}

func (f *fakeStore) UserFindByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return u, errors.New("user not found")
	}
	return u, nil
}

func (f *fakeStore) UserFindByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, errors.New("user not found")
}

func (f *fakeStore) UsersFindAll(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var us []model.User
	for _, u := range f.users {
		us = append(us, u)
	}
	return us, nil
}

func (f *fakeStore) UserPasswordUpdate(_ context.Context, id string, password []byte) error {
	return errors.New("not implemented")
}

type fakeFetcher struct {
	mu           sync.Mutex
	observations map[string]model.Observation
	failURLs     map[string]bool
	fetches      map[string]int
}

func (f *fakeFetcher) AmazonGetProduct(_ context.Context, rawURL string) (model.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[rawURL]++
	if f.failURLs[rawURL] {
		return model.Observation{}, errors.New("fetch failed")
	}
	o, ok := f.observations[rawURL]
	if !ok {
		return o, errors.New("no observation configured")
	}
	return o, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMailer) record(kind string, to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, kind+":"+to)
}

func (f *fakeMailer) SendWelcome(u model.User) error { f.record("welcome", u.Email); return nil }
func (f *fakeMailer) SendPasswordResetOTP(email string, otp string) error {
	f.record("otp", email)
	return nil
}
func (f *fakeMailer) SendTrackingStarted(u model.User, p model.Product) error {
	f.record("tracking-started", u.Email)
	return nil
}
func (f *fakeMailer) SendPriceAlert(u model.User, p model.Product, currentPrice float64, lowestPrice float64) error {
	f.record("price-alert", u.Email)
	return nil
}
func (f *fakeMailer) SendThankYou(u model.User, p model.Product) error {
	f.record("thank-you", u.Email)
	return nil
}
func (f *fakeMailer) SendWeeklyReminder(u model.User) error {
	f.record("weekly-reminder", u.Email)
	return nil
}

func (f *fakeMailer) sentEmails() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeCache struct {
	mu           sync.Mutex
	sessions     map[string][]byte
	otps         map[string][]byte
	observations map[string]model.Observation
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		sessions:     map[string][]byte{},
		otps:         map[string][]byte{},
		observations: map[string]model.Observation{},
	}
}

func (f *fakeCache) SessionSet(_ context.Context, userID string, tokenID string, tokenHash []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[userID+":"+tokenID] = tokenHash
	return nil
}

func (f *fakeCache) SessionGet(_ context.Context, userID string, tokenID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.sessions[userID+":"+tokenID]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return h, nil
}

func (f *fakeCache) SessionDelete(_ context.Context, userID string, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID+":"+tokenID)
	return nil
}

func (f *fakeCache) OTPSet(_ context.Context, email string, otpHash []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otps[email] = otpHash
	return nil
}

func (f *fakeCache) OTPGet(_ context.Context, email string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.otps[email]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return h, nil
}

func (f *fakeCache) OTPDelete(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.otps, email)
	return nil
}

func (f *fakeCache) ObservationSet(_ context.Context, o model.Observation, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observations[o.ASIN] = o
	return nil
}

func (f *fakeCache) ObservationGet(_ context.Context, asin string) (model.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.observations[asin]
	if !ok {
		return o, cache.ErrNotFound
	}
	return o, nil
}

func newTestServer(store *fakeStore, fetcher *fakeFetcher, mailer *fakeMailer, kc *fakeCache) Server {
	return Server{
		DB:                store,
		Amazon:            fetcher,
		Mailer:            mailer,
		Cache:             kc,
		Logger:            logger.NewLogger(logger.LevelOff, io.Discard),
		ScrapeConcurrency: 2,
		ObservationTTL:    time.Minute,
	}
}

func TestCheckAllPricesFailureIsolation(t *testing.T) {
	store := newFakeStore()
	pA := store.addProduct(model.Product{
		UserID: "u1", ASIN: "AAAAAAAAAA", URL: "https://www.amazon.in/dp/AAAAAAAAAA",
		Name: "Product A", CurrentPrice: 1000, TargetPrice: 500, LowestPrice: 1000, IsActive: true,
	})
	pB := store.addProduct(model.Product{
		UserID: "u1", ASIN: "BBBBBBBBBB", URL: "https://www.amazon.in/dp/BBBBBBBBBB",
		Name: "Product B", CurrentPrice: 2000, TargetPrice: 500, LowestPrice: 2000, IsActive: true,
	})
	fetcher := &fakeFetcher{
		observations: map[string]model.Observation{
			pB.URL: {ASIN: pB.ASIN, URL: pB.URL, Name: pB.Name, Price: 1800},
		},
		failURLs: map[string]bool{pA.URL: true},
		fetches:  map[string]int{},
	}
	s := newTestServer(store, fetcher, &fakeMailer{}, newFakeCache())

	s.CheckAllPrices(context.Background())

	if len(store.priceUpdates[pA.ID.Hex()]) != 0 {
		t.Errorf("failed product got price updates: %v", store.priceUpdates[pA.ID.Hex()])
	}
	got := store.priceUpdates[pB.ID.Hex()]
	if len(got) != 1 || got[0] != 1800 {
		t.Errorf("healthy product price updates = %v, want [1800]", got)
	}
}

func TestCheckAllPricesAlertSequence(t *testing.T) {
	store := newFakeStore()
	u := store.addUser(model.User{Name: "Asha", Email: "asha@example.com"})
	p := store.addProduct(model.Product{
		UserID: u.ID.Hex(), ASIN: "CCCCCCCCCC", URL: "https://www.amazon.in/dp/CCCCCCCCCC",
		Name: "Product C", CurrentPrice: 1200, TargetPrice: 999, LowestPrice: 1200, IsActive: true,
	})
	fetcher := &fakeFetcher{
		observations: map[string]model.Observation{
			p.URL: {ASIN: p.ASIN, URL: p.URL, Name: p.Name, Price: 950},
		},
		failURLs: map[string]bool{},
		fetches:  map[string]int{},
	}
	mailer := &fakeMailer{}
	s := newTestServer(store, fetcher, mailer, newFakeCache())

	s.CheckAllPrices(context.Background())

	if !store.deactivated[p.ID.Hex()] {
		t.Error("alerted product was not deactivated")
	}
	updated := store.products[p.ID.Hex()]
	if updated.CurrentPrice != 950 || updated.LowestPrice != 950 {
		t.Errorf("prices = %f/%f, want 950/950", updated.CurrentPrice, updated.LowestPrice)
	}
	want := []string{"price-alert:asha@example.com", "thank-you:asha@example.com"}
	got := mailer.sentEmails()
	if len(got) != len(want) {
		t.Fatalf("sent emails = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent emails = %v, want %v", got, want)
		}
	}
}

func TestCheckAllPricesSkipsZeroPrice(t *testing.T) {
	store := newFakeStore()
	p := store.addProduct(model.Product{
		UserID: "u1", ASIN: "DDDDDDDDDD", URL: "https://www.amazon.in/dp/DDDDDDDDDD",
		Name: "Product D", CurrentPrice: 700, TargetPrice: 999, LowestPrice: 700, IsActive: true,
	})
	fetcher := &fakeFetcher{
		observations: map[string]model.Observation{
			p.URL: {ASIN: p.ASIN, URL: p.URL, Name: p.Name, Price: 0},
		},
		failURLs: map[string]bool{},
		fetches:  map[string]int{},
	}
	mailer := &fakeMailer{}
	s := newTestServer(store, fetcher, mailer, newFakeCache())

	s.CheckAllPrices(context.Background())

	if len(store.priceUpdates[p.ID.Hex()]) != 0 {
		t.Errorf("zero-price observation caused price updates: %v", store.priceUpdates[p.ID.Hex()])
	}
	if store.deactivated[p.ID.Hex()] {
		t.Error("zero-price observation deactivated the product")
	}
	if len(mailer.sentEmails()) != 0 {
		t.Errorf("zero-price observation sent emails: %v", mailer.sentEmails())
	}
}

func TestCheckAllPricesIgnoresInactive(t *testing.T) {
	store := newFakeStore()
	p := store.addProduct(model.Product{
		UserID: "u1", ASIN: "EEEEEEEEEE", URL: "https://www.amazon.in/dp/EEEEEEEEEE",
		Name: "Product E", CurrentPrice: 900, TargetPrice: 999, LowestPrice: 900, IsActive: false,
	})
	fetcher := &fakeFetcher{
		observations: map[string]model.Observation{},
		failURLs:     map[string]bool{},
		fetches:      map[string]int{},
	}
	s := newTestServer(store, fetcher, &fakeMailer{}, newFakeCache())

	s.CheckAllPrices(context.Background())

	if fetcher.fetches[p.URL] != 0 {
		t.Errorf("inactive product was fetched %d times", fetcher.fetches[p.URL])
	}
}

func TestCheckAllPricesSharedObservation(t *testing.T) {
	store := newFakeStore()
	url := "https://www.amazon.in/dp/FFFFFFFFFF"
	store.addProduct(model.Product{
		UserID: "u1", ASIN: "FFFFFFFFFF", URL: url,
		Name: "Product F", CurrentPrice: 3000, TargetPrice: 100, LowestPrice: 3000, IsActive: true,
	})
	store.addProduct(model.Product{
		UserID: "u2", ASIN: "FFFFFFFFFF", URL: url,
		Name: "Product F", CurrentPrice: 3000, TargetPrice: 100, LowestPrice: 3000, IsActive: true,
	})
	fetcher := &fakeFetcher{
		observations: map[string]model.Observation{
			url: {ASIN: "FFFFFFFFFF", URL: url, Name: "Product F", Price: 2800},
		},
		failURLs: map[string]bool{},
		fetches:  map[string]int{},
	}
	s := newTestServer(store, fetcher, &fakeMailer{}, newFakeCache())
	s.ScrapeConcurrency = 1

	s.CheckAllPrices(context.Background())

	if fetcher.fetches[url] != 1 {
		t.Errorf("shared ASIN fetched %d times, want 1", fetcher.fetches[url])
	}
}

func TestSendWeeklyReminders(t *testing.T) {
	store := newFakeStore()
	store.addUser(model.User{Name: "Asha", Email: "asha@example.com"})
	store.addUser(model.User{Name: "Ravi", Email: "ravi@example.com"})
	mailer := &fakeMailer{}
	s := newTestServer(store, &fakeFetcher{fetches: map[string]int{}}, mailer, newFakeCache())

	s.SendWeeklyReminders(context.Background())

	sent := mailer.sentEmails()
	if len(sent) != 2 {
		t.Fatalf("sent %d reminder emails, want 2", len(sent))
	}
}
