package server

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"pricepal/internal/model"
)

type Server struct {
	DB                Store
	Amazon            ProductFetcher
	Mailer            Mailer
	Cache             KeyedStore
	Logger            logger
	AuthSecretKey     jwk.Key
	ScrapeConcurrency int
	ObservationTTL    time.Duration
}

// Store is the narrow adapter over the backing document store. No
// transactional guarantees are assumed from it; the scan orchestrator
// serializes per-product work itself.
type Store interface {
	ProductInsert(ctx context.Context, p model.Product) (string, error)
	ProductFindOne(ctx context.Context, productID string) (model.Product, error)
	ProductFindActiveByUserAndASIN(ctx context.Context, userID string, asin string) (model.Product, error)
	ProductsFindByUser(ctx context.Context, userID string) ([]model.Product, error)
	ProductsFindActive(ctx context.Context) ([]model.Product, error)
	ProductPricesUpdate(ctx context.Context, productID primitive.ObjectID, currentPrice float64, lowestPrice float64) error
	ProductDeactivate(ctx context.Context, productID primitive.ObjectID) error
	ProductDelete(ctx context.Context, productID string) error
	UserInsert(ctx context.Context, u model.User) (string, error)
	UserFindByID(ctx context.Context, id string) (model.User, error)
	UserFindByEmail(ctx context.Context, email string) (model.User, error)
	UsersFindAll(ctx context.Context) ([]model.User, error)
	UserPasswordUpdate(ctx context.Context, id string, password []byte) error
}

type ProductFetcher interface {
	AmazonGetProduct(ctx context.Context, rawURL string) (model.Observation, error)
}

type Mailer interface {
	SendWelcome(u model.User) error
	SendPasswordResetOTP(email string, otp string) error
	SendTrackingStarted(u model.User, p model.Product) error
	SendPriceAlert(u model.User, p model.Product, currentPrice float64, lowestPrice float64) error
	SendThankYou(u model.User, p model.Product) error
	SendWeeklyReminder(u model.User) error
}

// KeyedStore is the external expiring key-value store holding sessions,
// password-reset OTPs and the per-cycle observation cache.
type KeyedStore interface {
	SessionSet(ctx context.Context, userID string, tokenID string, tokenHash []byte, ttl time.Duration) error
	SessionGet(ctx context.Context, userID string, tokenID string) ([]byte, error)
	SessionDelete(ctx context.Context, userID string, tokenID string) error
	OTPSet(ctx context.Context, email string, otpHash []byte, ttl time.Duration) error
	OTPGet(ctx context.Context, email string) ([]byte, error)
	OTPDelete(ctx context.Context, email string) error
	ObservationSet(ctx context.Context, o model.Observation, ttl time.Duration) error
	ObservationGet(ctx context.Context, asin string) (model.Observation, error)
}

type logger interface {
	Trace(v ...any)
	Debug(v ...any)
	Info(v ...any)
	Warn(v ...any)
	Error(v ...any)
	Tracef(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}
