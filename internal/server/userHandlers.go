package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"pricepal/internal/cache"
	"pricepal/internal/model"
)

const otpTTL = 10 * time.Minute

func (s Server) userRegister() http.HandlerFunc {
	type request struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	type response struct {
		Success    bool   `json:"success"`
		LoginToken string `json:"login_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("userRegister: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			s.Logger.Debugf("userRegister: Invalid email, err: %v", err)
			http.Error(w, "Invalid email", http.StatusBadRequest)
			return
		}
		password, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.Logger.Errorf("userRegister: Error generating bcrypt from password, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		u := model.User{
			Name:     req.Name,
			Email:    req.Email,
			Password: password,
		}
		id, err := s.DB.UserInsert(r.Context(), u)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				s.Logger.Debugf("userRegister: Error duplicate key when inserting User, err: %v", err)
				http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
				return
			}
			s.Logger.Errorf("userRegister: Error inserting User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		lt, err := s.createLoginSession(r.Context(), id)
		if err != nil {
			s.Logger.Errorf("userRegister: Error creating login session for User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if err = s.Mailer.SendWelcome(u); err != nil {
			s.Logger.Errorf("userRegister: Error sending welcome email to: %s, err: %v", u.Email, err)
		}
		s.writeJsonResponse(w, response{
			Success:    true,
			LoginToken: lt,
		}, http.StatusCreated)
	}
}

func (s Server) userLogin() http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	type response struct {
		LoginToken string `json:"login_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("userLogin: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		u, err := s.DB.UserFindByEmail(r.Context(), req.Email)
		if err != nil {
			s.Logger.Debugf("userLogin: Error finding User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if err = bcrypt.CompareHashAndPassword(u.Password, []byte(req.Password)); err != nil {
			s.Logger.Debugf("userLogin: Error comparing hash and password for User with email: %s, err: %v", u.Email, err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		lt, err := s.createLoginSession(r.Context(), u.ID.Hex())
		if err != nil {
			s.Logger.Errorf("userLogin: Error creating login session for User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{LoginToken: lt}, http.StatusOK)
	}
}

func (s Server) userLogout() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userLogout: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if err = s.Cache.SessionDelete(r.Context(), uc.user.ID.Hex(), uc.tokenID); err != nil {
			s.Logger.Errorf("userLogout: Error deleting session, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) userProfile() http.HandlerFunc {
	type response struct {
		UserID    string    `json:"user_id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userProfile: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{
			UserID:    uc.user.ID.Hex(),
			Name:      uc.user.Name,
			Email:     uc.user.Email,
			CreatedAt: uc.user.CreatedAt.Time().UTC(),
		}, http.StatusOK)
	}
}

func (s Server) passwordResetRequest() http.HandlerFunc {
	type request struct {
		Email string `json:"email"`
	}
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("passwordResetRequest: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		// Same response whether or not the account exists.
		u, err := s.DB.UserFindByEmail(r.Context(), req.Email)
		if err != nil {
			s.Logger.Debugf("passwordResetRequest: Error finding User with email: %s, err: %v", req.Email, err)
			s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
			return
		}

		otp, err := generateOTP()
		if err != nil {
			s.Logger.Errorf("passwordResetRequest: Error generating OTP, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		otpHash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
		if err != nil {
			s.Logger.Errorf("passwordResetRequest: Error generating bcrypt from OTP, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if err = s.Cache.OTPSet(r.Context(), u.Email, otpHash, otpTTL); err != nil {
			s.Logger.Errorf("passwordResetRequest: Error storing OTP, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if err = s.Mailer.SendPasswordResetOTP(u.Email, otp); err != nil {
			s.Logger.Errorf("passwordResetRequest: Error sending OTP email to: %s, err: %v", u.Email, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) passwordResetConfirm() http.HandlerFunc {
	type request struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("passwordResetConfirm: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		otpHash, err := s.Cache.OTPGet(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				s.Logger.Debugf("passwordResetConfirm: No OTP stored for email: %s", req.Email)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			s.Logger.Errorf("passwordResetConfirm: Error getting OTP, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if err = bcrypt.CompareHashAndPassword(otpHash, []byte(req.OTP)); err != nil {
			s.Logger.Debugf("passwordResetConfirm: OTP mismatch for email: %s, err: %v", req.Email, err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		u, err := s.DB.UserFindByEmail(r.Context(), req.Email)
		if err != nil {
			s.Logger.Errorf("passwordResetConfirm: Error finding User with email: %s, err: %v", req.Email, err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		password, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			s.Logger.Errorf("passwordResetConfirm: Error generating bcrypt from password, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if err = s.DB.UserPasswordUpdate(r.Context(), u.ID.Hex(), password); err != nil {
			s.Logger.Errorf("passwordResetConfirm: Error updating password for User with ID: %s, err: %v", u.ID.Hex(), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if err = s.Cache.OTPDelete(r.Context(), req.Email); err != nil {
			s.Logger.Errorf("passwordResetConfirm: Error deleting OTP for email: %s, err: %v", req.Email, err)
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

// createLoginSession issues a signed login token and stores a bcrypt hash of
// it in the keyed store, keyed by user and token ID, expiring with the token.
func (s Server) createLoginSession(ctx context.Context, userID string) (string, error) {
	exp := time.Now().AddDate(0, 0, 90)
	tokenID := uuid.NewString()
	t, err := jwt.NewBuilder().
		Subject(userID).
		Issuer("pricepal").
		JwtID(tokenID).
		Expiration(exp).
		Build()
	if err != nil {
		return "", errors.Wrapf(err, "error building login token for UserID: %s", userID)
	}
	lt, err := jwt.Sign(t, jwt.WithKey(jwa.HS256, s.AuthSecretKey))
	if err != nil {
		return "", errors.Wrapf(err, "error signing login token for UserID: %s", userID)
	}
	tokenHash := sha256.New()
	tokenHash.Write(lt)
	bcryptTokenHash, err := bcrypt.GenerateFromPassword(tokenHash.Sum(nil), bcrypt.DefaultCost-3)
	if err != nil {
		return "", errors.Wrapf(err, "error generating bcrypt from login token hash for UserID: %s", userID)
	}
	if err = s.Cache.SessionSet(ctx, userID, tokenID, bcryptTokenHash, time.Until(exp)); err != nil {
		return "", errors.Wrapf(err, "error storing session for UserID: %s", userID)
	}
	return string(lt), nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", errors.Wrap(err, "error generating random OTP")
	}
	return fmt.Sprintf("%06d", n), nil
}
