package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/datapulse/backend/internal/httpx"
	"github.com/ayush/datapulse/backend/internal/models"
	"github.com/ayush/datapulse/backend/internal/store"
	"github.com/ayush/datapulse/backend/internal/token"
)

const maxPasswordBytes = 72

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Options tunes the identity handlers.
type Options struct {
	BcryptCost  int
	RedirectURL string
	// Throttle is optional; nil disables login throttling.
	Throttle Throttle
}

// Handler holds the identity service's HTTP handlers. It is the only holder
// of the token signer.
type Handler struct {
	users       UserStore
	signer      *token.Signer
	throttle    Throttle
	cost        int
	redirectURL string
	log         logrus.FieldLogger
}

func NewHandler(users UserStore, signer *token.Signer, log logrus.FieldLogger, opts Options) *Handler {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Handler{
		users:       users,
		signer:      signer,
		throttle:    opts.Throttle,
		cost:        opts.BcryptCost,
		redirectURL: opts.RedirectURL,
		log:         log,
	}
}

// decodeCredentials accepts a JSON body or an urlencoded form.
func decodeCredentials(r *http.Request) (models.Credentials, error) {
	var c models.Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return c, err
		}
		c.Username = r.PostForm.Get("username")
		c.Password = r.PostForm.Get("password")
		return c, nil
	}
	err := json.NewDecoder(r.Body).Decode(&c)
	return c, err
}

// Register creates a new user. Duplicate usernames and storage failures
// produce the same response.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	// bcrypt only hashes the first 72 bytes and refuses anything longer.
	if len(creds.Password) > maxPasswordBytes {
		httpx.WriteError(w, http.StatusBadRequest, "password is too long")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(creds.Password), h.cost)
	if err != nil {
		h.log.WithError(err).Error("hash password")
		httpx.WriteError(w, http.StatusInternalServerError, "Error registering user")
		return
	}

	user, err := h.users.CreateUser(r.Context(), creds.Username, string(hashed))
	if err != nil {
		h.log.WithError(err).WithField("username", creds.Username).Warn("register failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Error registering user")
		return
	}

	h.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login checks credentials and issues a token. Unknown usernames and wrong
// passwords get the identical response.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()
	log := h.log.WithField("username", creds.Username)

	if h.throttle != nil {
		ok, err := h.throttle.Allowed(ctx, creds.Username)
		if err != nil {
			log.WithError(err).Warn("login throttle unavailable")
		} else if !ok {
			httpx.WriteError(w, http.StatusTooManyRequests, "Too many login attempts")
			return
		}
	}

	user, err := h.users.GetUserByUsername(ctx, creds.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.rejectLogin(w, r, creds.Username)
		return
	case err != nil:
		log.WithError(err).Error("lookup user")
		httpx.WriteError(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		h.rejectLogin(w, r, creds.Username)
		return
	}

	tok, err := h.signer.Issue(user.ID, user.Username)
	if err != nil {
		log.WithError(err).Error("issue token")
		httpx.WriteError(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	if h.throttle != nil {
		if err := h.throttle.Reset(ctx, creds.Username); err != nil {
			log.WithError(err).Warn("reset login throttle")
		}
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") && h.redirectURL != "" {
		http.Redirect(w, r, withToken(h.redirectURL, tok), http.StatusFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, models.TokenResponse{Token: tok})
}

func (h *Handler) rejectLogin(w http.ResponseWriter, r *http.Request, username string) {
	if h.throttle != nil {
		if err := h.throttle.Fail(r.Context(), username); err != nil {
			h.log.WithError(err).WithField("username", username).Warn("record login failure")
		}
	}
	httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
}

func withToken(base, tok string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(tok)
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String()
}

// Verify checks the bearer token without touching any store.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	tok, err := token.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	claims, err := h.signer.Verify(r.Context(), tok)
	if err != nil {
		h.log.WithError(err).Debug("token rejected")
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"valid": false,
			"error": "Invalid token",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"user":  claims,
	})
}
