package routehandlers

import (
	"encoding/json"
	"net/http"
	"net/mail"

	"github.com/jcondina/sum-reservations/auth"
	"github.com/jcondina/sum-reservations/webutil"
)

type AuthHandler struct {
	Authenticator *auth.Authenticator
	Tokens        *auth.TokenIssuer
}

func NewAuthHandler(authenticator *auth.Authenticator, tokens *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{Authenticator: authenticator, Tokens: tokens}
}

// HandleLogin validates credentials and returns a signed session
// token. Unknown email, missing credential and wrong password all
// produce the same 401.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if requestData.Email == "" || requestData.Password == "" {
		return webutil.ErrBadRequest("Email and password are required")
	}
	if _, err := mail.ParseAddress(requestData.Email); err != nil {
		return webutil.ErrBadRequest("Invalid email format")
	}

	user, err := h.Authenticator.Validate(r.Context(), requestData.Email, requestData.Password)
	if err != nil {
		return err
	}
	if user == nil {
		return webutil.ErrUnauthorized("Invalid credentials")
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		return err
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"token": token})
	return nil
}

// HandleSession echoes the identity behind the presented token, for
// clients re-checking their auth state.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) error {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		return webutil.ErrUnauthorized("")
	}
	webutil.RespondWithJSON(w, http.StatusOK, identity)
	return nil
}
