package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/lanparty/middleware"
	"github.com/Dosada05/lanparty/services"
)

type AuthHandler struct {
	responder
	authService services.AuthService
}

func NewAuthHandler(as services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		responder:   responder{logger: logger},
		authService: as,
	}
}

// SignUp godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param input body services.SignUpInput true "Account"
// @Success 201 {object} map[string]interface{} "user"
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Username taken"
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input services.SignUpInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	user, err := h.authService.SignUp(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, jsonResponse{"user": user})
}

// SignIn godoc
// @Summary Exchange credentials for a token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body services.SignInInput true "Credentials"
// @Success 200 {object} services.Session
// @Failure 401 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var input services.SignInInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	session, err := h.authService.SignIn(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, session)
}

// Token re-issues the caller's token with their current event roles.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	session, err := h.authService.Refresh(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, session)
}
