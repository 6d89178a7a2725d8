package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"audiora/internal/auth"
	"audiora/internal/user"
)

func (a *API) handleSignup(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "validation", "email and password required")
		return
	}

	u, err := a.Users.Create(c.Request.Context(), req.Email, req.Password, req.Name)
	if errors.Is(err, user.ErrEmailTaken) {
		respondError(c, http.StatusConflict, "email_taken", "email already registered")
		return
	}
	if err != nil {
		a.internalError(c, "signup failed", err)
		return
	}

	token, err := auth.SignJWT(a.JWTSecret, u.ID, u.Email, a.TokenTTL)
	if err != nil {
		a.internalError(c, "sign token failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "token": token})
}

func (a *API) handleSignin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "validation", "email and password required")
		return
	}

	u, err := a.Users.VerifyLogin(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		respondError(c, http.StatusUnauthorized, "auth", "invalid credentials")
		return
	}
	if err != nil {
		a.internalError(c, "signin failed", err)
		return
	}

	token, err := auth.SignJWT(a.JWTSecret, u.ID, u.Email, a.TokenTTL)
	if err != nil {
		a.internalError(c, "sign token failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "token": token})
}
