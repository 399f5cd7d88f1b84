package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type emailBody struct {
	Email string `json:"email"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req authcore.RegisterRequest
	if err := decode(r, &req); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	res, err := a.engine.Register(r.Context(), req)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusCreated, "Registration successful!", res)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req authcore.LoginRequest
	if err := decode(r, &req); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	res, err := a.engine.Login(r.Context(), req)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Login successful!", res)
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := decode(r, &body); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	tokens, err := a.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Token refreshed successfully", map[string]any{"tokens": tokens})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := decode(r, &body); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	id := authcore.IdentityFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), id.ID, body.RefreshToken); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Logged out successfully", nil)
}

func (a *api) logoutAll(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	if err := a.engine.LogoutAll(r.Context(), id.ID); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Logged out from all devices successfully", nil)
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	acc, err := a.engine.GetAccount(r.Context(), id.ID)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"user": acc})
}

func (a *api) sessions(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	list, err := a.engine.Sessions(r.Context(), id.ID)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"sessions": list, "count": len(list)})
}

func (a *api) sendVerification(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	if err := a.engine.SendVerification(r.Context(), id.ID); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Verification email sent", nil)
}

// verifyEmail accepts the token as ?token= (email links) or in a JSON body.
func (a *api) verifyEmail(w http.ResponseWriter, r *http.Request) {
	body := tokenBody{Token: r.URL.Query().Get("token")}
	if body.Token == "" {
		if err := decode(r, &body); err != nil {
			a.rs.Error(w, r, err)
			return
		}
	}
	if err := a.engine.VerifyEmail(r.Context(), body.Token); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Email verified successfully", nil)
}

func (a *api) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body emailBody
	if err := decode(r, &body); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	if err := a.engine.ForgotPassword(r.Context(), body.Email); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "If an account with that email exists, a password reset link has been sent", nil)
}

func (a *api) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req authcore.ResetPasswordRequest
	if err := decode(r, &req); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	if err := a.engine.ResetPassword(r.Context(), req); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Password reset successful. Please login with your new password", nil)
}
