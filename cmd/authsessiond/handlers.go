package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/middleware"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type sessionResponse struct {
	PrincipalID string `json:"principal_id,omitempty"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// newRouter mounts every auth route. Every route sees the client IP;
// logout and me also require a valid access token.
func newRouter(engine *authsession.Engine, logger *slog.Logger, metrics http.Handler, devCallback bool) http.Handler {
	mux := http.NewServeMux()
	guard := middleware.Guard(engine)

	mux.HandleFunc("POST /auth/login", loginHandler(engine, logger))
	mux.HandleFunc("POST /auth/refresh", refreshHandler(engine, logger))
	mux.Handle("POST /auth/logout", guard(logoutHandler(engine, logger)))
	mux.Handle("GET /auth/me", guard(meHandler()))
	mux.HandleFunc("POST /auth/forgot-password", forgotPasswordHandler(engine))
	mux.HandleFunc("POST /auth/reset-password", resetPasswordHandler(engine, logger))
	mux.HandleFunc("POST /auth/request-verification", requestVerificationHandler(engine))
	mux.HandleFunc("POST /auth/verify-email", verifyEmailHandler(engine, logger))
	mux.HandleFunc("POST /auth/handoff", handoffHandler(engine, logger))
	if devCallback {
		mux.HandleFunc("GET /auth/external/callback", externalCallbackHandler(engine, logger))
	}
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return middleware.ClientIP(mux)
}

func loginHandler(engine *authsession.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pair, err := engine.Login(r.Context(), w, req.Email, req.Password)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			AccessToken: pair.AccessToken,
			ExpiresAt:   pair.AccessExpiresAt.Unix(),
		})
	}
}

// refreshHandler accepts the refresh token from the cookie, or from the
// body for clients that cannot hold cookies.
func refreshHandler(engine *authsession.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			pair authsession.TokenPair
			err  error
		)
		if _, cookie := engine.Cookies().Read(r); cookie != "" || r.ContentLength <= 0 {
			pair, err = engine.RefreshRequest(r.Context(), w, r)
		} else {
			var req tokenRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			pair, err = engine.Refresh(r.Context(), w, req.Token)
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			AccessToken: pair.AccessToken,
			ExpiresAt:   pair.AccessExpiresAt.Unix(),
		})
	}
}

func logoutHandler(engine *authsession.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.ClaimsFromContext(r.Context())
		if err := engine.Logout(r.Context(), w, claims.PrincipalID); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.ClaimsFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"principal_id": claims.PrincipalID,
			"expires_at":   claims.ExpiresAt.Unix(),
		})
	}
}

func forgotPasswordHandler(engine *authsession.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusAccepted, engine.ForgotPassword(r.Context(), req.Email))
	}
}

func resetPasswordHandler(engine *authsession.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Password == "" {
			http.Error(w, "password required", http.StatusBadRequest)
			return
		}

		if err := engine.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requestVerificationHandler(engine *authsession.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusAccepted, engine.RequestEmailVerification(r.Context(), req.Email))
	}
}

func verifyEmailHandler(engine *authsession.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := engine.VerifyEmail(r.Context(), req.Token); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handoffHandler is called by the frontend with the token it read from the
// redirect fragment.
func handoffHandler(engine *authsession.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		principal, pair, err := engine.CompleteHandoff(r.Context(), w, req.Token)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			PrincipalID: principal.ID,
			AccessToken: pair.AccessToken,
			ExpiresAt:   pair.AccessExpiresAt.Unix(),
		})
	}
}

// externalCallbackHandler trusts the email query parameter as a verified
// identity. It is only mounted in development.
func externalCallbackHandler(engine *authsession.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authsession.ExternalIdentity{
			Provider:   "dev",
			Email:      r.URL.Query().Get("email"),
			ExternalID: r.URL.Query().Get("sub"),
		}
		if identity.Email == "" {
			http.Error(w, "email required", http.StatusBadRequest)
			return
		}
		if err := engine.LoginExternal(r.Context(), w, r, identity); err != nil {
			writeError(w, logger, err)
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, authsession.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
