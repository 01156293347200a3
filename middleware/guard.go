package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authsession"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the access token claims stored by [Guard].
func ClaimsFromContext(ctx context.Context) (authsession.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(authsession.Claims)
	return claims, ok
}

// Guard rejects requests without a valid access token. The token is taken
// from the Authorization header, falling back to the access cookie.
func Guard(engine *authsession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				if cookies := engine.Cookies(); cookies != nil {
					token, _ = cookies.Read(r)
				}
			}
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP records the remote address on the request context so the engine
// can throttle link requests per IP and include it in audit events.
// Forwarding headers are ignored; put a proxy-aware middleware in front
// when behind a load balancer.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(authsession.WithClientIP(r.Context(), ip)))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
