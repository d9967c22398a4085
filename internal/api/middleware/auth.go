package middleware

import (
	"crypto/subtle"
	"net/http"

	"updown/pkg/crypto"
)

// BasicAuth защищает дашборд HTTP Basic Authentication.
// Пароль хранится bcrypt-хешем, имя сравнивается constant-time.
// Пустые учётные данные отключают проверку: локальное развертывание
// на один процесс без внешнего доступа.
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	enabled := username != "" && passwordHash != ""

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passMatch := crypto.VerifyPassword(pass, passwordHash) == nil
			if !userMatch || !passMatch {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="updown dashboard"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
