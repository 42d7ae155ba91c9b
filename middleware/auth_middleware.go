package middleware

import (
	"context"
	"log"
	"net/http"

	"partyhub/util"
)

// UserIDKeyType is the key type used to store the UserID in the request context.
type UserIDKeyType string

const UserIDKey UserIDKeyType = "userID"

// Auth checks for a valid session. If valid, it stores the user id in the
// request context and proceeds; otherwise it returns 401.
func Auth(sessions *util.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessions.UserIDFromRequest(r)
			if err != nil {
				log.Printf("Error getting user id from request: %v", err)
				http.Error(w, "Server error processing authentication", http.StatusInternalServerError)
				return
			}
			if userID == 0 {
				log.Printf("Unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
				http.Error(w, "Unauthorized: You must be logged in.", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
