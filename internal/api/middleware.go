/**
 * @description
 * This file contains custom middleware for the HTTP router, chiefly the shop
 * authentication middleware. Shops authenticate with HS256 JWTs issued by this
 * service at login; the middleware validates the token and places the shop ID
 * in the request context for the handlers.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and signing.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ShopIDContextKey is a custom type for the context key to avoid collisions.
type ShopIDContextKey string

const shopIDKey ShopIDContextKey = "shopID"

// IssueShopToken creates a signed HS256 token identifying the shop. The shop ID
// travels in the `sub` claim.
func IssueShopToken(secret string, shopID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(shopID, 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ShopAuthMiddleware creates a middleware that validates shop JWT tokens.
func ShopAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			sub, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "Shop ID not found in token", http.StatusUnauthorized)
				return
			}
			shopID, err := strconv.ParseInt(sub, 10, 64)
			if err != nil || shopID <= 0 {
				http.Error(w, "Invalid shop ID in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), shopIDKey, shopID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetShopID retrieves the authenticated shop's ID from the request context.
func GetShopID(ctx context.Context) (int64, bool) {
	shopID, ok := ctx.Value(shopIDKey).(int64)
	return shopID, ok
}
