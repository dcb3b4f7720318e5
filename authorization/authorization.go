package authorization

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/cristalhq/jwt/v4"
)

var (
	jwtKey      = []byte(os.Getenv("SECRET_KEY"))
	verifier, _ = jwt.NewVerifierHS(jwt.HS256, jwtKey)
)

func GetToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse([]byte(tokenString), verifier)
	if err != nil {
		return nil, err
	}
	return token, nil
}

func GetMapClaims(tokenBytes []byte) map[string]string {
	var claims map[string]string

	err := jwt.ParseClaims(tokenBytes, verifier, &claims)
	if err != nil {
		return map[string]string{}
	}

	return claims
}

// ExtractOwnerID pulls the operator's user id out of the bearer token, the
// value every store query is scoped by.
func ExtractOwnerID(r *http.Request) (string, error) {
	bearer := r.Header.Get("Authorization")
	if bearer == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	bearerToken := strings.Split(bearer, "Bearer ")
	if len(bearerToken) != 2 {
		return "", fmt.Errorf("invalid token format")
	}

	token, err := GetToken(bearerToken[1])
	if err != nil {
		return "", err
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(token.Claims(), &claims); err != nil {
		return "", fmt.Errorf("error decoding token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user id not found in token claims")
	}

	return userID, nil
}
