package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chitchat/internal/app/user"
)

const testSecret = "secret"

func newClaims() *Claims {
	return &Claims{User: user.New("Jon Snow", "jon@labstack.com"), Channel: "general"}
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(newClaims(), testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "Jon Snow", claims.User.Name)
	assert.Equal(t, "general", claims.Channel)
	assert.Equal(t, "", claims.User.Email)
	assert.Contains(t, claims.User.Avatar, "https://www.gravatar.com/avatar/")
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(newClaims(), testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "other")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(newClaims(), testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestParseTokenRejectsNoneAlgorithm(t *testing.T) {
	claims := newClaims()
	claims.StandardClaims = gojwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestRequireMiddleware(t *testing.T) {
	token, err := GenerateToken(newClaims(), testSecret, time.Minute)
	require.NoError(t, err)

	var seen *Claims
	handler := Require(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := map[string]struct {
		target string
		header string
		status int
	}{
		"query token":   {target: "/auth?token=" + token, status: http.StatusNoContent},
		"bearer header": {target: "/auth", header: "Bearer " + token, status: http.StatusNoContent},
		"missing":       {target: "/auth", status: http.StatusUnauthorized},
		"invalid":       {target: "/auth?token=invalid", status: http.StatusUnauthorized},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "general", seen.Channel)
			} else {
				assert.Nil(t, seen)
				assert.JSONEq(t, `{"code":3001,"message":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}
