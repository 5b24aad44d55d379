package auth

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJWT_Success(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing") //nolint:errcheck // test fixture
	defer os.Unsetenv("JWT_SECRET")                        //nolint:errcheck // test cleanup

	token, err := GenerateJWT("visitor-123", "Alice", RoleVisitor)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 3, len(strings.Split(token, ".")), "JWT should have 3 parts")
}

func TestGenerateJWT_MissingSecret(t *testing.T) {
	os.Unsetenv("JWT_SECRET") //nolint:errcheck // test cleanup

	_, err := GenerateJWT("visitor-123", "Alice", RoleVisitor)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET not set")
}

func TestValidateJWT_ValidToken(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing") //nolint:errcheck // test fixture
	defer os.Unsetenv("JWT_SECRET")                        //nolint:errcheck // test cleanup

	token, err := GenerateJWT("operator-1", "Shop Admin", RoleOperator)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)

	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.UserID)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, "Shop Admin", claims.DisplayName)
}

func TestValidateJWT_ExpiredToken(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing") //nolint:errcheck // test fixture
	defer os.Unsetenv("JWT_SECRET")                        //nolint:errcheck // test cleanup

	claims := Claims{
		UserID: "visitor-123",
		Role:   RoleVisitor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-secret-key-for-testing"))
	require.NoError(t, err)

	_, err = ValidateJWT(tokenString)

	assert.Error(t, err, "expired token should be rejected")
}

func TestValidateJWT_UnknownRole(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing") //nolint:errcheck // test fixture
	defer os.Unsetenv("JWT_SECRET")                        //nolint:errcheck // test cleanup

	claims := Claims{
		UserID: "someone",
		Role:   "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-secret-key-for-testing"))
	require.NoError(t, err)

	_, err = ValidateJWT(tokenString)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestCredential_Missing(t *testing.T) {
	os.Unsetenv("RELAY_OPERATOR_TOKEN") //nolint:errcheck // test cleanup

	_, err := Credential("RELAY_OPERATOR_TOKEN")

	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestCredential_Present(t *testing.T) {
	os.Setenv("RELAY_OPERATOR_TOKEN", "some-token") //nolint:errcheck // test fixture
	defer os.Unsetenv("RELAY_OPERATOR_TOKEN")       //nolint:errcheck // test cleanup

	token, err := Credential("RELAY_OPERATOR_TOKEN")

	require.NoError(t, err)
	assert.Equal(t, "some-token", token)
}
