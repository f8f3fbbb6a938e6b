package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	SetSecret("test-secret")

	token, err := GenerateToken("user-1", "ITEngineer", "Evan Engineer", "evan@helpdesk.local", "IT")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ITEngineer", claims.Role)
	assert.Equal(t, "Evan Engineer", claims.Name)
	assert.Equal(t, "IT", claims.Department)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	SetSecret("first-secret")
	token, err := GenerateToken("user-1", "User", "", "", "")
	require.NoError(t, err)

	SetSecret("second-secret")
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	SetSecret("test-secret")
	_, err := ValidateToken("not-a-token")
	assert.Error(t, err)
}
