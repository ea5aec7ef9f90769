package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordManager_HashAndVerify(t *testing.T) {
	pm := NewPasswordManager(6, bcrypt.MinCost)

	hash, err := pm.HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, IsHash(hash))
	assert.NotEqual(t, "secret1", hash)

	upgraded, err := pm.Verify(hash, "secret1")
	require.NoError(t, err)
	assert.Empty(t, upgraded)

	_, err = pm.Verify(hash, "wrong")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestPasswordManager_ValidatePassword(t *testing.T) {
	pm := NewPasswordManager(6, bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"long enough", "abcdef", false},
		{"too short", "abc", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pm.ValidatePassword(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPasswordManager_LegacyPlaintext(t *testing.T) {
	pm := NewPasswordManager(6, bcrypt.MinCost)

	upgraded, err := pm.Verify("admin123", "admin123")
	require.NoError(t, err)
	require.True(t, IsHash(upgraded))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(upgraded), []byte("admin123")))

	_, err = pm.Verify("admin123", "admin124")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = pm.Verify("", "")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestNewPasswordManager_Defaults(t *testing.T) {
	pm := NewPasswordManager(0, 99)
	assert.Equal(t, DefaultMinPasswordLength, pm.MinLength())
	assert.Equal(t, DefaultBcryptCost, pm.cost)
}
