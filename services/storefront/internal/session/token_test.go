package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_IssueAndParse(t *testing.T) {
	c := NewCodec("secret", time.Hour)

	token, err := c.Issue("sid-123")
	require.NoError(t, err)

	sid, err := c.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "sid-123", sid)
}

func TestCodec_Parse_WrongSecret(t *testing.T) {
	token, err := NewCodec("secret", time.Hour).Issue("sid-123")
	require.NoError(t, err)

	_, err = NewCodec("other", time.Hour).Parse(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Parse_Expired(t *testing.T) {
	c := NewCodec("secret", time.Hour)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	token, err := c.Issue("sid-123")
	require.NoError(t, err)

	c.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = c.Parse(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Parse_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sid": "sid-123",
		"iss": tokenIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewCodec("secret", time.Hour).Parse(raw)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Parse_MissingSessionID(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": tokenIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewCodec("secret", time.Hour).Parse(raw)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing sid claim")
}

func TestCodec_Parse_Garbage(t *testing.T) {
	_, err := NewCodec("secret", time.Hour).Parse("not-a-token")

	assert.ErrorIs(t, err, ErrInvalidToken)
}
