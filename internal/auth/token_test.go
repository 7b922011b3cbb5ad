package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, issued, expires time.Time) jwt.Token {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"aud"}).
		Subject("sub").
		IssuedAt(issued).
		NotBefore(issued).
		Expiration(expires).
		Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidator(t *testing.T) {
	now := time.Now()
	v := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256}

	require.NoError(t, v.Validate(buildToken(t, "issuer", now, now.Add(time.Minute)), jwa.HS256, now))
	require.Error(t, v.Validate(buildToken(t, "other", now, now.Add(time.Minute)), jwa.HS256, now))
	require.Error(t, v.Validate(buildToken(t, "issuer", now.Add(-2*time.Hour), now.Add(-time.Minute)), jwa.HS256, now))
	require.Error(t, v.Validate(buildToken(t, "issuer", now, now.Add(time.Minute)), jwa.HS512, now))
	require.Error(t, v.Validate(nil, jwa.HS256, now))
}

func TestNoneAlgorithmRejected(t *testing.T) {
	tok := buildToken(t, "issuer", time.Now(), time.Now().Add(time.Minute))
	signed, err := jwt.Sign(tok, jwt.WithInsecureNoSignature())
	require.NoError(t, err)
	_, err = extractTokenAlgorithm(string(signed))
	require.Error(t, err)
}
