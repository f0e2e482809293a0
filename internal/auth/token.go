package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a credential to a single instance. The nonce makes every
// issued token unique and unguessable even for a known instanceId.
type Claims struct {
	InstanceID string `json:"iid"`
	Nonce      string `json:"cn"`
	jwt.RegisteredClaims
}

// Service issues and verifies per-instance bearer credentials.
//
// A credential is an HS256 token minted once at instance creation and
// stored server-side; verification checks the signature and then compares
// the supplied token against the stored one in constant time. All failure
// causes (unknown instance, missing token, bad signature, wrong token)
// collapse into the same boolean so callers cannot probe which one it was.
type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret []byte, ttl time.Duration) *Service {
	return &Service{secret: secret, ttl: ttl}
}

// Issue mints the credential for a freshly created instance.
func (s *Service) Issue(instanceID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	claims := Claims{
		InstanceID: instanceID,
		Nonce:      hex.EncodeToString(nonce),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify reports whether supplied is the valid credential for the instance
// whose stored credential is stored. stored is empty when the instance does
// not exist; the comparison still runs so the caller's timing is uniform.
func (s *Service) Verify(supplied, stored string) bool {
	ok := true

	t, err := jwt.ParseWithClaims(supplied, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, isHMAC := t.Method.(*jwt.SigningMethodHMAC); !isHMAC {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !t.Valid {
		ok = false
	}

	if subtle.ConstantTimeCompare([]byte(supplied), []byte(stored)) != 1 {
		ok = false
	}
	return ok
}
