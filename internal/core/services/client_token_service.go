package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// ClientClaims identify one browser. All session blobs hang off ClientID.
type ClientClaims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

// ClientTokenService issues and checks the signed client cookie.
type ClientTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewClientTokenService(secret string, ttl time.Duration) *ClientTokenService {
	return &ClientTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (s *ClientTokenService) TTL() time.Duration {
	return s.ttl
}

// NewClient mints a fresh client id and its token.
func (s *ClientTokenService) NewClient() (clientID, token string, err error) {
	clientID = uuid.NewString()
	token, err = s.Issue(clientID)
	return clientID, token, err
}

// Issue signs a token for an existing client id.
func (s *ClientTokenService) Issue(clientID string) (string, error) {
	now := s.now()
	claims := &ClientClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a token and returns its claims.
func (s *ClientTokenService) Validate(tokenString string) (*ClientClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ClientClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ClientClaims)
	if !ok || !token.Valid || claims.ClientID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
