package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"talk-chat/config"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// TicketService issues short-lived HS256 tokens that let a browser open the
// websocket, where custom headers cannot be sent. The user id is the subject.
type TicketService struct {
	secretKey   []byte
	issuer      string
	expireAfter time.Duration
	now         func() time.Time
}

func NewTicketService(cfg config.SessionConfig) *TicketService {
	return &TicketService{
		secretKey:   []byte(cfg.TicketSecret),
		issuer:      cfg.Issuer,
		expireAfter: cfg.TicketTTL,
		now:         time.Now,
	}
}

// Issue signs a ticket for userID and returns it with its expiry.
func (s *TicketService) Issue(userID uint) (string, time.Time, error) {
	if userID == 0 {
		return "", time.Time{}, errors.New("user id is required")
	}

	now := s.now()
	expiresAt := now.Add(s.expireAfter)

	claims := &jwtv5.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwtv5.NewNumericDate(now),
		NotBefore: jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(expiresAt),
	}

	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign ticket: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature, issuer and expiry and returns the user id.
func (s *TicketService) Validate(ticket string) (uint, error) {
	if ticket == "" {
		return 0, errors.New("ticket is empty")
	}

	claims := &jwtv5.RegisteredClaims{}
	parsed, err := jwtv5.ParseWithClaims(ticket, claims,
		func(token *jwtv5.Token) (interface{}, error) {
			if token.Method != jwtv5.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		},
		jwtv5.WithIssuer(s.issuer),
		jwtv5.WithTimeFunc(s.now),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("parse ticket: %w", err)
	}
	if !parsed.Valid {
		return 0, errors.New("invalid ticket")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid ticket subject")
	}
	return uint(id), nil
}
