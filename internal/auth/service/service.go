// Package service implements dashboard operator authentication. There is one
// operator account, configured through the environment; no user table exists.
package service

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const accessTokenType = "access"

type Service struct {
	cfg config.AuthConfig
	log *logger.Logger
}

func New(cfg config.AuthConfig, log *logger.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// Login verifies the operator credentials and returns a signed access token.
// The bcrypt comparison runs even for a wrong email so both failure modes
// take the same time.
func (s *Service) Login(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	emailMatch := subtle.ConstantTimeCompare(
		[]byte(email), []byte(strings.ToLower(s.cfg.GetDashboardEmail()))) == 1

	passwordErr := bcrypt.CompareHashAndPassword(
		[]byte(s.cfg.GetDashboardPasswordHash()), []byte(password))

	if !emailMatch || passwordErr != nil {
		s.log.Warn("login rejected", "email", email)
		return "", ErrInvalidCredentials
	}

	return s.signJWT(email)
}

func (s *Service) signJWT(subject string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"type": accessTokenType,
		"exp":  now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
		"iat":  now.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}
