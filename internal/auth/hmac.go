package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HMACTokenValidator HS256 令牌验证器,用于开发环境和服务间调用
type HMACTokenValidator struct {
	secret []byte
	issuer string
}

// NewHMACTokenValidator 创建 HS256 令牌验证器
func NewHMACTokenValidator(secret, issuer string) (*HMACTokenValidator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &HMACTokenValidator{secret: []byte(secret), issuer: issuer}, nil
}

// identityClaims 身份令牌声明
type identityClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Validate 验证令牌并返回调用方身份
func (v *HMACTokenValidator) Validate(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject")
	}

	return &Identity{Subject: claims.Subject, Username: claims.Subject, Roles: claims.Roles}, nil
}

// Issue 签发身份令牌
func (v *HMACTokenValidator) Issue(subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
