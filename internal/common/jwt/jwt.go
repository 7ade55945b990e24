// Package jwt 签发与校验访问令牌
// 登录与刷新由账号服务负责，这里只校验访问令牌，签发仅供运维工具使用
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims 令牌声明
type Claims struct {
	UserID    int64  `json:"user_id"`
	UserType  string `json:"user_type"`
	Role      string `json:"role,omitempty"`
	TokenKind string `json:"token_kind"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.UserType == UserTypeAdmin
}

// Config JWT 配置
type Config struct {
	Secret           string
	AccessExpireTime time.Duration
	Issuer           string
}

// Manager JWT 管理器
type Manager struct {
	config *Config
	now    func() time.Time
}

var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenNotActive = errors.New("token not active yet")
	ErrTokenKind      = errors.New("unexpected token kind")
)

// TokenKindAccess 访问令牌，账号服务签发的刷新令牌种类为 refresh
const TokenKindAccess = "access"

const (
	UserTypeUser  = "user"
	UserTypeAdmin = "admin"
)

func NewManager(config *Config) *Manager {
	return &Manager{config: config, now: time.Now}
}

// GenerateAccessToken 签发访问令牌，返回令牌与过期时间戳
func (m *Manager) GenerateAccessToken(userID int64, userType, role string) (string, int64, error) {
	now := m.now()
	expireAt := now.Add(m.config.AccessExpireTime)
	claims := &Claims{
		UserID:    userID,
		UserType:  userType,
		Role:      role,
		TokenKind: TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userType,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expireAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	return token, expireAt.Unix(), err
}

// ParseAccessToken 校验签名、有效期与种类
func (m *Manager) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(m.config.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotActive
	default:
		return nil, ErrTokenInvalid
	}

	if claims.TokenKind != TokenKindAccess {
		return nil, ErrTokenKind
	}
	return claims, nil
}
