package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bu-reg/backend/config"
)

const issuer = "bu-reg"

// TokenType 区分 Access / Refresh，防止 Refresh Token 被当作访问凭证
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrTokenExpired   = errors.New("token 已过期")
	ErrTokenInvalid   = errors.New("token 无效")
	ErrTokenWrongType = errors.New("token 类型不匹配")
)

// Claims 自定义 JWT 声明
type Claims struct {
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	DepartmentID string    `json:"department_id"`
	TokenType    TokenType `json:"token_type"`
	RememberMe   bool      `json:"remember_me,omitempty"` // 仅 refresh token 使用
	jwtv5.RegisteredClaims
}

// Manager 签发与校验 HS256 Token
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rememberMe time.Duration
	parser     *jwtv5.Parser
}

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTLDefault,
		rememberMe: cfg.RefreshTokenTTLRemember,
		parser: jwtv5.NewParser(
			jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
			jwtv5.WithIssuer(issuer),
			jwtv5.WithIssuedAt(),
		),
	}
}

// AccessTTL Access Token 有效期
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL Refresh Token 有效期，"记住我" 时取长有效期
func (m *Manager) RefreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return m.rememberMe
	}
	return m.refreshTTL
}

// GenerateAccessToken 生成 Access Token
func (m *Manager) GenerateAccessToken(userID, role, departmentID string) (string, error) {
	return m.sign(Claims{
		UserID:       userID,
		Role:         role,
		DepartmentID: departmentID,
		TokenType:    TokenAccess,
	}, m.accessTTL)
}

// GenerateRefreshToken 生成 Refresh Token
func (m *Manager) GenerateRefreshToken(userID, role, departmentID string, rememberMe bool) (string, error) {
	return m.sign(Claims{
		UserID:       userID,
		Role:         role,
		DepartmentID: departmentID,
		TokenType:    TokenRefresh,
		RememberMe:   rememberMe,
	}, m.RefreshTTL(rememberMe))
}

// sign 补全 jti / iat / exp / iss 后签名
func (m *Manager) sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwtv5.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken 校验签名、签发方与有效期，不限 Token 类型
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwtv5.Token) (interface{}, error) {
		return m.secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenInvalid
	}
}

// ParseTokenOfType 在 ParseToken 基础上要求 Token 类型一致
func (m *Manager) ParseTokenOfType(tokenString string, want TokenType) (*Claims, error) {
	claims, err := m.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != want {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}
