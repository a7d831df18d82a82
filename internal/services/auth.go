package services

import (
  "context"
  "fmt"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/requestdata"
)

// AuthService validates bearer tokens issued by the identity provider and
// resolves them into request data. Token issuance lives upstream; this
// backend only verifies.
type AuthService interface {
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type JWTClaims struct {
  jwt.RegisteredClaims
}

type authService struct {
  log          *logger.Logger
  jwtSecretKey string
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string) AuthService {
  serviceLog := baseLog.Service("AuthService")
  return &authService{log: serviceLog, jwtSecretKey: jwtSecretKey}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, nil
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
    }
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("failed to parse token: %w", err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, fmt.Errorf("invalid or expired token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("invalid user id in token: %w", err)
  }
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    rd = &requestdata.RequestData{}
  }
  rd.TokenString = tokenString
  rd.UserID = userID
  return requestdata.WithRequestData(ctx, rd), nil
}
