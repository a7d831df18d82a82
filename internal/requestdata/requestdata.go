package requestdata

import (
  "context"
  "github.com/google/uuid"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  val := ctx.Value(requestDataKey)
  if rd, ok := val.(*RequestData); ok {
    return rd
  }
  return nil
}

// RequestData carries the caller identity resolved by the auth middleware.
// Authenticated requests fill UserID; anonymous requests fill SessionID.
// DeviceFingerprint is present whenever the client sent one.
type RequestData struct {
  TokenString       string
  UserID            uuid.UUID
  SessionID         string
  DeviceFingerprint string
}
