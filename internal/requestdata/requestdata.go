package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKeyType struct{}

var requestDataKey = requestDataKeyType{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}

type RequestData struct {
	TokenString string
	UserID      uuid.UUID
	IsAdmin     bool
}

// CanActFor reports whether the authenticated caller may read or write data
// for targetUserID: themselves, or anyone when admin.
func (rd *RequestData) CanActFor(targetUserID uuid.UUID) bool {
	if rd == nil || rd.UserID == uuid.Nil {
		return false
	}
	return rd.IsAdmin || rd.UserID == targetUserID
}
