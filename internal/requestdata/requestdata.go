package requestdata

import "context"

type contextKey struct{}

// RequestData carries the authenticated owner through the request context.
type RequestData struct {
	OwnerID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, contextKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	rd, _ := ctx.Value(contextKey{}).(*RequestData)
	return rd
}

// OwnerID returns the authenticated owner id, or "" when unauthenticated.
func OwnerID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.OwnerID
	}
	return ""
}
