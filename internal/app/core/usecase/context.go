package usecase

import "context"

type refIDKey struct{}

// WithRefID 將呼叫端的追蹤號放入 context
func WithRefID(ctx context.Context, refID string) context.Context {
	if refID == "" {
		return ctx
	}
	return context.WithValue(ctx, refIDKey{}, refID)
}

// RefIDFromContext 取出追蹤號，沒有則回傳空字串
func RefIDFromContext(ctx context.Context) string {
	refID, _ := ctx.Value(refIDKey{}).(string)
	return refID
}
