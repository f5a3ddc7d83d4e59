package inventory

import "context"

type contextKey int

const actorKey contextKey = iota

// WithActor returns a context carrying the acting user's id
// 操作者IDをコンテキストに設定
func WithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext extracts the acting user's id
// コンテキストから操作者IDを取得
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey).(int64)
	return id, ok && id > 0
}
