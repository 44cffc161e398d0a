package services

import "context"

// Scope identifies the work a context belongs to. Zero fields are unset.
type Scope struct {
	ItemID    int64
	Stage     string
	Locator   string
	RequestID string
}

type scopeKey struct{}

// WithScope merges the non-zero fields of s into the context's scope.
func WithScope(ctx context.Context, s Scope) context.Context {
	cur := ScopeFrom(ctx)
	if s.ItemID != 0 {
		cur.ItemID = s.ItemID
	}
	if s.Stage != "" {
		cur.Stage = s.Stage
	}
	if s.Locator != "" {
		cur.Locator = s.Locator
	}
	if s.RequestID != "" {
		cur.RequestID = s.RequestID
	}
	return context.WithValue(ctx, scopeKey{}, cur)
}

// ScopeFrom returns the scope attached to ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithRequestID tags ctx with a correlation identifier. Blank ids are ignored.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return WithScope(ctx, Scope{RequestID: id})
}
