package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

type contextKey string

const (
	ctxMemberID contextKey = "member_id"
	ctxStoreID  contextKey = "store_id"
)

// MemberIDFromContext returns the member acting on the request.
func MemberIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxMemberID).(uuid.UUID)
	return v, ok && v != uuid.Nil
}

// StoreIDFromContext returns the store whose ownership was verified for the request.
func StoreIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxStoreID).(uuid.UUID)
	return v, ok && v != uuid.Nil
}

// WithMemberID injects the member identifier into the context.
func WithMemberID(ctx context.Context, memberID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxMemberID, memberID)
}

// WithStoreID injects the store identifier into the context for downstream handlers.
func WithStoreID(ctx context.Context, storeID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxStoreID, storeID)
}

// RequestScope returns the member and the verified store of a store-scoped request.
func RequestScope(ctx context.Context) (memberID, storeID uuid.UUID, err error) {
	memberID, ok := MemberIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "member context missing")
	}
	storeID, ok = StoreIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	return memberID, storeID, nil
}
