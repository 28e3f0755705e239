// Package auth identifies the requestor of an operation and checks the
// permissions that guard individual fields.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Permission is a named capability granted to a requestor.
type Permission string

const (
	ManagePages                  Permission = "MANAGE_PAGES"
	ManagePageTypesAndAttributes Permission = "MANAGE_PAGE_TYPES_AND_ATTRIBUTES"
)

// ErrPermissionDenied is returned by guards when the requestor lacks a permission.
var ErrPermissionDenied = errors.New("permission denied")

// Requestor is the authenticated caller of an operation. The zero value is
// an anonymous caller without permissions.
type Requestor struct {
	Subject     string
	Permissions []Permission
}

// Has reports whether r was granted p.
func (r *Requestor) Has(p Permission) bool {
	return r != nil && slices.Contains(r.Permissions, p)
}

type requestorKey struct{}

// WithRequestor returns a copy of ctx carrying r.
func WithRequestor(ctx context.Context, r *Requestor) context.Context {
	return context.WithValue(ctx, requestorKey{}, r)
}

// FromContext returns the requestor of the current operation, or nil for
// anonymous callers.
func FromContext(ctx context.Context) *Requestor {
	r, _ := ctx.Value(requestorKey{}).(*Requestor)
	return r
}

// Require fails with ErrPermissionDenied unless the requestor in ctx has p.
func Require(ctx context.Context, p Permission) error {
	if FromContext(ctx).Has(p) {
		return nil
	}
	return fmt.Errorf("%w: you need %s", ErrPermissionDenied, p)
}
