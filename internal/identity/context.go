// Package identity resolves who is acting and who owns what.
package identity

import "context"

type ctxKey int

const (
	userKey ctxKey = iota
	deviceKey
)

// WithUser returns a context carrying the authenticated user id
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserID returns the authenticated user id, or "" when the request is anonymous
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// WithDevice attaches the client's device fingerprint
func WithDevice(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, deviceKey, fingerprint)
}

// DeviceFingerprint returns the fingerprint attached by WithDevice
func DeviceFingerprint(ctx context.Context) string {
	fp, _ := ctx.Value(deviceKey).(string)
	return fp
}
