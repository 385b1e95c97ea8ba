package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Store error kinds. Every error returned by a backend wraps exactly one of
// ErrTimeout, ErrUnavailable or ErrPersistence (ErrNotFound is returned bare).
var (
	ErrTimeout     = errors.New("store timeout")
	ErrUnavailable = errors.New("store unavailable")
	ErrPersistence = errors.New("store persistence failure")
	ErrNotFound    = errors.New("record not found")
)

// DriverClassifier maps driver-specific errors to a store error kind.
// It returns nil when it does not recognize the error.
type DriverClassifier func(err error) error

// Classify wraps err with its store error kind. ctx is the context the call
// ran under: an expired deadline wins over whatever the driver reported, since
// drivers surface cancellation in their own words.
func Classify(ctx context.Context, op string, err error, driverKinds ...DriverClassifier) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrPersistence) || errors.Is(err, ErrNotFound) {
		return err
	}

	kind := classifyKind(ctx, err, driverKinds)
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

func classifyKind(ctx context.Context, err error, driverKinds []DriverClassifier) error {
	if errors.Is(err, context.DeadlineExceeded) ||
		(ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return ErrTimeout
	}

	for _, classify := range driverKinds {
		if kind := classify(err); kind != nil {
			return kind
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, driver.ErrBadConn) {
		return ErrUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrUnavailable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrUnavailable
	}

	return ErrPersistence
}
