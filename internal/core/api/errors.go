package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/flagkeeper/internal/core/auth"
	"github.com/solatis/flagkeeper/internal/types"
)

// Error mapping at the API boundary.
// Domain sentinels map to specific codes and travel as the status message,
// which always starts with the sentinel's text; FromStatus reverses the
// mapping on the client. Any other error maps to INTERNAL.
var sentinelCodes = []struct {
	err  error
	code codes.Code
}{
	{types.ErrTargetingNotFound, codes.NotFound},
	{types.ErrSegmentNotFound, codes.NotFound},
	{types.ErrApprovalNotFound, codes.NotFound},
	{types.ErrTargetingExists, codes.AlreadyExists},
	{types.ErrStaleVersion, codes.Aborted},
	{types.ErrApprovalRequired, codes.FailedPrecondition},
	{types.ErrApprovalResolved, codes.FailedPrecondition},
	{types.ErrInvalidRequest, codes.InvalidArgument},
	{types.ErrAmbiguousServe, codes.InvalidArgument},
	{types.ErrEmptyServe, codes.InvalidArgument},
	{auth.ErrWrongProject, codes.PermissionDenied},
}

// toStatus converts a service error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return status.Error(s.code, err.Error())
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// FromStatus converts a status error from the targeting API back into an
// error wrapping the matching domain sentinel, if any.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return err
	}
	msg := st.Message()
	for _, s := range sentinelCodes {
		if s.code == st.Code() && strings.HasPrefix(msg, s.err.Error()) {
			return fmt.Errorf("%w%s", s.err, strings.TrimPrefix(msg, s.err.Error()))
		}
	}
	return err
}
