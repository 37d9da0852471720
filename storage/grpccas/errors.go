package grpccas

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ckbecs.dev/ecs/storage"
)

// Storage sentinels and their wire status codes. Each code maps back to
// exactly one sentinel on the client.
var statusOf = []struct {
	err  error
	code codes.Code
}{
	{storage.ErrNotFound, codes.NotFound},
	{storage.ErrInvalidCID, codes.InvalidArgument},
	{storage.ErrCIDMismatch, codes.DataLoss},
	{storage.ErrImmutable, codes.AlreadyExists},
	{storage.ErrNoBackends, codes.FailedPrecondition},
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range statusOf {
		if errors.Is(err, s.err) {
			return status.Error(s.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, s := range statusOf {
		if st.Code() == s.code {
			return s.err
		}
	}
	return err
}
