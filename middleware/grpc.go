package middleware

import (
	"context"

	cn "github.com/artemislabs/lib-entitlement-go/constant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor creates a gRPC unary server interceptor that
// authorizes each call against the entitlement gate. It works like the HTTP
// middleware but reads the license key and connector from incoming metadata.
func (c *EntitlementClient) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	// Perform startup validation
	c.StartupValidation()

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if c == nil || c.gate == nil {
			return handler(ctx, req)
		}

		if err := c.authorizeGRPC(ctx, info.FullMethod); err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// StreamServerInterceptor creates a gRPC stream server interceptor that
// authorizes each stream against the entitlement gate
func (c *EntitlementClient) StreamServerInterceptor() grpc.StreamServerInterceptor {
	// Perform startup validation
	c.StartupValidation()

	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if c == nil || c.gate == nil {
			return handler(srv, ss)
		}

		if err := c.authorizeGRPC(ss.Context(), info.FullMethod); err != nil {
			return err
		}

		return handler(srv, ss)
	}
}

// authorizeGRPC extracts entitlement metadata and runs the gate decision
func (c *EntitlementClient) authorizeGRPC(ctx context.Context, toolID string) error {
	l := c.logger

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		l.Error("Failed to extract metadata from gRPC context")
		return status.Error(codes.Internal, "missing metadata")
	}

	licenseKeys := md.Get(cn.LicenseKeyHeader)
	if len(licenseKeys) == 0 {
		l.Errorf("Missing license key metadata (code %s)", cn.ErrMissingLicenseKeyHeader.Error())
		return status.Error(codes.Unauthenticated, cn.ErrMissingLicenseKeyHeader.Error())
	}

	connectorIDs := md.Get(cn.ConnectorIDHeader)
	if len(connectorIDs) == 0 {
		l.Errorf("Missing connector ID metadata (code %s)", cn.ErrMissingConnectorHeader.Error())
		return status.Error(codes.InvalidArgument, cn.ErrMissingConnectorHeader.Error())
	}

	decision := c.gate.Authorize(ctx, licenseKeys[0], connectorIDs[0], toolID)
	if !decision.Allow {
		l.Warnf("Denied gRPC call for key %s connector %s [reason: %s]",
			decision.KeyID, connectorIDs[0], decision.Reason)

		return status.Error(codes.PermissionDenied, reasonError(decision.Reason).Error())
	}

	return nil
}
