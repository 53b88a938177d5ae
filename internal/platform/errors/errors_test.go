package errors

import (
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeStateExpired, "state expired", fmt.Errorf("clock"))
	if !Is(err, New(CodeStateExpired, "other message")) {
		t.Fatal("expected code match")
	}
	if Is(err, New(CodeStateReplayed, "state expired")) {
		t.Fatal("expected different code not to match")
	}
}

func TestCodeOfUnwrapsChain(t *testing.T) {
	err := fmt.Errorf("verify: %w", New(CodeStateNotFound, "State not found"))
	if got := CodeOf(err); got != CodeStateNotFound {
		t.Fatalf("CodeOf() = %q, want %q", got, CodeStateNotFound)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf() = %q, want %q", got, CodeUnknown)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeTokenRefreshFailed, "refresh twitter token", fmt.Errorf("invalid_grant"))
	if got := err.Error(); got != "refresh twitter token: invalid_grant" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestCodeClassification(t *testing.T) {
	tests := []struct {
		code        Code
		kind        Kind
		clientFault bool
		grpc        codes.Code
	}{
		{CodeConfigMasterSecretMissing, KindConfig, false, codes.Internal},
		{CodeStateNotFound, KindRejected, true, codes.NotFound},
		{CodeStateReplayed, KindRejected, true, codes.FailedPrecondition},
		{CodeStateExpired, KindRejected, true, codes.FailedPrecondition},
		{CodePlatformInvalid, KindInput, true, codes.InvalidArgument},
		{CodeDecryptionFailed, KindCrypto, false, codes.Internal},
		{CodeCredentialsStorage, KindStorage, false, codes.Unavailable},
		{CodeTokenRefreshFailed, KindRefresh, false, codes.Unavailable},
		{CodeTokenExpired, KindRejected, true, codes.FailedPrecondition},
		{Code("SOMETHING_ELSE"), KindUnknown, false, codes.Internal},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := tc.code.Kind(); got != tc.kind {
				t.Fatalf("Kind() = %q, want %q", got, tc.kind)
			}
			if got := tc.code.ClientFault(); got != tc.clientFault {
				t.Fatalf("ClientFault() = %v, want %v", got, tc.clientFault)
			}
			if got := tc.code.GRPCCode(); got != tc.grpc {
				t.Fatalf("GRPCCode() = %v, want %v", got, tc.grpc)
			}
		})
	}
}

func TestToGRPCStatusCarriesReason(t *testing.T) {
	err := WithMetadata(CodeStateExpired, "State expired", map[string]string{"platform": "twitter"}).ToGRPCStatus()
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected grpc status, got %v", err)
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("code = %v, want %v", st.Code(), codes.FailedPrecondition)
	}
	var found bool
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			found = info.GetReason() == string(CodeStateExpired) && info.GetMetadata()["platform"] == "twitter"
		}
	}
	if !found {
		t.Fatal("expected ErrorInfo detail with reason and metadata")
	}
}
