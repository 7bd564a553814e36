package auth

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7, SessionID: 3})

	ac, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected auth context present")
	}
	if ac.UserID != 7 || ac.SessionID != 3 {
		t.Errorf("auth context = %+v, want UserID 7 SessionID 3", ac)
	}
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
}

func TestContextAbsent(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no auth context on a bare context")
	}
	if UserID(context.Background()) != 0 {
		t.Error("expected zero user id on a bare context")
	}
}
