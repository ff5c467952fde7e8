package session

import "testing"

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()

	if s.InProgress("42") {
		t.Fatal("fresh store should have no active session")
	}
	if got := s.Get("42"); got.State != StateIdle {
		t.Fatalf("expected idle, got %s", got.State)
	}

	s.Set("42", StateAwaitingCaptcha, Payload{CaptchaAnswer: 7})
	if !s.InProgress("42") {
		t.Fatal("session should be in progress")
	}
	got := s.Get("42")
	if got.State != StateAwaitingCaptcha || got.Payload.CaptchaAnswer != 7 {
		t.Fatalf("unexpected session: %+v", got)
	}

	// A transition replaces the payload wholesale.
	s.Set("42", StateAwaitingQuantity, Payload{CategoryID: "100"})
	got = s.Get("42")
	if got.Payload.CaptchaAnswer != 0 || got.Payload.CategoryID != "100" {
		t.Fatalf("payload not replaced: %+v", got)
	}

	s.Clear("42")
	if s.InProgress("42") {
		t.Fatal("cleared session should not be in progress")
	}
}

func TestStoreIsolatesUsers(t *testing.T) {
	s := NewStore()
	s.Set("1", StateInSupport, Payload{})
	if s.InProgress("2") {
		t.Fatal("other user should be untouched")
	}
}

func TestAdminStateClassification(t *testing.T) {
	adminStates := []State{
		StateAdminAwaitingCategoryValue, StateAdminAwaitingBasePrice,
		StateAdminAwaitingTierPrice, StateAdminAwaitingStockCodes,
		StateAdminAwaitingCodeRemoval, StateAdminAwaitingBroadcast,
		StateAdminAwaitingDMTarget, StateAdminAwaitingDMText,
		StateAdminAwaitingBlockTarget,
	}
	for _, st := range adminStates {
		if !st.Admin() {
			t.Errorf("%s should be an admin state", st)
		}
	}
	for _, st := range []State{StateIdle, StateAwaitingCaptcha, StateAwaitingUTR, StateInSupport} {
		if st.Admin() {
			t.Errorf("%s should not be an admin state", st)
		}
	}
}
