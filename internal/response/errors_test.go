package response

import "testing"

func TestGetMessageKnownCodes(t *testing.T) {
	tests := []struct {
		code ErrCode
		want string
	}{
		{ErrAttemptInProgress, "You already have an attempt in progress for this assessment. Resume it instead of starting a new one."},
		{ErrAttemptExpired, "The time window for this attempt has closed. It can no longer be submitted."},
		{ErrInvalidCredentials, "Email or password is incorrect."},
	}

	for _, tt := range tests {
		if got := GetMessage(tt.code); got != tt.want {
			t.Errorf("GetMessage(%s) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestGetMessageUnknownCode(t *testing.T) {
	if got := GetMessage(ErrCode("SOMETHING_NEW")); got == "" {
		t.Error("GetMessage() on unknown code returned empty string")
	}
}
