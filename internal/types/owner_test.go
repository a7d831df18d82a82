package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestOwnerValid(t *testing.T) {
	empty := ""
	nilID := uuid.Nil
	userID := uuid.New()
	session := "sess-1"

	cases := []struct {
		name  string
		owner Owner
		want  bool
	}{
		{"session_only", SessionOwner("sess-1"), true},
		{"user_only", UserOwner(userID), true},
		{"neither", Owner{}, false},
		{"both", Owner{SessionID: &session, UserID: &userID}, false},
		{"empty_session", Owner{SessionID: &empty}, false},
		{"nil_user", Owner{UserID: &nilID}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.owner.Valid(); got != tc.want {
				t.Fatalf("Valid(): want=%v got=%v", tc.want, got)
			}
		})
	}
}

func TestPathwayStatusRank(t *testing.T) {
	order := []string{PathwayStatusAvailable, PathwayStatusApplied, PathwayStatusProcessing, PathwayStatusCompleted}
	for i, status := range order {
		if got := PathwayStatusRank(status); got != i {
			t.Fatalf("rank(%q): want=%d got=%d", status, i, got)
		}
	}
	if got := PathwayStatusRank("garbage"); got != -1 {
		t.Fatalf("unknown rank: want=-1 got=%d", got)
	}
}
