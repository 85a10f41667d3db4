package recognize

import "testing"

func TestMatchByPhoneSuffix(t *testing.T) {
	members := []PhoneEntry{
		{MemberID: "m1", Phone: "010-1234-5678"},
		{MemberID: "m2", Phone: "010-9999-5678"},
		{MemberID: "m3", Phone: "010-2222-0000"},
	}

	tests := []struct {
		name   string
		digits string
		want   []string
	}{
		{"shared suffix matches both", "5678", []string{"m1", "m2"}},
		{"wrong suffix matches none", "4567", nil},
		{"input is digit-stripped first", "4-5678", []string{"m1"}},
		{"longer suffix narrows", "45678", []string{"m1"}},
		{"empty input matches none", "", nil},
		{"non-digit input matches none", "abc-", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchByPhoneSuffix(tt.digits, members)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d matches, want %d (%v)", len(got), len(tt.want), got)
			}
			for i, id := range tt.want {
				if got[i].MemberID != id {
					t.Errorf("match[%d] = %s, want %s", i, got[i].MemberID, id)
				}
			}
		})
	}
}

func TestMatchByPhoneSuffix_EmptyGallery(t *testing.T) {
	if got := MatchByPhoneSuffix("5678", nil); got != nil {
		t.Errorf("empty gallery returned %v", got)
	}
}
