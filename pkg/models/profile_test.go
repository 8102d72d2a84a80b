package models

import "testing"

func TestProfile_Valid(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    bool
	}{
		{"performance is valid", ProfilePerformance, true},
		{"balanced is valid", ProfileBalanced, true},
		{"eco is valid", ProfileEco, true},
		{"critical is valid", ProfileCritical, true},
		{"empty string is invalid", Profile(""), false},
		{"unknown profile is invalid", Profile("TURBO"), false},
		{"lowercase is invalid", Profile("eco"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Valid(); got != tt.want {
				t.Errorf("Profile(%q).Valid() = %v, want %v", tt.profile, got, tt.want)
			}
		})
	}
}

func TestProfile_ConstraintOrder(t *testing.T) {
	tests := []struct {
		name  string
		p     Profile
		other Profile
		more  bool
		less  bool
	}{
		{"critical vs performance", ProfileCritical, ProfilePerformance, true, false},
		{"eco vs balanced", ProfileEco, ProfileBalanced, true, false},
		{"performance vs critical", ProfilePerformance, ProfileCritical, false, true},
		{"balanced vs balanced", ProfileBalanced, ProfileBalanced, false, false},
		{"balanced vs performance", ProfileBalanced, ProfilePerformance, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.MoreConstrainedThan(tt.other); got != tt.more {
				t.Errorf("%q.MoreConstrainedThan(%q) = %v, want %v", tt.p, tt.other, got, tt.more)
			}
			if got := tt.p.LessConstrainedThan(tt.other); got != tt.less {
				t.Errorf("%q.LessConstrainedThan(%q) = %v, want %v", tt.p, tt.other, got, tt.less)
			}
		})
	}
}

func TestAllProfiles_Order(t *testing.T) {
	profiles := AllProfiles()

	if len(profiles) != 4 {
		t.Fatalf("AllProfiles() returned %d profiles, want 4", len(profiles))
	}
	for i := 1; i < len(profiles); i++ {
		if !profiles[i].MoreConstrainedThan(profiles[i-1]) {
			t.Errorf("AllProfiles()[%d] = %q should be more constrained than %q",
				i, profiles[i], profiles[i-1])
		}
	}
}

func TestReasoningPolicy_Valid(t *testing.T) {
	valid := []ReasoningPolicy{PolicyHybrid, PolicyPreferLocal, PolicyLocalOnly, PolicyCacheOnly}
	for _, p := range valid {
		if !p.Valid() {
			t.Errorf("ReasoningPolicy(%q) should be valid", p)
		}
	}

	invalid := []ReasoningPolicy{"", "hybrid", "REMOTE_ONLY", "CACHE"}
	for _, p := range invalid {
		if p.Valid() {
			t.Errorf("ReasoningPolicy(%q) should not be valid", p)
		}
	}
}
