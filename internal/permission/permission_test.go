package permission

import "testing"

func TestRankOrder(t *testing.T) {
	for i := 1; i < len(All); i++ {
		if Rank(All[i-1]) >= Rank(All[i]) {
			t.Errorf("expected %s to rank below %s", All[i-1], All[i])
		}
	}
}

func TestRankPanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown permission")
		}
	}()
	Rank(Permission("editor"))
}

func TestPredicateThresholds(t *testing.T) {
	tests := []struct {
		p           Permission
		readLimited bool
		read        bool
		add         bool
		modifyOwn   bool
		modify      bool
		admin       bool
	}{
		{NoAccess, false, false, false, false, false, false},
		{ReadOnlyNoDetails, true, false, false, false, false, false},
		{ReadOnly, true, true, false, false, false, false},
		{AddOnly, true, true, true, false, false, false},
		{ModifyOwn, true, true, true, true, false, false},
		{Modify, true, true, true, true, true, false},
		{Administrator, true, true, true, true, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			if got := CanReadLimited(tt.p); got != tt.readLimited {
				t.Errorf("CanReadLimited = %v, want %v", got, tt.readLimited)
			}
			if got := CanRead(tt.p); got != tt.read {
				t.Errorf("CanRead = %v, want %v", got, tt.read)
			}
			if got := CanAdd(tt.p); got != tt.add {
				t.Errorf("CanAdd = %v, want %v", got, tt.add)
			}
			if got := CanModifyOwn(tt.p); got != tt.modifyOwn {
				t.Errorf("CanModifyOwn = %v, want %v", got, tt.modifyOwn)
			}
			if got := CanModify(tt.p); got != tt.modify {
				t.Errorf("CanModify = %v, want %v", got, tt.modify)
			}
			if got := IsAdmin(tt.p); got != tt.admin {
				t.Errorf("IsAdmin = %v, want %v", got, tt.admin)
			}
		})
	}
}

// Every predicate true at a lower rank must stay true at every higher rank.
func TestPredicateMonotonicity(t *testing.T) {
	predicates := map[string]func(Permission) bool{
		"CanReadLimited": CanReadLimited,
		"CanRead":        CanRead,
		"CanAdd":         CanAdd,
		"CanModifyOwn":   CanModifyOwn,
		"CanModify":      CanModify,
	}
	for name, pred := range predicates {
		for i, lower := range All {
			if !pred(lower) {
				continue
			}
			for _, higher := range All[i:] {
				if !pred(higher) {
					t.Errorf("%s true for %s but false for %s", name, lower, higher)
				}
			}
		}
	}
}

func TestMax(t *testing.T) {
	tests := []struct {
		name  string
		perms []Permission
		want  Permission
	}{
		{"empty set", nil, NoAccess},
		{"single", []Permission{ReadOnly}, ReadOnly},
		{"ascending", []Permission{ReadOnly, Modify}, Modify},
		{"descending", []Permission{Modify, ReadOnly}, Modify},
		{"admin wins", []Permission{Modify, Administrator, AddOnly}, Administrator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Max(tt.perms...); got != tt.want {
				t.Errorf("Max(%v) = %s, want %s", tt.perms, tt.want, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	for _, p := range All {
		got, err := Parse(string(p))
		if err != nil || got != p {
			t.Errorf("Parse(%q) = %s, %v", p, got, err)
		}
	}
	if _, err := Parse("owner"); err == nil {
		t.Error("Parse accepted unknown value")
	}
}
