package models

import "testing"

func strPtr(s string) *string { return &s }

func TestNewItemKey_NameFallsBackToID(t *testing.T) {
	k := NewItemKey(strPtr("minecraft:diamond"), nil)
	if k.Name == nil || *k.Name != "minecraft:diamond" {
		t.Errorf("expected name to fall back to id, got %v", k.Name)
	}

	k = NewItemKey(strPtr("minecraft:diamond"), strPtr(""))
	if k.Name == nil || *k.Name != "minecraft:diamond" {
		t.Errorf("expected empty name to fall back to id, got %v", k.Name)
	}

	k = NewItemKey(strPtr("minecraft:diamond"), strPtr("Diamond"))
	if k.Name == nil || *k.Name != "Diamond" {
		t.Errorf("expected display name to win, got %v", k.Name)
	}
}

func TestItemKey_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b ItemKey
		want bool
	}{
		{
			name: "both fields set and equal",
			a:    ItemKey{ID: strPtr("a"), Name: strPtr("A")},
			b:    ItemKey{ID: strPtr("a"), Name: strPtr("A")},
			want: true,
		},
		{
			name: "different names",
			a:    ItemKey{ID: strPtr("a"), Name: strPtr("A")},
			b:    ItemKey{ID: strPtr("a"), Name: strPtr("B")},
			want: false,
		},
		{
			name: "absent equals absent",
			a:    ItemKey{ID: strPtr("a")},
			b:    ItemKey{ID: strPtr("a")},
			want: true,
		},
		{
			name: "absent does not equal present",
			a:    ItemKey{ID: strPtr("a")},
			b:    ItemKey{ID: strPtr("a"), Name: strPtr("a")},
			want: false,
		},
		{
			name: "fully absent keys are equal",
			a:    ItemKey{},
			b:    ItemKey{},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItemKey_Label(t *testing.T) {
	if got := (ItemKey{ID: strPtr("id"), Name: strPtr("Name")}).Label(); got != "Name" {
		t.Errorf("Label() = %q, want Name", got)
	}
	if got := (ItemKey{ID: strPtr("id")}).Label(); got != "id" {
		t.Errorf("Label() = %q, want id", got)
	}
	if got := (ItemKey{}).Label(); got != "unknown" {
		t.Errorf("Label() = %q, want unknown", got)
	}
}
