package addr

import "testing"

func TestAddr_IsEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Addr
		want bool
	}{
		{"equal", Addr{1, 2}, Addr{1, 2}, true},
		{"different net", Addr{1, 2}, Addr{2, 2}, false},
		{"different node", Addr{1, 2}, Addr{1, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsEqual(tt.b); got != tt.want {
				t.Errorf("IsEqual() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddr_IsRoot(t *testing.T) {
	if !Root.IsRoot() {
		t.Errorf("Root.IsRoot() = false, want true")
	}
	if (Addr{0, 253}).IsRoot() {
		t.Errorf("Addr{0,253}.IsRoot() = true, want false")
	}
}

func TestAddr_IsBroadcast(t *testing.T) {
	if !Broadcast.IsBroadcast() {
		t.Errorf("Broadcast.IsBroadcast() = false, want true")
	}
	if (Addr{255, 0}).IsBroadcast() {
		t.Errorf("Addr{255,0}.IsBroadcast() = true, want false")
	}
}

func TestAddr_String(t *testing.T) {
	if got, want := (Addr{3, 254}).String(), "3.254"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
