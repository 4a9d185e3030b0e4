package address

import "testing"

func TestAddressString(t *testing.T) {
	a := Address{0xEC, 0x62, 0x60, 0x93, 0xC7, 0xA8}
	want := "EC:62:60:93:C7:A8"
	if got := a.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestAddressIsBroadcast(t *testing.T) {
	if !Broadcast.IsBroadcast() {
		t.Error("Broadcast.IsBroadcast() = false, want true")
	}
	a := Address{0xEC, 0x62, 0x60, 0x93, 0xC7, 0xA8}
	if a.IsBroadcast() {
		t.Error("non-broadcast address reported as broadcast")
	}
}

func TestAddressIsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("IsZero() = false for zero address, want true")
	}
	if Broadcast.IsZero() {
		t.Error("IsZero() = true for broadcast address, want false")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{
			name:  "colon separated",
			input: "EC:62:60:93:C7:A8",
			want:  Address{0xEC, 0x62, 0x60, 0x93, 0xC7, 0xA8},
		},
		{
			name:  "hyphen separated",
			input: "EC-62-60-93-C7-A8",
			want:  Address{0xEC, 0x62, 0x60, 0x93, 0xC7, 0xA8},
		},
		{
			name:  "bare hex",
			input: "EC626093C7A8",
			want:  Address{0xEC, 0x62, 0x60, 0x93, 0xC7, 0xA8},
		},
		{
			name:    "too short",
			input:   "EC:62:60",
			wantErr: true,
		},
		{
			name:    "invalid hex",
			input:   "ZZ:62:60:93:C7:A8",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) error = nil, want error", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("Parse(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}
