package crypto

import (
	"testing"

	"github.com/quantachain/quanta/pkg/types"
)

func TestHash_Deterministic(t *testing.T) {
	data := []byte("deterministic test input")
	h1 := Hash(data)
	h2 := Hash(data)
	if h1 != h2 {
		t.Errorf("Hash is not deterministic: %x != %x", h1, h2)
	}
}

func TestHash_DifferentInputs(t *testing.T) {
	h1 := Hash([]byte("input A"))
	h2 := Hash([]byte("input B"))
	if h1 == h2 {
		t.Error("different inputs produced the same hash")
	}
}

func TestHash_EmptyInput(t *testing.T) {
	h := Hash([]byte{})
	if h == (types.Hash{}) {
		t.Error("Hash of empty input should not be the zero hash")
	}
}

func TestDoubleHash_NotSameAsHash(t *testing.T) {
	data := []byte("test data")
	single := Hash(data)
	double := DoubleHash(data)
	if single == double {
		t.Error("DoubleHash should not equal single Hash")
	}
}

func TestDoubleHash_EqualsHashOfHash(t *testing.T) {
	data := []byte("test data")
	want := Hash(Hash(data).Bytes())
	got := DoubleHash(data)
	if got != want {
		t.Errorf("DoubleHash(%q) = %x, want %x", data, got, want)
	}
}

func TestHashConcat(t *testing.T) {
	a := Hash([]byte("left"))
	b := Hash([]byte("right"))
	result := HashConcat(a, b)

	if result == (types.Hash{}) {
		t.Error("HashConcat returned zero hash")
	}

	reversed := HashConcat(b, a)
	if result == reversed {
		t.Error("HashConcat(a,b) should differ from HashConcat(b,a)")
	}

	again := HashConcat(a, b)
	if result != again {
		t.Error("HashConcat is not deterministic")
	}
}

func TestHashConcat_EqualsManualConcat(t *testing.T) {
	a := Hash([]byte("left"))
	b := Hash([]byte("right"))

	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	want := Hash(buf[:])

	got := HashConcat(a, b)
	if got != want {
		t.Errorf("HashConcat = %x, want %x", got, want)
	}
}

func TestLeadingZeroBits(t *testing.T) {
	tests := []struct {
		name string
		h    types.Hash
		want uint32
	}{
		{"all zero", types.Hash{}, 256},
		{"first byte 0x01", types.Hash{0x01}, 7},
		{"first byte 0xff", types.Hash{0xff}, 0},
		{"first byte 0x0f", types.Hash{0x0f}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LeadingZeroBits(tt.h); got != tt.want {
				t.Errorf("LeadingZeroBits(%x) = %d, want %d", tt.h, got, tt.want)
			}
		})
	}
}

func TestMeetsDifficulty(t *testing.T) {
	h := types.Hash{0x00, 0x01}
	if !MeetsDifficulty(h, 8) {
		t.Error("hash with 8 leading zero bits should meet difficulty 8")
	}
	if MeetsDifficulty(h, 16) {
		t.Error("hash should not meet difficulty 16")
	}
}
