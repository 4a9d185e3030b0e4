package codec

import "testing"

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"cmd":"send_text","dst":"EC:62:60:93:C7:A8","text":"hi"}`)

	encoded, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	frame, remaining, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %d bytes, want 0", len(remaining))
	}
	if string(frame.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", frame.Payload, payload)
	}
}

func TestDecodeFrameTwoFramesBackToBack(t *testing.T) {
	f1, _ := EncodeFrame([]byte("one"))
	f2, _ := EncodeFrame([]byte("two"))
	buf := append(append([]byte(nil), f1...), f2...)

	frame1, rest, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode first frame: %v", err)
	}
	if string(frame1.Payload) != "one" {
		t.Errorf("frame1 payload = %q, want %q", frame1.Payload, "one")
	}

	frame2, rest2, err := DecodeFrame(rest)
	if err != nil {
		t.Fatalf("decode second frame: %v", err)
	}
	if string(frame2.Payload) != "two" {
		t.Errorf("frame2 payload = %q, want %q", frame2.Payload, "two")
	}
	if len(rest2) != 0 {
		t.Errorf("trailing bytes = %d, want 0", len(rest2))
	}
}

func TestDecodeFrameChecksumMismatch(t *testing.T) {
	encoded, _ := EncodeFrame([]byte("payload"))
	encoded[len(encoded)-1] ^= 0xFF // corrupt checksum

	if _, _, err := DecodeFrame(encoded); err == nil {
		t.Error("DecodeFrame() error = nil, want checksum mismatch")
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	encoded, _ := EncodeFrame([]byte("payload"))
	_, _, err := DecodeFrame(encoded[:len(encoded)-3])
	if err != ErrIncompleteFrame {
		t.Errorf("DecodeFrame() error = %v, want ErrIncompleteFrame", err)
	}
}

func TestDecodeFrameInvalidMagic(t *testing.T) {
	encoded, _ := EncodeFrame([]byte("payload"))
	encoded[0] ^= 0xFF
	if _, _, err := DecodeFrame(encoded); err != ErrInvalidMagic {
		t.Errorf("DecodeFrame() error = %v, want ErrInvalidMagic", err)
	}
}
