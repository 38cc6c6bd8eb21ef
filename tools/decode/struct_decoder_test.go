package decode

import "testing"

type samplePayload struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

func TestDecodeMap(t *testing.T) {
	out, err := DecodeMap[samplePayload](map[string]any{"token": "abc", "count": 3})
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	if out.Token != "abc" || out.Count != 3 {
		t.Fatalf("out = %+v", out)
	}
}

func TestDecodeMapWeaklyTyped(t *testing.T) {
	// JSON numbers arrive as float64, counts as strings happen too.
	out, err := DecodeMap[samplePayload](map[string]any{"token": "abc", "count": "7"})
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	if out.Count != 7 {
		t.Fatalf("count = %d, want 7", out.Count)
	}
}

func TestDecodeMapStrict(t *testing.T) {
	_, err := DecodeMap[samplePayload](map[string]any{"count": "7"}, Options{WeaklyTypedInput: false})
	if err == nil {
		t.Fatal("strict decode must reject a string count")
	}
}

func TestDecodeMapNil(t *testing.T) {
	if _, err := DecodeMap[samplePayload](nil); err == nil {
		t.Fatal("nil map must be rejected")
	}
}
