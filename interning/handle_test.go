package interning

import (
	"encoding/json"
	"fmt"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestHandleIsPointerSized(t *testing.T) {
	if got, want := unsafe.Sizeof(Handle{}), unsafe.Sizeof(uintptr(0)); got != want {
		t.Fatalf("expected Handle to be %d bytes, got %d", want, got)
	}
}

func TestInternSameAddress(t *testing.T) {
	s := Intern("handle_test hello")
	if !s.EqualString("handle_test hello") {
		t.Fatalf("expected %q, got %q", "handle_test hello", s.String())
	}
	u := Intern("handle_test hello")
	if s.p != u.p {
		t.Fatalf("expected the same buffer, got %p and %p", s.p, u.p)
	}
	if s != u {
		t.Fatalf("expected identical handles")
	}
}

func TestInternEmptyFastPath(t *testing.T) {
	before := Len()
	h := Intern("")
	if h != Empty() {
		t.Fatalf("expected empty sentinel, got %#v", h)
	}
	if h.Len() != 0 || h.String() != "" {
		t.Fatalf("expected empty text, got len=%d text=%q", h.Len(), h.String())
	}
	if h.IsZero() {
		t.Fatalf("empty sentinel must differ from the zero handle")
	}
	if !h.IsEmpty() {
		t.Fatalf("expected IsEmpty")
	}
	if after := Len(); after != before {
		t.Fatalf("interning \"\" changed the table size from %d to %d", before, after)
	}
}

func TestZeroHandle(t *testing.T) {
	var h Handle
	if !h.IsZero() {
		t.Fatalf("expected zero handle")
	}
	if h.String() != "" || h.Len() != 0 {
		t.Fatalf("zero handle should read as empty, got %q", h.String())
	}
	if h == Empty() {
		t.Fatalf("zero handle must not equal the empty sentinel")
	}
	if got := fmt.Sprintf("%#v", h); got != "interning.Handle{}" {
		t.Errorf("unexpected GoString %q", got)
	}
}

func TestHandleRoundTrip(t *testing.T) {
	for _, s := range []string{"handle_test a", "handle_test ünïcødé", "handle_test 日本語", "handle_test \x00 nul"} {
		h := Intern(s)
		if h.String() != s {
			t.Errorf("expected %q, got %q", s, h.String())
		}
		if h.Len() != len(s) {
			t.Errorf("expected len %d for %q, got %d", len(s), s, h.Len())
		}
	}
}

func TestHandleTextOutlivesHandle(t *testing.T) {
	text := func() string {
		return Intern("handle_test outlives").String()
	}()
	if text != "handle_test outlives" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestHandleContentEquality(t *testing.T) {
	table := NewTable()
	a := Intern("handle_test equal")
	// A handle from another table carries the same content at a different
	// address; equality is still defined by content.
	b := table.Intern("handle_test equal")
	if a.p == b.p {
		t.Fatalf("expected distinct buffers across tables")
	}
	if !a.Equal(b) {
		t.Fatalf("expected content equality")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("expected equal hashes for equal content")
	}
	if a.Compare(b) != 0 {
		t.Fatalf("expected Compare == 0")
	}
}

func TestHandleDistinct(t *testing.T) {
	a := Intern("handle_test a")
	b := Intern("handle_test b")
	if a == b || a.Equal(b) {
		t.Fatalf("expected distinct handles for distinct content")
	}
	if a.String() == b.String() {
		t.Fatalf("expected distinct text")
	}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 {
		t.Fatalf("unexpected ordering: %q vs %q", a, b)
	}
}

func TestHandleHashMatchesRawText(t *testing.T) {
	h := Intern("handle_test hash")
	if h.Hash() != hashString("handle_test hash") {
		t.Fatalf("handle hash differs from raw text hash")
	}
}

func TestHandleCloneAndAppend(t *testing.T) {
	h := Intern("handle_test clone")
	c := h.Clone()
	if c != h.String() {
		t.Fatalf("expected clone %q, got %q", h.String(), c)
	}
	if unsafe.StringData(c) == unsafe.StringData(h.String()) {
		t.Fatalf("clone shares the interned buffer")
	}
	if got := string(h.AppendTo([]byte("> "))); got != "> handle_test clone" {
		t.Errorf("unexpected AppendTo result %q", got)
	}
}

func TestInternBytes(t *testing.T) {
	b := []byte("handle_test bytes")
	h, err := InternBytes(b)
	if err != nil {
		t.Fatalf("InternBytes returned error: %v", err)
	}
	b[0] = 'H'
	if h.String() != "handle_test bytes" {
		t.Fatalf("interned text aliases the input: %q", h.String())
	}
	if h != Intern("handle_test bytes") {
		t.Fatalf("InternBytes and Intern disagree")
	}

	if _, err := InternBytes([]byte{0xff, 0xfe}); err != ErrInvalidUTF8 {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
	if h, err := InternBytes(nil); err != nil || h != Empty() {
		t.Fatalf("expected empty sentinel for nil input, got %#v, %v", h, err)
	}
}

func TestTryIntern(t *testing.T) {
	h, err := TryIntern("handle_test try")
	if err != nil {
		t.Fatalf("TryIntern returned error: %v", err)
	}
	if h != Intern("handle_test try") {
		t.Fatalf("TryIntern and Intern disagree")
	}
}

type labelled struct {
	Name Handle   `json:"name" yaml:"name"`
	Tags []Handle `json:"tags" yaml:"tags"`
}

func TestHandleJSON(t *testing.T) {
	in := labelled{Name: Intern("handle_test json"), Tags: []Handle{Intern("x"), Empty()}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `{"name":"handle_test json","tags":["x",""]}` {
		t.Fatalf("unexpected JSON %s", data)
	}
	var out labelled
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if out.Name != in.Name {
		t.Fatalf("expected the same handle after unmarshal")
	}
	got := []string{out.Tags[0].String(), out.Tags[1].String()}
	if diff := cmp.Diff([]string{"x", ""}, got); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleYAML(t *testing.T) {
	var out labelled
	if err := yaml.Unmarshal([]byte("name: handle_test yaml\ntags: [a, b]\n"), &out); err != nil {
		t.Fatalf("yaml.Unmarshal returned error: %v", err)
	}
	if out.Name != Intern("handle_test yaml") {
		t.Fatalf("expected interned name, got %q", out.Name)
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		t.Fatalf("yaml.Marshal returned error: %v", err)
	}
	if string(data) != "name: handle_test yaml\ntags:\n    - a\n    - b\n" {
		t.Errorf("unexpected YAML:\n%s", data)
	}
}
