package capability

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/softframe/embedctl/internal/testutil/testlog"
)

func TestSupportsBeforePopulate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if r.Supports("search") {
		t.Fatalf("nothing is supported before the matrix arrives")
	}
	if _, ok := r.CapabilitiesOf("search"); ok {
		t.Fatalf("no flags before the matrix arrives")
	}
	if r.Populated() {
		t.Fatalf("registry should report unpopulated")
	}
}

func TestSupportsReflectsMatrix(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	err := r.Populate(Matrix{
		"search": {Supported: true},
		"mail":   {Supported: false},
	})
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if !r.Supports("search") {
		t.Fatalf("search should be supported")
	}
	if r.Supports("mail") {
		t.Fatalf("mail was reported false")
	}
	if r.Supports("calendar") {
		t.Fatalf("absent area means not supported")
	}
}

func TestPopulateWriteOnce(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Populate(Matrix{"search": {Supported: true}}); err != nil {
		t.Fatalf("populate: %v", err)
	}
	err := r.Populate(Matrix{"mail": {Supported: true}})
	if !errors.Is(err, ErrAlreadyPopulated) {
		t.Fatalf("expected ErrAlreadyPopulated, got %v", err)
	}
	if !r.Supports("search") || r.Supports("mail") {
		t.Fatalf("second populate must leave the first matrix intact")
	}
}

func TestPopulateCopiesMatrix(t *testing.T) {
	testlog.Start(t)
	m := Matrix{"search": {Supported: true}}
	r := NewRegistry()
	if err := r.Populate(m); err != nil {
		t.Fatalf("populate: %v", err)
	}
	m["search"] = Flags{}
	if !r.Supports("search") {
		t.Fatalf("registry must not alias the caller's map")
	}
}

func TestMatrixJSONDecode(t *testing.T) {
	testlog.Start(t)
	var m Matrix
	raw := `{"search":true,"mail":false,"media":{"capture":true,"stream":false}}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("decode matrix: %v", err)
	}
	want := Matrix{
		"search": {Supported: true},
		"mail":   {Supported: false},
		"media":  {Supported: true, Features: map[string]bool{"capture": true, "stream": false}},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("matrix mismatch (-want +got):\n%s", diff)
	}
	if !m["media"].Feature("capture") || m["media"].Feature("stream") {
		t.Fatalf("feature lookup mismatch: %+v", m["media"])
	}
}

func TestMatrixJSONRoundTrip(t *testing.T) {
	testlog.Start(t)
	want := Matrix{
		"search": {Supported: true},
		"media":  {Supported: true, Features: map[string]bool{"capture": true}},
	}
	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("encode matrix: %v", err)
	}
	var got Matrix
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode matrix: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("matrix mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixFromAny(t *testing.T) {
	testlog.Start(t)
	m, err := MatrixFromAny(map[string]any{
		"search": true,
		"media":  map[string]any{"capture": true},
	})
	if err != nil {
		t.Fatalf("matrix from any: %v", err)
	}
	if !m["search"].Supported || !m["media"].Feature("capture") {
		t.Fatalf("unexpected matrix: %+v", m)
	}

	if _, err := MatrixFromAny(map[string]any{"search": 3}); !errors.Is(err, ErrInvalidMatrix) {
		t.Fatalf("expected ErrInvalidMatrix, got %v", err)
	}
	if _, err := MatrixFromAny(map[string]any{"media": map[string]any{"capture": "yes"}}); !errors.Is(err, ErrInvalidMatrix) {
		t.Fatalf("expected ErrInvalidMatrix for non-boolean feature, got %v", err)
	}
}
