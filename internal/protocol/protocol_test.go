package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/softframe/embedctl/internal/testutil/testlog"
)

func TestParseCallEnvelope(t *testing.T) {
	testlog.Start(t)
	env, err := Parse([]byte(`{"id":7,"func":"search.closeSearch","args":[{"a":1}]}`))
	if err != nil {
		t.Fatalf("parse call: %v", err)
	}
	if !env.HasID() || *env.ID != 7 {
		t.Fatalf("unexpected id: %+v", env.ID)
	}
	if env.Func != "search.closeSearch" {
		t.Fatalf("unexpected func: %q", env.Func)
	}
	if len(env.Args) != 1 {
		t.Fatalf("unexpected args: %v", env.Args)
	}
}

func TestParseEventEnvelope(t *testing.T) {
	testlog.Start(t)
	env, err := Parse([]byte(`{"func":"searchQueryChange","args":[{"searchTerm":"abc"}]}`))
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if env.HasID() {
		t.Fatalf("event should carry no id")
	}
	if env.Func != "searchQueryChange" {
		t.Fatalf("unexpected func: %q", env.Func)
	}
}

func TestParseMalformed(t *testing.T) {
	testlog.Start(t)
	cases := []string{
		`not json`,
		`{}`,
		`{"args":[]}`,
		`[1,2,3]`,
		`{"isResponse":true,"args":[null]}`,
	}
	for _, raw := range cases {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("raw=%q expected ErrMalformedEnvelope, got %v", raw, err)
		}
	}
}

func TestParseNilArgsNormalized(t *testing.T) {
	testlog.Start(t)
	env, err := Parse([]byte(`{"func":"ping"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Args == nil {
		t.Fatalf("args should be normalized to empty")
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	testlog.Start(t)
	args, err := MarshalArgs(map[string]string{"searchTerm": "abc"}, 42)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	env := NewCall(3, "ping", args)
	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(env, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateResponseRequiresID(t *testing.T) {
	testlog.Start(t)
	env := Envelope{Func: "ping", IsResponse: true}
	if err := env.Validate(); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestSplitResponseArgsSuccess(t *testing.T) {
	testlog.Start(t)
	for _, slot := range []string{`null`, `false`, ``} {
		args := []json.RawMessage{json.RawMessage(slot), json.RawMessage(`{"search":true}`)}
		remoteErr, results := SplitResponseArgs(args)
		if remoteErr != nil {
			t.Fatalf("slot=%q expected no error, got %v", slot, remoteErr)
		}
		if len(results) != 1 {
			t.Fatalf("slot=%q unexpected results: %v", slot, results)
		}
	}
}

func TestSplitResponseArgsStructuredError(t *testing.T) {
	testlog.Start(t)
	args := []json.RawMessage{json.RawMessage(`{"errorCode":500,"message":"boom"}`)}
	remoteErr, results := SplitResponseArgs(args)
	if remoteErr == nil || remoteErr.Code != 500 || remoteErr.Message != "boom" {
		t.Fatalf("unexpected remote error: %+v", remoteErr)
	}
	if len(results) != 0 {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestSplitResponseArgsStringError(t *testing.T) {
	testlog.Start(t)
	remoteErr, _ := SplitResponseArgs([]json.RawMessage{json.RawMessage(`"boom"`)})
	if remoteErr == nil || remoteErr.Message != "boom" {
		t.Fatalf("unexpected remote error: %+v", remoteErr)
	}
}

func TestSplitResponseArgsEmpty(t *testing.T) {
	testlog.Start(t)
	remoteErr, results := SplitResponseArgs(nil)
	if remoteErr != nil || results != nil {
		t.Fatalf("empty args should mean success with no results")
	}
}

func TestNewResponseErrorSlot(t *testing.T) {
	testlog.Start(t)
	env, err := NewResponse(9, &RemoteError{Code: 404, Message: "unknown func"}, nil)
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	if !env.IsResponse || *env.ID != 9 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	remoteErr, _ := SplitResponseArgs(env.Args)
	if remoteErr == nil || remoteErr.Code != 404 {
		t.Fatalf("error slot did not round trip: %+v", remoteErr)
	}

	ok, err := NewResponse(9, nil, []json.RawMessage{json.RawMessage(`1`)})
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	remoteErr, results := SplitResponseArgs(ok.Args)
	if remoteErr != nil || len(results) != 1 {
		t.Fatalf("success slot did not round trip: %v %v", remoteErr, results)
	}
}
