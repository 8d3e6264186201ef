package cwerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf_TaxonomyError(t *testing.T) {
	err := E(WipExceeded, "column %s is full", "in_progress")
	if KindOf(err) != WipExceeded {
		t.Errorf("KindOf = %s, want %s", KindOf(err), WipExceeded)
	}
	if err.Error() != "column in_progress is full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOf_WrappedChain(t *testing.T) {
	inner := E(NotFound, "spec missing")
	wrapped := fmt.Errorf("loading board: %w", inner)
	if KindOf(wrapped) != NotFound {
		t.Errorf("KindOf through chain = %s, want %s", KindOf(wrapped), NotFound)
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if KindOf(errors.New("boom")) != Internal {
		t.Error("plain errors must classify as Internal")
	}
}

func TestWithData(t *testing.T) {
	err := E(Conflict, "spec has dependent tasks").WithData("task_ids", []string{"t1", "t2"})
	data := DataOf(err)
	if data == nil {
		t.Fatal("DataOf returned nil")
	}
	ids, ok := data["task_ids"].([]string)
	if !ok || len(ids) != 2 {
		t.Errorf("task_ids = %v", data["task_ids"])
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{InvalidArguments, http.StatusUnprocessableEntity},
		{InvalidTransition, http.StatusUnprocessableEntity},
		{WipExceeded, http.StatusConflict},
		{Conflict, http.StatusConflict},
		{Unavailable, http.StatusServiceUnavailable},
		{Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(E(tc.kind, "x")); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("nil error must exit 0")
	}
	if ExitCode(E(InvalidArguments, "bad flag")) != 2 {
		t.Error("misuse must exit 2")
	}
	if ExitCode(E(Unavailable, "redis down")) != 3 {
		t.Error("precondition failure must exit 3")
	}
	if ExitCode(E(Internal, "bug")) != 1 {
		t.Error("unrecoverable must exit 1")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("dial tcp refused")
	err := Wrap(Unavailable, inner, "redis connection")
	if !errors.Is(err, inner) {
		t.Error("Wrap must preserve the error chain")
	}
}
