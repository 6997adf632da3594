package envutil

import (
	"strings"
	"testing"
)

func TestSplit_ShortValuesUntouched(t *testing.T) {
	env := map[string]string{"SHORT": "value"}

	if err := Split(env, 256); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env["SHORT"] != "value" {
		t.Error("short value should not be split")
	}
	if len(env) != 1 {
		t.Errorf("expected 1 variable, got %d", len(env))
	}
}

func TestSplit_LongValueChunked(t *testing.T) {
	long := strings.Repeat("x", 600)
	env := map[string]string{"LONG": long}

	if err := Split(env, 256); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := env["LONG"]; ok {
		t.Error("original variable should be removed")
	}
	if env["LONG_CHUNK_0"] != strings.Repeat("x", 256) {
		t.Error("first chunk should hold the size limit")
	}
	if env["LONG_CHUNK_1"] != strings.Repeat("x", 256) {
		t.Error("second chunk should hold the size limit")
	}
	if env["LONG_CHUNK_2"] != strings.Repeat("x", 88) {
		t.Error("last chunk should hold the remainder")
	}
	if len(env) != 3 {
		t.Errorf("expected 3 chunks, got %d variables", len(env))
	}
}

func TestSplit_TooManyChunks(t *testing.T) {
	env := map[string]string{"HUGE": strings.Repeat("x", 11*256)}

	if err := Split(env, 256); err == nil {
		t.Error("expected error when chunk count exceeds the limit")
	}
}

func TestReconstruct_RoundTrip(t *testing.T) {
	long := strings.Repeat("abcdef", 200)
	env := map[string]string{
		"LONG":  long,
		"SHORT": "value",
	}

	if err := Split(env, SageMakerProcessorSizeLimit); err != nil {
		t.Fatalf("split: %v", err)
	}
	if err := Reconstruct(env); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	if env["LONG"] != long {
		t.Error("long value should survive the round trip")
	}
	if env["SHORT"] != "value" {
		t.Error("short value should survive the round trip")
	}
	if len(env) != 2 {
		t.Errorf("expected 2 variables, got %d", len(env))
	}
}

func TestReconstruct_MissingChunk(t *testing.T) {
	env := map[string]string{
		"LONG_CHUNK_0": "aaa",
		"LONG_CHUNK_2": "ccc",
	}

	if err := Reconstruct(env); err == nil {
		t.Error("expected error for a gap in chunk indexes")
	}
}

func TestReconstruct_IgnoresLookalikes(t *testing.T) {
	env := map[string]string{
		"NOT_CHUNK_ED": "value",
	}

	if err := Reconstruct(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env["NOT_CHUNK_ED"] != "value" {
		t.Error("variable with non-numeric chunk suffix should be untouched")
	}
}
