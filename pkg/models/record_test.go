package models

import "testing"

func TestRecordKind_Valid(t *testing.T) {
	valid := []RecordKind{KindConsultation, KindTask, KindPromptCapture}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("RecordKind(%q) should be valid", k)
		}
	}

	invalid := []RecordKind{"", "consultation", "NOTE"}
	for _, k := range invalid {
		if k.Valid() {
			t.Errorf("RecordKind(%q) should not be valid", k)
		}
	}
}

func TestBackend_Valid(t *testing.T) {
	valid := []Backend{BackendRemoteHeavy, BackendLocalLight, BackendCache, BackendNone}
	for _, b := range valid {
		if !b.Valid() {
			t.Errorf("Backend(%q) should be valid", b)
		}
	}

	invalid := []Backend{"", "remote", "GPU"}
	for _, b := range invalid {
		if b.Valid() {
			t.Errorf("Backend(%q) should not be valid", b)
		}
	}
}

func TestMemoryRecord_Footprint(t *testing.T) {
	rec := MemoryRecord{
		Payload:  "0123456789",
		Response: "01234",
	}

	got := rec.Footprint()
	want := int64(10 + 5 + 256)
	if got != want {
		t.Errorf("Footprint() = %d, want %d", got, want)
	}

	empty := MemoryRecord{}
	if empty.Footprint() != 256 {
		t.Errorf("empty Footprint() = %d, want 256", empty.Footprint())
	}
}
