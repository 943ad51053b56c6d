package session

import (
	"testing"
	"time"

	"github.com/quizarena/backend/internal/store"
)

func sampleRecord() *Record {
	return &Record{
		UserID:    "user-1234",
		Type:      TypeChat,
		Status:    StatusActive,
		StartTime: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Metadata:  store.Metadata{"subject": "physics", "class_id": "c-9"},
	}
}

func TestPrivacyApply_MasksUserID(t *testing.T) {
	f := &PrivacyFilter{MaskUserIDs: true}
	masked := f.Apply(sampleRecord())
	if masked.UserID == "user-1234" {
		t.Error("UserID not masked")
	}
	if len(masked.UserID) != 12 {
		t.Errorf("masked UserID = %q, want 12 hex chars", masked.UserID)
	}
	// Deterministic: same input, same mask.
	if again := f.Apply(sampleRecord()); again.UserID != masked.UserID {
		t.Error("mask is not deterministic")
	}
}

func TestPrivacyApply_StripsHiddenKeys(t *testing.T) {
	f := &PrivacyFilter{HiddenKeys: []string{"class_id"}}
	masked := f.Apply(sampleRecord())
	if _, ok := masked.Metadata["class_id"]; ok {
		t.Error("hidden key survived masking")
	}
	if masked.Metadata["subject"] != "physics" {
		t.Error("unrelated key was stripped")
	}
}

func TestPrivacyApply_DoesNotMutateOriginal(t *testing.T) {
	f := &PrivacyFilter{MaskUserIDs: true, HiddenKeys: []string{"subject"}}
	orig := sampleRecord()
	f.Apply(orig)
	if orig.UserID != "user-1234" {
		t.Error("original UserID mutated")
	}
	if _, ok := orig.Metadata["subject"]; !ok {
		t.Error("original metadata mutated")
	}
}

func TestPrivacyIsNoop(t *testing.T) {
	var f PrivacyFilter
	if !f.IsNoop() {
		t.Error("zero filter IsNoop() = false, want true")
	}
	f.MaskUserIDs = true
	if f.IsNoop() {
		t.Error("masking filter IsNoop() = true, want false")
	}
}
