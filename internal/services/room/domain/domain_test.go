package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewRoomCodeShape(t *testing.T) {
	code, err := NewRoomCode()
	if err != nil {
		t.Fatalf("new room code: %v", err)
	}
	groups := strings.Split(code, "-")
	if len(groups) != 4 {
		t.Fatalf("groups = %d, want 4 (code %q)", len(groups), code)
	}
	for _, group := range groups {
		if len(group) != 4 {
			t.Fatalf("group %q should have 4 characters", group)
		}
		for _, r := range group {
			if !strings.ContainsRune(roomCodeAlphabet, r) {
				t.Fatalf("unexpected character %q in code %q", r, code)
			}
		}
	}
	if !ValidRoomCode(code) {
		t.Fatalf("generated code %q should validate", code)
	}
}

func TestValidRoomCode(t *testing.T) {
	if !ValidRoomCode("abcd-1234") {
		t.Fatal("expected dash code to validate")
	}
	if ValidRoomCode("") {
		t.Fatal("expected empty code to be rejected")
	}
	if ValidRoomCode("has space") {
		t.Fatal("expected code with space to be rejected")
	}
	if ValidRoomCode(strings.Repeat("a", 101)) {
		t.Fatal("expected oversized code to be rejected")
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	challenge, err := NewChallenge()
	if err != nil {
		t.Fatalf("new challenge: %v", err)
	}
	if challenge.Secret == "" || challenge.Hash == "" {
		t.Fatal("expected non-empty secret and hash")
	}
	if challenge.Secret == challenge.Hash {
		t.Fatal("secret must not equal its hash")
	}
	if !VerifyChallenge(challenge.Secret, challenge.Hash) {
		t.Fatal("expected secret to verify against its hash")
	}
	if VerifyChallenge("wrong", challenge.Hash) {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifyChallenge("", challenge.Hash) || VerifyChallenge(challenge.Secret, "") {
		t.Fatal("expected empty inputs to fail")
	}
}

func TestAuthorTagStableAcrossPorts(t *testing.T) {
	a := AuthorTag("203.0.113.9:5110")
	b := AuthorTag("203.0.113.9:62044")
	c := AuthorTag("203.0.113.10:5110")

	if a != b {
		t.Fatalf("same host should yield same tag: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("different hosts should yield different tags")
	}
	if len(a) != authorTagLen {
		t.Fatalf("tag length = %d, want %d", len(a), authorTagLen)
	}
	if strings.Contains(a, "203") {
		t.Fatal("tag must not leak the address")
	}
}

func TestDocumentPayload(t *testing.T) {
	created := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	doc := Document{
		Namespace:  "rp_x",
		Collection: CollectionMsgs,
		ID:         "m1",
		Seq:        7,
		Fields:     map[string]any{"type": "narrator", "content": "hi"},
		AuthorTag:  "aabbccddeeff",
		CreatedAt:  created,
	}

	payload := doc.Payload()
	if payload["_id"] != "m1" {
		t.Fatalf("_id = %v", payload["_id"])
	}
	if payload["eventId"] != uint64(7) {
		t.Fatalf("eventId = %v", payload["eventId"])
	}
	if payload["content"] != "hi" {
		t.Fatalf("content = %v", payload["content"])
	}
	if _, ok := payload["updatedAt"]; ok {
		t.Fatal("updatedAt should be absent before the first update")
	}

	doc.UpdatedAt = created.Add(time.Minute)
	payload = doc.Payload()
	if payload["updatedAt"] != "2026-03-01T10:01:00Z" {
		t.Fatalf("updatedAt = %v", payload["updatedAt"])
	}
}
