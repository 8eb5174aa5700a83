package vectorstore

import (
	"strings"
	"testing"
)

func TestBoundMetadata(t *testing.T) {
	t.Run("within budget unchanged", func(t *testing.T) {
		meta := map[string]interface{}{"owner_id": "u1", "category": "Work"}
		got := BoundMetadata(meta, 1024)
		if len(got) != 2 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("zero budget means unlimited", func(t *testing.T) {
		meta := map[string]interface{}{"summary": strings.Repeat("x", 5000)}
		if got := BoundMetadata(meta, 0); len(got) != 1 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("drops lowest priority first", func(t *testing.T) {
		meta := map[string]interface{}{
			"owner_id":     "u1",
			"email_id":     "m1",
			"category":     "Work",
			"summary":      strings.Repeat("s", 100),
			"contact_info": strings.Repeat("c", 100),
		}
		got := BoundMetadata(meta, 150)
		if _, ok := got["contact_info"]; ok {
			t.Error("contact_info should be dropped before summary")
		}
		if got["owner_id"] != "u1" || got["email_id"] != "m1" {
			t.Errorf("protected fields dropped: %v", got)
		}
		if got["category"] != "Work" {
			t.Errorf("high-priority field dropped: %v", got)
		}
	})

	t.Run("unranked keys drop before ranked", func(t *testing.T) {
		meta := map[string]interface{}{
			"owner_id": "u1",
			"category": "Work",
			"blob":     strings.Repeat("b", 200),
		}
		got := BoundMetadata(meta, 50)
		if _, ok := got["blob"]; ok {
			t.Error("unranked field survived trimming")
		}
		if _, ok := got["category"]; !ok {
			t.Error("ranked field dropped while unranked present")
		}
	})

	t.Run("protected fields survive impossible budget", func(t *testing.T) {
		meta := map[string]interface{}{"owner_id": strings.Repeat("u", 100)}
		got := BoundMetadata(meta, 10)
		if _, ok := got["owner_id"]; !ok {
			t.Error("owner_id must never be dropped")
		}
	})

	t.Run("input not mutated", func(t *testing.T) {
		meta := map[string]interface{}{
			"owner_id": "u1",
			"junk":     strings.Repeat("j", 500),
		}
		BoundMetadata(meta, 20)
		if _, ok := meta["junk"]; !ok {
			t.Error("input map was mutated")
		}
	})
}
