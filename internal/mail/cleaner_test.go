package mail

import (
	"strings"
	"testing"
)

func newTestCleaner() *Cleaner {
	return NewCleaner(8000, 10)
}

func TestCleaner_CleanBody(t *testing.T) {
	c := newTestCleaner()

	t.Run("strips html preserving link text", func(t *testing.T) {
		got := c.CleanBody(`<html><body><p>Quarterly report attached.</p><a href="https://example.com/report">View the report</a><script>alert(1)</script></body></html>`)
		if !strings.Contains(got, "Quarterly report attached.") {
			t.Errorf("CleanBody() = %q, want report text", got)
		}
		if !strings.Contains(got, "View the report") {
			t.Errorf("CleanBody() = %q, want link text preserved", got)
		}
		if strings.Contains(got, "alert(1)") {
			t.Errorf("CleanBody() = %q, script content leaked", got)
		}
	})

	t.Run("removes signature block", func(t *testing.T) {
		got := c.CleanBody("Meeting moved to 3pm.\n\n-- \nJane Doe\nVP of Everything\njane@example.com")
		if got != "Meeting moved to 3pm." {
			t.Errorf("CleanBody() = %q", got)
		}
	})

	t.Run("removes quoted reply chain", func(t *testing.T) {
		got := c.CleanBody("Sounds good to me.\n\nOn Mon, Jan 5, 2026 at 9:00 AM Bob <bob@example.com> wrote:\n> Can we push the deadline?\n> It is tight.")
		if got != "Sounds good to me." {
			t.Errorf("CleanBody() = %q", got)
		}
	})

	t.Run("removes forwarded chain", func(t *testing.T) {
		got := c.CleanBody("FYI see below.\n\n---------- Forwarded message ----------\nFrom: x@example.com\nblah")
		if got != "FYI see below." {
			t.Errorf("CleanBody() = %q", got)
		}
	})

	t.Run("removes interleaved quoted lines", func(t *testing.T) {
		got := c.CleanBody("Agreed.\n> old point one\nBut we need tests.\n> old point two")
		if strings.Contains(got, "old point") {
			t.Errorf("CleanBody() = %q, quoted lines leaked", got)
		}
		if !strings.Contains(got, "But we need tests.") {
			t.Errorf("CleanBody() = %q, inline reply lost", got)
		}
	})

	t.Run("collapses blank runs", func(t *testing.T) {
		got := c.CleanBody("a\n\n\n\n\nb")
		if got != "a\n\nb" {
			t.Errorf("CleanBody() = %q", got)
		}
	})

	t.Run("idempotent on cleaned text", func(t *testing.T) {
		inputs := []string{
			"Meeting moved to 3pm.\n\n-- \nJane",
			"<p>Hello</p><p>World</p>",
			"Sounds good.\n> quoted\nDone.",
			"Plain text with no markup at all.",
		}
		for _, in := range inputs {
			once := c.CleanBody(in)
			twice := c.CleanBody(once)
			if once != twice {
				t.Errorf("CleanBody not idempotent:\nonce:  %q\ntwice: %q", once, twice)
			}
		}
	})
}

func TestCleaner_Clean(t *testing.T) {
	c := newTestCleaner()

	t.Run("nil email", func(t *testing.T) {
		if got := c.Clean(nil); got != "" {
			t.Errorf("Clean(nil) = %q", got)
		}
	})

	t.Run("empty email", func(t *testing.T) {
		if got := c.Clean(&Email{}); got != "" {
			t.Errorf("Clean(empty) = %q", got)
		}
	})

	t.Run("subject and body combined", func(t *testing.T) {
		got := c.Clean(&Email{Subject: "Lunch?", Body: "Noon at the usual place."})
		want := "Lunch?\n\nNoon at the usual place."
		if got != want {
			t.Errorf("Clean() = %q, want %q", got, want)
		}
	})

	t.Run("truncates body tail preserving subject", func(t *testing.T) {
		small := NewCleaner(30, 5)
		got := small.Clean(&Email{
			Subject: "Important subject",
			Body:    strings.Repeat("body text ", 50),
		})
		if len([]rune(got)) > 30 {
			t.Errorf("Clean() length = %d, want <= 30", len([]rune(got)))
		}
		if !strings.HasPrefix(got, "Important subject") {
			t.Errorf("Clean() = %q, subject not preserved", got)
		}
	})
}

func TestCleaner_Sufficient(t *testing.T) {
	c := newTestCleaner()

	if c.Sufficient("short") {
		t.Error("Sufficient(short) = true, want false")
	}
	if !c.Sufficient("this is long enough to process") {
		t.Error("Sufficient(long) = false, want true")
	}
	if c.Sufficient("") {
		t.Error("Sufficient(empty) = true")
	}
}
