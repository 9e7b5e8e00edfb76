package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
)

// capture redirects output to a buffer for the duration of the test.
func capture(t *testing.T, verboseOn bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseOn)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)

	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}
	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose after SetVerbose(true)")
	}
	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected quiet after SetVerbose(false)")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		log     func()
		want    string
	}{
		{
			name:    "debug when verbose",
			verbose: true,
			log:     func() { Debug("hashing %s", "inbox/a.txt") },
			want:    "[DEBUG] hashing inbox/a.txt\n",
		},
		{
			name:    "debug suppressed when quiet",
			verbose: false,
			log:     func() { Debug("hashing %s", "inbox/a.txt") },
			want:    "",
		},
		{
			name:    "info when verbose",
			verbose: true,
			log:     func() { Info("processed %d documents", 42) },
			want:    "[INFO] processed 42 documents\n",
		},
		{
			name:    "warn when verbose",
			verbose: true,
			log:     func() { Warn("summary degraded") },
			want:    "[WARN] summary degraded\n",
		},
		{
			name:    "warn suppressed when quiet",
			verbose: false,
			log:     func() { Warn("summary degraded") },
			want:    "",
		},
		{
			name:    "error printed when quiet",
			verbose: false,
			log:     func() { Error("dead-lettered %s", "bucket/doc1") },
			want:    "[ERROR] dead-lettered bucket/doc1\n",
		},
		{
			name:    "section header",
			verbose: true,
			log:     func() { Section("Batch") },
			want:    "\n=== Batch ===\n",
		},
		{
			name:    "section suppressed when quiet",
			verbose: false,
			log:     func() { Section("Batch") },
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, tt.verbose)
			tt.log()
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvent(t *testing.T) {
	buf := capture(t, false)

	Event("transition", "doc", "b/doc1")
	if buf.Len() != 0 {
		t.Errorf("expected no output when not verbose, got %q", buf.String())
	}

	SetVerbose(true)
	Event("transition", "doc", "b/doc1", "state", "HASHING", "dangling")
	want := "[DEBUG] transition doc=b/doc1 state=HASHING dangling=<missing>\n"
	if buf.String() != want {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	capture(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetVerbose(true)
			Event("worker", "id", i)
			IsVerbose()
			SetVerbose(false)
		}()
	}
	wg.Wait()
}
