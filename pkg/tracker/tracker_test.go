package tracker

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestMessageIDFormat(t *testing.T) {
	tr := New(WithFileLogging(false))
	id := tr.CreateMessageID("wakeword", nil)
	re := regexp.MustCompile(`^msg_\d+_[0-9a-f]{8}$`)
	if !re.MatchString(id) {
		t.Fatalf("msg id %q does not match msg_<ms-epoch>_<8-hex>", id)
	}
}

func TestAddTraceUnknownIDDropped(t *testing.T) {
	tr := New(WithFileLogging(false))
	err := tr.AddTrace("msg_unknown", "wakeword", "detected", nil, nil, nil)
	if err != ErrUnknownMessageID {
		t.Fatalf("expected ErrUnknownMessageID, got %v", err)
	}
}

func TestTrackerFileContract(t *testing.T) {
	dir := t.TempDir()
	tr := New(WithLogDir(dir), WithFileLogging(true))

	id := tr.CreateMessageID("wakeword", nil)
	for i := 1; i <= 5; i++ {
		if err := tr.AddTrace(id, "module", "stage", nil, map[string]int{"a": i}, nil); err != nil {
			t.Fatalf("add_trace %d: %v", i, err)
		}
	}
	if err := tr.CompleteTrace(id); err != nil {
		t.Fatalf("complete_trace: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "traces_*.jsonl"))
	if len(matches) != 1 {
		t.Fatalf("expected exactly one traces_*.jsonl file, got %v", matches)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 1 {
		t.Fatalf("expected exactly one JSONL line, got %d", len(lines))
	}

	var decoded MessageTrace
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line did not parse as JSON: %v", err)
	}
	if len(decoded.Stages) != 5 {
		t.Fatalf("expected 5 stages in insertion order, got %d", len(decoded.Stages))
	}
	for i, st := range decoded.Stages {
		out, ok := st.Output.(map[string]interface{})
		if !ok || int(out["a"].(float64)) != i+1 {
			t.Fatalf("stage %d out of order: %+v", i, st)
		}
	}
	if decoded.EndTime == nil {
		t.Fatal("end_time must be set")
	}
}

func TestRecentTracesOrderedByStartDesc(t *testing.T) {
	tr := New(WithFileLogging(false))
	id1 := tr.CreateMessageID("wakeword", nil)
	id2 := tr.CreateMessageID("wakeword", nil)
	recent := tr.GetRecentTraces(10)
	if len(recent) != 2 || recent[0].MsgID != id2 || recent[1].MsgID != id1 {
		t.Fatalf("expected most recent first, got %v, %v", recent[0].MsgID, recent[1].MsgID)
	}
}
