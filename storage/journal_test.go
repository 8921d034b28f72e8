package storage

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	goccy "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

type journalLine struct {
	Time  string           `json:"time"`
	RunID string           `json:"run_id,omitempty"`
	Event string           `json:"event"`
	Data  goccy.RawMessage `json:"data"`
}

func readJournal(t *testing.T, path string) []journalLine {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	res := []journalLine{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := journalLine{}
		if err := goccy.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("parsing %q: %v", scanner.Text(), err)
		}
		res = append(res, line)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return res
}

func TestJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := NewJournal(path, JournalOptions{MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx := WithRunID(context.Background(), "run-1")
	j.Log(ctx, EventRunStarted, JournalRunStarted{Tests: 2, Batches: 1})
	j.Log(ctx, EventTestFailed, JournalTest{Name: "sand.falls", Structure: "sandbox", Batch: "defaultBatch", Required: true, Attempt: 1, Ticks: 100, Error: "timed out"})
	j.Log(context.Background(), EventRunFinished, JournalRunFinished{Passed: 1, FailedRequired: 1, Summary: "1 required test failed :("})
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	lines := readJournal(t, path)
	events := []string{}
	for _, l := range lines {
		events = append(events, l.Event+"/"+l.RunID)
	}
	if diff := cmp.Diff([]string{"run_started/run-1", "test_failed/run-1", "run_finished/"}, events); diff != "" {
		t.Errorf("unexpected events: %s", diff)
	}
	got := JournalTest{}
	if err := goccy.Unmarshal(lines[1].Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "sand.falls" || got.Error != "timed out" || !got.Required {
		t.Errorf("got %+v", got)
	}
}

func TestJournalNeedsPath(t *testing.T) {
	if _, err := NewJournal("", JournalOptions{}); err == nil {
		t.Errorf("wanted error")
	}
}

func TestRunID(t *testing.T) {
	if _, found := RunID(context.Background()); found {
		t.Errorf("found run id in empty context")
	}
	if id, found := RunID(WithRunID(context.Background(), "x")); !found || id != "x" {
		t.Errorf("got %q, %v", id, found)
	}
}
