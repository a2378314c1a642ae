package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/models"
)

func testSummary() *models.RunSummary {
	return &models.RunSummary{
		RunID:     "run-1",
		Date:      "2024-05-01",
		Elapsed:   90*time.Second + 400*time.Millisecond,
		Succeeded: 1,
		Failed:    3,
		Counts:    map[int64]int{1: 12, 2: 0, 3: 0, 4: 0},
		Outcomes: map[int64]*models.Outcome{
			1: {UserID: 1, State: models.StatePersisted, Count: 12},
			2: {UserID: 2, State: models.StateFailed, Kind: errs.KindProtectedOrUnavailable},
			3: {UserID: 3, State: models.StateFailed, Kind: errs.KindTransient},
			4: {UserID: 4, State: models.StateFailed, Kind: errs.KindUnclassified},
		},
	}
}

func TestRenderRunSummary(t *testing.T) {
	got := RenderRunSummary(testSummary(), 10)

	for _, want := range []string{"run-1", "2024-05-01", "1m30s", "12", "protected_or_unavailable", "transient_connection"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "2  protected") > strings.Index(got, "3  transient") {
		t.Error("failures should be listed by user id")
	}
}

func TestRenderRunSummaryTruncatesFailures(t *testing.T) {
	got := RenderRunSummary(testSummary(), 2)

	if !strings.Contains(got, "... and 1 more") {
		t.Errorf("expected truncation line:\n%s", got)
	}
	if strings.Contains(got, "unclassified") {
		t.Error("third failure should be cut")
	}
}

func TestPrintHelpersUseOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	PrintInfo("Users", "3")
	PrintError("failed", "boom")
	PrintSuccess("done")

	got := buf.String()
	for _, want := range []string{"Users", "3", "failed: boom", "done"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
}
