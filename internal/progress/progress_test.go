package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCounts(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Analyzing", 10)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Tick("file.py")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), tr.Current())
	tr.FinishSuccess()
}

func TestFinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Analyzing", 1)
	tr.FinishError(errors.New("boom"))
	assert.Contains(t, buf.String(), "Analyzing error: boom")
}

func TestNilTracker(t *testing.T) {
	var tr *Tracker
	tr.Tick("a.py")
	tr.FinishSuccess()
	tr.FinishError(errors.New("ignored"))
	assert.Equal(t, int64(0), tr.Current())
}
