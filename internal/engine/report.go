package engine

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

// SourceReport is the per-source line of a Report.
type SourceReport struct {
	Key         domain.SourceKey
	Snippets    int
	FailedFiles int
	Duration    time.Duration
	Err         error
}

// Report summarizes one sync cycle.
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Merged    int
	Sources   []SourceReport
	// Err is the cache persist failure, if the cycle was discarded.
	Err error
}

func newReport(start time.Time, results []SourceResult, merged int) Report {
	r := Report{StartedAt: start, Merged: merged, Sources: make([]SourceReport, 0, len(results))}
	for _, res := range results {
		r.Sources = append(r.Sources, SourceReport{
			Key:         res.Source.Key(),
			Snippets:    len(res.Snippets),
			FailedFiles: res.FailedFiles,
			Duration:    res.Duration,
			Err:         res.Err,
		})
	}
	return r
}

// Failed counts sources whose fetch failed.
func (r Report) Failed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// SourceErrors combines every per-source failure into one error.
func (r Report) SourceErrors() error {
	var err error
	for _, s := range r.Sources {
		if s.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Key, s.Err))
		}
	}
	return err
}

func (r Report) succeeded() []domain.SourceKey {
	var keys []domain.SourceKey
	for _, s := range r.Sources {
		if s.Err == nil {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

func (r Report) clone() Report {
	out := r
	out.Sources = append([]SourceReport(nil), r.Sources...)
	return out
}
