package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/natefinch/atomic"

	"github.com/IvanBrykalov/cmap/cmap"
)

// report is the end-of-run summary, printed and optionally saved as JSON.
type report struct {
	Profile  profile       `json:"profile"`
	Workers  int           `json:"workers"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Ops      uint64        `json:"ops"`
	OpsPerS  float64       `json:"ops_per_sec"`
	Reads    uint64        `json:"reads"`
	Writes   uint64        `json:"writes"`
	Deletes  uint64        `json:"deletes"`
	Hits     uint64        `json:"hits"`
	Misses   uint64        `json:"misses"`
	Rejected uint64        `json:"rejected"`
	HitRate  float64       `json:"hit_rate_pct"`
	Map      cmap.Stats    `json:"map"`
}

func newReport(p profile, workers int, elapsed time.Duration, c *counters, m cmap.Map) report {
	r := report{
		Profile:  p,
		Workers:  workers,
		Elapsed:  elapsed,
		Ops:      c.ops.Load(),
		Reads:    c.reads.Load(),
		Writes:   c.writes.Load(),
		Deletes:  c.deletes.Load(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Rejected: c.rejected.Load(),
		Map:      m.Stats(),
	}
	if s := elapsed.Seconds(); s > 0 {
		r.OpsPerS = float64(r.Ops) / s
	}
	if r.Reads > 0 {
		r.HitRate = float64(r.Hits) / float64(r.Reads) * 100
	}
	return r
}

func (r report) print(w io.Writer) {
	fmt.Fprintf(w, "policy=%s max=%d buckets=%d workers=%d keys=%d dur=%v seed=%d\n",
		r.Profile.Policy, r.Map.MaxEntries, r.Map.Buckets, r.Workers, r.Profile.Keys, r.Elapsed, r.Profile.Seed)
	fmt.Fprintf(w, "ops=%d (%.0f ops/s)  reads=%d  writes=%d  deletes=%d  rejected=%d\n",
		r.Ops, r.OpsPerS, r.Reads, r.Writes, r.Deletes, r.Rejected)
	fmt.Fprintf(w, "hits=%d  misses=%d  hit-rate=%.2f%%  evictions=%d\n", r.Hits, r.Misses, r.HitRate, r.Map.Evictions)
	fmt.Fprintf(w, "entries=%d  entry slots=%d in %d batches\n", r.Map.Entries, r.Map.EntrySlots, r.Map.EntryBatches)
}

// write saves the report atomically so a reader never sees a partial file.
func (r report) write(path string) error {
	buf, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	buf = append(buf, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
