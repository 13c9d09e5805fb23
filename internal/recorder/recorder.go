// Package recorder archives poll cycles to compressed JSONL files for
// offline replay, with a sqlite index over the recorded cycles.
package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"gridtown/internal/api"
	"gridtown/internal/state"
)

// CycleEntry is one recorded poll cycle: the local collections as they stood
// before the merge, the pull that was merged, and the resulting watermark.
type CycleEntry struct {
	At        string           `json:"at"`
	Watermark string           `json:"watermark"`
	Local     state.Snapshot   `json:"local"`
	Server    api.PullResponse `json:"server"`
}

// CycleRecorder appends one zstd-compressed JSON line per poll cycle,
// rotating to a fresh file each hour, optionally summarizing each entry
// into a sqlite index.
type CycleRecorder struct {
	dir   string
	index *Index

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	buf     *bufio.Writer
}

// NewCycleRecorder records under sessionDir/cycles. index may be nil.
func NewCycleRecorder(sessionDir string, index *Index) *CycleRecorder {
	return &CycleRecorder{
		dir:   filepath.Join(sessionDir, "cycles"),
		index: index,
	}
}

func (r *CycleRecorder) WriteCycle(e CycleEntry) error {
	r.mu.Lock()
	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != r.curHour {
		if err := r.rotateLocked(hour); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	b, err := json.Marshal(e)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if _, err := r.buf.Write(b); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.buf.WriteByte('\n'); err != nil {
		r.mu.Unlock()
		return err
	}
	err = r.buf.Flush()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if r.index != nil {
		r.index.Record(CycleRow{
			At:        e.At,
			Watermark: e.Watermark,
			Persons:   len(e.Server.Persons),
			Cars:      len(e.Server.Cars),
			Objects:   len(e.Server.Objects),
		})
	}
	return nil
}

func (r *CycleRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeStreamLocked()
}

func (r *CycleRecorder) rotateLocked(hour string) error {
	if err := r.closeStreamLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(r.dir, fmt.Sprintf("cycles-%s.jsonl.zst", hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.enc = enc
	r.buf = bufio.NewWriterSize(enc, 128*1024)
	r.curHour = hour
	return nil
}

func (r *CycleRecorder) closeStreamLocked() error {
	var encErr error
	if r.buf != nil {
		_ = r.buf.Flush()
	}
	if r.enc != nil {
		encErr = r.enc.Close()
		r.enc = nil
	}
	if r.f != nil {
		_ = r.f.Close()
		r.f = nil
	}
	r.buf = nil
	return encErr
}

// ReadCycles decodes every entry of one recorded file.
func ReadCycles(path string) ([]CycleEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var entries []CycleEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for sc.Scan() {
		var e CycleEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("%s: %w", path, err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
