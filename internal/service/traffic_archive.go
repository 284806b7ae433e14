package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mocklab/mockgate/internal/model"
)

// TrafficArchive appends every entry to a daily JSONL file under dir.
// It is write-only; reads go through the repos.
type TrafficArchive struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	day string
	f   *os.File
	enc *json.Encoder
}

func NewTrafficArchive(dir string) (*TrafficArchive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &TrafficArchive{dir: dir, now: time.Now}, nil
}

func (a *TrafficArchive) Insert(_ context.Context, entry *model.TrafficLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.rotate(); err != nil {
		return err
	}
	return a.enc.Encode(entry)
}

// 按日轮转
func (a *TrafficArchive) rotate() error {
	day := a.now().UTC().Format("2006-01-02")
	if a.f != nil && day == a.day {
		return nil
	}
	name := filepath.Join(a.dir, "traffic-"+day+".jsonl")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if a.f != nil {
		_ = a.f.Close()
	}
	a.f, a.day, a.enc = f, day, json.NewEncoder(f)
	return nil
}

func (a *TrafficArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f, a.enc = nil, nil
	return err
}
