// Package manifest accumulates one record per shipped artifact and writes
// them as the run's aggregate info.json.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileName is the name the manifest is shipped under.
const FileName = "info.json"

// Entry describes one artifact of a run. Count is kept for consumers of the
// existing format and is always zero.
type Entry struct {
	Date    string `json:"date"`
	Device  string `json:"device"`
	Count   int    `json:"count"`
	Message string `json:"message"`
	MD5Sum  string `json:"md5sum"`
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Type    string `json:"type"`
}

// Accumulator is an append-only list of entries, safe for concurrent use.
type Accumulator struct {
	mu      sync.Mutex
	entries []Entry
}

func (a *Accumulator) Add(e Entry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Entries returns a copy in insertion order.
func (a *Accumulator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Entry(nil), a.entries...)
}

// ToJSON serializes the entries as an indented array.
func (a *Accumulator) ToJSON() ([]byte, error) {
	entries := a.Entries()
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// WriteFile writes the manifest to path. Nothing is written for an empty
// manifest and written reports false.
func (a *Accumulator) WriteFile(path string) (written bool, err error) {
	if a.Len() == 0 {
		return false, nil
	}
	data, err := a.ToJSON()
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write manifest: %w", err)
	}
	return true, nil
}

// FromJSON parses a manifest previously written by WriteFile.
func FromJSON(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return entries, nil
}
