// Package fast5 carries the per-read bookkeeping of the pipeline: the
// read summary with its parameter tables, and the contract for the
// event source.  The HDF5 decoding proper lives outside this module;
// the bundled implementation reads the flat event-stream text form that
// the extraction tooling emits, one "strand mean stdv start length" row
// per event, with transparent gzip.
package fast5

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/raj347/nanocall/pore"
)

// Reader is the per-read event source contract.
type Reader interface {
	ReadID() string
	HaveEDEvents() bool
	StrandBounds() [4]int
	Events(st int) (pore.EventSequence, error)
	Close() error
}

// Open yields a Reader for path.  It is a variable so an external FAST5
// implementation can be installed at startup.
var Open = func(path string) (Reader, error) {
	return openEvents(path)
}

var validExts = []string{".events", ".events.gz", ".events.tsv", ".events.tsv.gz", ".fast5"}

// IsValidFile reports whether path looks like a readable event stream.
func IsValidFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range validExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// OpenDecompressed opens path, transparently unwrapping gzip.
func OpenDecompressed(path string) (io.ReadCloser, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return fid, nil
	}
	gz, err := gzip.NewReader(fid)
	if err != nil {
		fid.Close()
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{gz, fid}, nil
}

type eventsFile struct {
	readID string
	events [2]pore.EventSequence
	bounds [4]int
}

func openEvents(path string) (Reader, error) {
	rc, err := OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	ef := &eventsFile{readID: readIDFromPath(path)}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 1<<16), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 5 {
			return nil, fmt.Errorf("fast5: bad event row %q in %s", line, path)
		}
		st, err := strconv.Atoi(f[0])
		if err != nil || st < 0 || st > 1 {
			return nil, fmt.Errorf("fast5: bad strand in row %q in %s", line, path)
		}
		var ev pore.Event
		vals := [4]*float64{&ev.Mean, &ev.Stdv, &ev.Start, &ev.Length}
		for i, p := range vals {
			if *p, err = strconv.ParseFloat(f[i+1], 64); err != nil {
				return nil, fmt.Errorf("fast5: bad event row %q in %s: %v", line, path, err)
			}
		}
		ef.events[st] = append(ef.events[st], ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	ef.bounds = [4]int{0, len(ef.events[0]), len(ef.events[0]), len(ef.events[0]) + len(ef.events[1])}
	return ef, nil
}

func readIDFromPath(path string) string {
	name := filepath.Base(path)
	for _, ext := range validExts {
		if n, ok := strings.CutSuffix(name, ext); ok {
			return n
		}
	}
	return name
}

func (ef *eventsFile) ReadID() string      { return ef.readID }
func (ef *eventsFile) HaveEDEvents() bool  { return len(ef.events[0])+len(ef.events[1]) > 0 }
func (ef *eventsFile) StrandBounds() [4]int { return ef.bounds }
func (ef *eventsFile) Close() error        { return nil }

func (ef *eventsFile) Events(st int) (pore.EventSequence, error) {
	if st < 0 || st > 1 {
		return nil, fmt.Errorf("fast5: bad strand %d", st)
	}
	return ef.events[st], nil
}
