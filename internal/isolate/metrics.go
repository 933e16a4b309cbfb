package isolate

import (
	"fmt"
	"strconv"
	"strings"
)

// Metrics mirror the isolate meta file, one entry per key.
// See isolate(1) "Meta files" for the key list.
type Metrics struct {
	TimeSec      float64
	TimeWallSec  float64
	MaxRssKb     int64
	CgMemKb      int64
	CswVoluntary int64
	CswForced    int64
	ExitCode     int64
	ExitSig      *int64
	Killed       bool
	CgOomKilled  bool
	Status       string
	Message      string
}

// Isolate status codes written to the meta file.
const (
	StatusRuntimeError = "RE" // exited with non-zero code
	StatusSignalled    = "SG" // died on a signal
	StatusTimeout      = "TO" // cpu or wall time limit
	StatusInternal     = "XX" // error of isolate itself
)

func parseMetaFile(content []byte) (*Metrics, error) {
	metrics := &Metrics{}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed meta file line: %q", line)
		}

		var err error
		switch key {
		case "time":
			metrics.TimeSec, err = strconv.ParseFloat(value, 64)
		case "time-wall":
			metrics.TimeWallSec, err = strconv.ParseFloat(value, 64)
		case "max-rss":
			metrics.MaxRssKb, err = strconv.ParseInt(value, 10, 64)
		case "cg-mem":
			metrics.CgMemKb, err = strconv.ParseInt(value, 10, 64)
		case "csw-voluntary":
			metrics.CswVoluntary, err = strconv.ParseInt(value, 10, 64)
		case "csw-forced":
			metrics.CswForced, err = strconv.ParseInt(value, 10, 64)
		case "exitcode":
			metrics.ExitCode, err = strconv.ParseInt(value, 10, 64)
		case "exitsig":
			var sig int64
			sig, err = strconv.ParseInt(value, 10, 64)
			metrics.ExitSig = &sig
		case "killed":
			metrics.Killed = value == "1"
		case "cg-oom-killed":
			metrics.CgOomKilled = value == "1"
		case "status":
			metrics.Status = value
		case "message":
			metrics.Message = value
		}
		if err != nil {
			return nil, fmt.Errorf("malformed meta file value for %s: %w", key, err)
		}
	}

	return metrics, nil
}

// PeakMemoryKb prefers the cgroup high-water mark, which stays valid even
// when the process was oom-killed.
func (m *Metrics) PeakMemoryKb() int64 {
	if m.CgMemKb > 0 {
		return m.CgMemKb
	}
	return m.MaxRssKb
}
