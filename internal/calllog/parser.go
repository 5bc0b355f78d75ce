package calllog

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"waterfall-mcp/internal/span"
)

// maxLineSize bounds a single call; spans can carry sizable data payloads.
const maxLineSize = 4 * 1024 * 1024

// ReadCallLog reads a call log from a JSON lines file, or from the
// calls.jsonl member of a zip archive when the path ends in ".zip".
func ReadCallLog(filePath string) (*CallLog, error) {
	var calls []span.Call
	var err error

	if strings.EqualFold(filepath.Ext(filePath), ".zip") {
		calls, err = readArchive(filePath)
	} else {
		calls, err = readFile(filePath)
	}
	if err != nil {
		return nil, err
	}

	log := &CallLog{Calls: calls}
	log.Stats.Source = filePath
	log.computeStats()
	return log, nil
}

func readFile(filePath string) ([]span.Call, error) {
	f, err := os.Open(filePath) //nolint:gosec // Path is supplied by the operator.
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseCalls(f)
}

func readArchive(filePath string) ([]span.Call, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip file: %w", err)
	}
	defer func() { _ = reader.Close() }()

	for _, file := range reader.File {
		if file.Name != ArchiveMember {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s in zip: %w", file.Name, err)
		}
		defer func() { _ = rc.Close() }()

		calls, err := ParseCalls(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", ArchiveMember, err)
		}
		return calls, nil
	}

	return nil, fmt.Errorf("zip file has no %s member", ArchiveMember)
}

// ParseCalls parses one JSON call per line. Blank lines and lines starting
// with '#' are skipped.
//
//	{"type":"start","key":"/request","time":0}
//	{"type":"event","name":"flush","time":[12,500]}
func ParseCalls(r io.Reader) ([]span.Call, error) {
	var calls []span.Call
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var c span.Call
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("line %d: malformed call: %w", lineNo, err)
		}

		switch c.Type {
		case span.CallStart, span.CallEnd:
			if c.Key == "" {
				return nil, fmt.Errorf("line %d: %s call without key", lineNo, c.Type)
			}
		case span.CallEvent:
			if c.Name == "" && c.Key == "" {
				return nil, fmt.Errorf("line %d: event call without name", lineNo)
			}
		default:
			return nil, fmt.Errorf("line %d: invalid call type %q", lineNo, c.Type)
		}

		if len(calls) > 0 && calls[0].Time.HighRes != c.Time.HighRes {
			return nil, fmt.Errorf("line %d: mixed scalar and high resolution timestamps", lineNo)
		}

		calls = append(calls, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading call log: %w", err)
	}

	return calls, nil
}

// WriteCalls writes calls in the format read by ParseCalls.
func WriteCalls(w io.Writer, calls []span.Call) error {
	enc := json.NewEncoder(w)
	for _, c := range calls {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to write call: %w", err)
		}
	}
	return nil
}
