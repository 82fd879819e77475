package loader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Labfront CSV layout: line 1 declares the metadata block length as
// "Header Length,N", lines 2..N carry metadata (including a per-file
// summary row with first/last sample timestamps), and the data table
// starts at line N+1 with its own column header. Questionnaire files
// additionally declare "Key Length,K" and interleave the answer key
// between metadata and data.

// FileTimeStats holds the sample span recorded in a file's metadata
// block, in Unix milliseconds.
type FileTimeStats struct {
	FirstMs int64
	LastMs  int64
}

// Contains reports whether ms falls inside the recorded span.
func (s FileTimeStats) Contains(ms int64) bool {
	return ms >= s.FirstMs && ms <= s.LastMs
}

func openLines(path string) (*os.File, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, bufio.NewReaderSize(f, 64<<10), nil
}

func skipLines(r *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.ReadString('\n'); err != nil {
			return err
		}
	}
	return nil
}

// headerLength parses the "Header Length,N" declaration on line 1.
func headerLength(path string) (int, error) {
	f, r, err := openLines(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, err
	}
	fields := strings.SplitN(strings.TrimRight(line, "\r\n"), ",", 2)
	if len(fields) != 2 || fields[0] != "Header Length" {
		return 0, fmt.Errorf("%w: %s: missing header length", ErrMalformedHeader, path)
	}
	n, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s: bad header length %q", ErrMalformedHeader, path, fields[1])
	}
	return n, nil
}

// keyLength scans the metadata block for a "Key Length,K" declaration.
// Files without an answer key report ok=false.
func keyLength(path string, headerLen int) (int, bool, error) {
	f, r, err := openLines(path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	for i := 0; i < headerLen; i++ {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return 0, false, err
		}
		fields := strings.SplitN(strings.TrimRight(line, "\r\n"), ",", 2)
		if len(fields) == 2 && fields[0] == "Key Length" {
			k, err := strconv.Atoi(strings.TrimSpace(fields[1]))
			if err != nil || k < 1 {
				return 0, false, fmt.Errorf("%w: %s: bad key length %q", ErrMalformedHeader, path, fields[1])
			}
			return k, true, nil
		}
		if err == io.EOF {
			break
		}
	}
	return 0, false, nil
}

// fileTimeStats reads the per-file summary row from the metadata block:
// column names on line 4, values on line 5.
func fileTimeStats(path string) (FileTimeStats, error) {
	f, r, err := openLines(path)
	if err != nil {
		return FileTimeStats{}, err
	}
	defer f.Close()

	if err := skipLines(r, 3); err != nil {
		return FileTimeStats{}, fmt.Errorf("%w: %s: truncated metadata", ErrMalformedHeader, path)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return FileTimeStats{}, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
	}
	values, err := cr.Read()
	if err != nil {
		return FileTimeStats{}, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
	}

	firstIdx, lastIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case colFirstSampleMs:
			firstIdx = i
		case colLastSampleMs:
			lastIdx = i
		}
	}
	if firstIdx < 0 || lastIdx < 0 || firstIdx >= len(values) || lastIdx >= len(values) {
		return FileTimeStats{}, fmt.Errorf("%w: %s: missing sample timestamps", ErrMalformedHeader, path)
	}
	first, err := strconv.ParseInt(strings.TrimSpace(values[firstIdx]), 10, 64)
	if err != nil {
		return FileTimeStats{}, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
	}
	last, err := strconv.ParseInt(strings.TrimSpace(values[lastIdx]), 10, 64)
	if err != nil {
		return FileTimeStats{}, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
	}
	return FileTimeStats{FirstMs: first, LastMs: last}, nil
}

// readRecords skips the metadata block and parses the data table,
// returning the column header and the data rows.
func readRecords(path string, skip int) ([]string, [][]string, error) {
	f, r, err := openLines(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	if err := skipLines(r, skip); err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// readKeyRecords parses the answer key block of a questionnaire file:
// key column names at line headerLen+3, then keyLen-2 key rows.
func readKeyRecords(path string, headerLen, keyLen int) ([]string, [][]string, error) {
	f, r, err := openLines(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	if err := skipLines(r, headerLen+2); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: truncated key block", ErrMalformedHeader, path)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	rows := make([][]string, 0, keyLen-2)
	for i := 0; i < keyLen-2; i++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, path, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}
