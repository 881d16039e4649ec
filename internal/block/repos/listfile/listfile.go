// Package listfile reads block lists shared as text files into block-list
// entries. Two layouts are understood: one site per line ("plain") and
// /etc/hosts style ("hosts").
package listfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/haukened/rr-block/internal/block/common/log"
)

// Format identifies a list file layout.
type Format string

const (
	FormatPlain Format = "plain"
	FormatHosts Format = "hosts"
)

// ParseFormat accepts "plain" or "hosts" (case-insensitive). Empty means plain.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPlain:
		return FormatPlain, nil
	case FormatHosts:
		return FormatHosts, nil
	default:
		return "", fmt.Errorf("unsupported list format: %q", s)
	}
}

// Parse reads r in the given format.
func Parse(f Format, r io.Reader, logger log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	switch f {
	case FormatHosts:
		return ParseHosts(r, logger)
	case FormatPlain, "":
		return ParsePlain(r, logger)
	default:
		return nil, fmt.Errorf("unsupported list format: %q", f)
	}
}

// ParsePlain parses a newline-delimited list of sites.
//
//   - '#' starts a comment, whole-line or inline
//   - a leading "*." or "." is dropped; entries already match as substrings
//   - entries are lowercased and lose a trailing dot
//   - tokens that cannot be a URL filter are skipped
//   - duplicates are dropped, first-seen order is kept
func ParsePlain(r io.Reader, logger log.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	var out []string

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		s := strings.TrimSpace(stripInlineComment(line))
		s = strings.TrimPrefix(s, "*.")
		s = strings.TrimPrefix(s, ".")
		site := normalizeSite(s)
		if !isValidSite(site) {
			logger.Debug(map[string]any{"line": lineNum, "raw": s}, "list_skip_invalid")
			continue
		}
		if _, ok := seen[site]; ok {
			continue
		}
		seen[site] = struct{}{}
		out = append(out, site)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	logger.Debug(map[string]any{"format": FormatPlain, "count": len(out)}, "list_parsed")
	return out, nil
}

// ParseHosts parses /etc/hosts-style lines. The address field is ignored
// and every hostname after it becomes an entry. Wildcards, names starting
// with '.', and single-label names such as localhost are skipped.
func ParseHosts(r io.Reader, logger log.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	var out []string

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		fields := strings.Fields(stripInlineComment(line))
		if len(fields) < 2 {
			logger.Debug(map[string]any{"line": lineNum}, "hosts_no_hostnames")
			continue
		}
		for _, raw := range fields[1:] {
			if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
				logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "hosts_skip_invalid_token")
				continue
			}
			site := normalizeSite(raw)
			if !isValidHostname(site) {
				logger.Debug(map[string]any{"line": lineNum, "name": site}, "hosts_skip_invalid_name")
				continue
			}
			if _, ok := seen[site]; ok {
				continue
			}
			seen[site] = struct{}{}
			out = append(out, site)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hosts list: %w", err)
	}
	logger.Debug(map[string]any{"format": FormatHosts, "count": len(out)}, "list_parsed")
	return out, nil
}
