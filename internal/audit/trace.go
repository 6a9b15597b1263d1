package audit

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Light extraction from strace text logs: host:port captures anywhere,
// quoted absolute paths on open/openat lines.
var (
	traceHostRegex = regexp.MustCompile(`([a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,})(?::(\d{2,5}))?`)
	tracePathRegex = regexp.MustCompile(`"(/[^"\s]+)"`)
)

// AuditTrace scans an strace text log and reports observed hosts plus
// opened paths, split read vs write by the open flags on the line.
func AuditTrace(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	hosts := stringSet{}
	reads := stringSet{}
	writes := stringSet{}

	for _, line := range strings.Split(string(data), "\n") {
		for _, m := range traceHostRegex.FindAllStringSubmatch(line, -1) {
			host := m[1]
			if m[2] != "" {
				host = m[1] + ":" + m[2]
			}
			hosts.Add(host)
		}

		if !strings.Contains(line, "open") {
			continue
		}
		isWrite := strings.Contains(line, "O_WRONLY") ||
			strings.Contains(line, "O_RDWR") ||
			strings.Contains(line, "O_CREAT")
		for _, m := range tracePathRegex.FindAllStringSubmatch(line, -1) {
			if isWrite {
				writes.Add(m[1])
			} else {
				reads.Add(m[1])
			}
		}
	}

	return &Report{
		File:          path,
		Source:        "trace",
		Hosts:         hosts.Sorted(),
		ReadPaths:     reads.Sorted(),
		WritePaths:    writes.Sorted(),
		NetworkIntent: len(hosts) > 0,
	}, nil
}
