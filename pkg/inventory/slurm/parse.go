package slurm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ExpandIndexSpec expands a GPU index specification of comma-separated
// values and ranges ("0,2-4" -> [0 2 3 4]) into a sorted, de-duplicated
// index list. Any malformed token invalidates the whole specification: the
// result is an empty set plus the parse error, so a bad descriptor degrades
// the single job rather than aborting the collection.
func ExpandIndexSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty token in index spec %q", spec)
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("bad range start %q in index spec %q", lo, spec)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("bad range end %q in index spec %q", hi, spec)
			}
			if start < 0 || end < start {
				return nil, fmt.Errorf("invalid range %q in index spec %q", part, spec)
			}
			for i := start; i <= end; i++ {
				seen[i] = struct{}{}
			}
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad index %q in index spec %q", part, spec)
		}
		if idx < 0 {
			return nil, fmt.Errorf("negative index %q in index spec %q", part, spec)
		}
		seen[idx] = struct{}{}
	}

	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// ParseRunTime parses a SLURM elapsed-time field in either D-HH:MM:SS or
// HH:MM:SS form.
func ParseRunTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty run time")
	}

	var days int
	if d, rest, ok := strings.Cut(s, "-"); ok {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad day count in run time %q", s)
		}
		days = n
		s = rest
	}

	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("bad run time %q: want HH:MM:SS", s)
	}
	h, err1 := strconv.Atoi(fields[0])
	m, err2 := strconv.Atoi(fields[1])
	sec, err3 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || sec < 0 {
		return 0, fmt.Errorf("bad run time %q", s)
	}

	return time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second, nil
}

// descriptorField extracts a "Key=value" field from an scontrol descriptor.
// Values are terminated by whitespace.
func descriptorField(descriptor, key string) string {
	marker := key + "="
	i := strings.Index(descriptor, marker)
	if i < 0 {
		return ""
	}
	rest := descriptor[i+len(marker):]
	if j := strings.IndexFunc(rest, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// indexSpec extracts the GPU index specification from an scontrol -dd
// descriptor, e.g. "GRES=gpu(IDX:0,2-4)" yields "0,2-4". Empty when the job
// has no GPU allocation detail.
func indexSpec(descriptor string) string {
	i := strings.Index(descriptor, "IDX:")
	if i < 0 {
		return ""
	}
	rest := descriptor[i+len("IDX:"):]
	if j := strings.IndexByte(rest, ')'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
