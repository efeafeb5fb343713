package darknet

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// section is one [name] block of a Darknet cfg file with its key=value
// pairs. Sections keep file order; keys within a section do not repeat.
type section struct {
	name string
	line int
	keys map[string]string
}

// parseCfg reads a Darknet layer-configuration file. Lines starting with
// '#' or ';' are comments; blank lines are skipped; every key=value line
// belongs to the most recent [section] header.
func parseCfg(r io.Reader) ([]section, error) {
	var sections []section
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == ';' {
			continue
		}
		if text[0] == '[' {
			if !strings.HasSuffix(text, "]") {
				return nil, errors.Wrapf(ErrBadConfig, "line %d: unterminated section header %q", line, text)
			}
			name := strings.TrimSpace(text[1 : len(text)-1])
			if name == "" {
				return nil, errors.Wrapf(ErrBadConfig, "line %d: empty section header", line)
			}
			sections = append(sections, section{name: name, line: line, keys: map[string]string{}})
			continue
		}
		eq := strings.Index(text, "=")
		if eq < 0 {
			return nil, errors.Wrapf(ErrBadConfig, "line %d: expected key=value, got %q", line, text)
		}
		if len(sections) == 0 {
			return nil, errors.Wrapf(ErrBadConfig, "line %d: key=value before any section", line)
		}
		key := strings.TrimSpace(text[:eq])
		val := strings.TrimSpace(text[eq+1:])
		if key == "" {
			return nil, errors.Wrapf(ErrBadConfig, "line %d: empty key", line)
		}
		sections[len(sections)-1].keys[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "darknet: reading config")
	}
	if len(sections) == 0 {
		return nil, errors.Wrap(ErrBadConfig, "no sections")
	}
	return sections, nil
}

// getInt returns the integer value of key, or def when the key is absent.
func (s section) getInt(key string, def int) (int, error) {
	v, ok := s.keys[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(ErrBadConfig, "section [%s] line %d: key %s=%q is not an integer", s.name, s.line, key, v)
	}
	return n, nil
}

// getString returns the string value of key, or def when the key is absent.
func (s section) getString(key, def string) string {
	if v, ok := s.keys[key]; ok {
		return v
	}
	return def
}
