package wine

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const userHive = "HKEY_CURRENT_USER\\"

var (
	sectionRegex = regexp.MustCompile(`^\[(.+?)\](?:\s+\d+)?$`)
	valueRegex   = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"=(.*)$`)
)

// Registry is a read-only view of the user hive stored in a prefix.
// Keys are lower-cased and relative to HKEY_CURRENT_USER.
type Registry map[string]map[string]string

// ReadUserRegistry parses <prefix>/user.reg. A prefix that has never been
// initialised yields an empty registry.
func ReadUserRegistry(prefix string) (Registry, error) {
	data, err := os.ReadFile(filepath.Join(prefix, "user.reg"))
	if os.IsNotExist(err) {
		return Registry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseRegistry(string(data)), nil
}

func ParseRegistry(content string) Registry {
	reg := Registry{}
	var current map[string]string

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if m := sectionRegex.FindStringSubmatch(line); m != nil {
			key := normalizeKey(unescape(m[1]))
			if reg[key] == nil {
				reg[key] = map[string]string{}
			}
			current = reg[key]
			continue
		}

		if current == nil {
			continue
		}
		if m := valueRegex.FindStringSubmatch(line); m != nil {
			current[strings.ToLower(unescape(m[1]))] = parseData(m[2])
		}
	}
	return reg
}

// Lookup reports the data stored under key/name. key may carry the
// HKEY_CURRENT_USER prefix.
func (r Registry) Lookup(key, name string) (string, bool) {
	values, ok := r[normalizeKey(key)]
	if !ok {
		return "", false
	}
	v, ok := values[strings.ToLower(name)]
	return v, ok
}

func normalizeKey(key string) string {
	if len(key) >= len(userHive) && strings.EqualFold(key[:len(userHive)], userHive) {
		key = key[len(userHive):]
	}
	return strings.ToLower(strings.Trim(key, "\\"))
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\\`, `\`)
}

func parseData(raw string) string {
	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2 {
		return unescape(raw[1 : len(raw)-1])
	}
	return raw
}
