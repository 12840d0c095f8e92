package config

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// endCommentKey stores comment lines found after the last key.
const endCommentKey = " end "

// sectionCommentKey returns the comment key used for a section header.
func sectionCommentKey(section string) string {
	return "[" + section + "]"
}

// parsedFile holds the raw contents of an INI file.
type parsedFile struct {
	values   map[string]string
	comments map[string]string
}

// parseINI reads key/value pairs and the comments preceding them. Keys outside the
// main section are returned as "section/key".
func parseINI(r io.Reader, mainSection string) (parsedFile, error) {
	out := parsedFile{values: map[string]string{}, comments: map[string]string{}}
	section := mainSection
	var comment strings.Builder

	takeComment := func(key string) {
		if strings.TrimSpace(comment.String()) != "" {
			out.comments[key] = comment.String()
		}
		comment.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line[0] == '#' || line[0] == ';':
			comment.WriteString(line)
			comment.WriteByte('\n')
		case line[0] == '[' && line[len(line)-1] == ']':
			section = strings.TrimSpace(line[1 : len(line)-1])
			takeComment(sectionCommentKey(section))
		default:
			key, value, _ := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			if section != mainSection {
				key = section + "/" + key
			}
			out.values[key] = unquoteValue(strings.TrimSpace(value))
			takeComment(key)
		}
	}
	if errScan := scanner.Err(); errScan != nil {
		return parsedFile{}, fmt.Errorf("config: read: %w", errScan)
	}
	takeComment(endCommentKey)
	return out, nil
}

// writeINI serializes values grouped by section. The main section comes first,
// the others follow in name order; keys are sorted within a section.
func writeINI(w io.Writer, mainSection string, values, comments map[string]string) error {
	sections := map[string][]string{mainSection: nil}
	for key := range values {
		section, name := mainSection, key
		if idx := strings.Index(key, "/"); idx >= 0 {
			section, name = key[:idx], key[idx+1:]
		}
		sections[section] = append(sections[section], name)
	}
	others := make([]string, 0, len(sections))
	for section := range sections {
		if section != mainSection {
			others = append(others, section)
		}
	}
	sort.Strings(others)
	order := append([]string{mainSection}, others...)

	bw := bufio.NewWriter(w)
	for idx, section := range order {
		if c, ok := comments[sectionCommentKey(section)]; ok {
			bw.WriteString(c)
		} else if idx > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "[%s]\n", section)
		names := sections[section]
		sort.Strings(names)
		for _, name := range names {
			key := name
			if section != mainSection {
				key = section + "/" + name
			}
			if c, ok := comments[key]; ok {
				bw.WriteString(c)
			}
			fmt.Fprintf(bw, "%s = %s\n", name, quoteValue(values[key]))
		}
	}
	if c, ok := comments[endCommentKey]; ok {
		bw.WriteString(c)
	}
	return bw.Flush()
}

// quoteValue quotes values that would not survive a plain "key = value" line.
func quoteValue(value string) string {
	if value == "" {
		return ""
	}
	first, last := value[0], value[len(value)-1]
	plain := strings.TrimSpace(value) == value &&
		first != '"' && first != '\'' &&
		last != '"' && last != '\'' &&
		!strings.ContainsAny(value, "\r\n")
	if plain {
		return value
	}
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`, `"`, `\"`)
	return `"` + r.Replace(value) + `"`
}

// unquoteValue reverses quoteValue for both double and single quoted values.
func unquoteValue(value string) string {
	if len(value) < 2 {
		return value
	}
	first := value[0]
	if (first != '"' && first != '\'') || value[len(value)-1] != first {
		return value
	}
	inner := value[1 : len(value)-1]
	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' || i == len(inner)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch inner[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\', '"', '\'':
			b.WriteByte(inner[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(inner[i])
		}
	}
	return b.String()
}
