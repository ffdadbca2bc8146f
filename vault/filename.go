package vault

import "strings"

// illegalFilenameChars are stripped from generated names.
const illegalFilenameChars = `:/\*?"<>|`

// UntitledName is used when sanitization leaves nothing behind.
const UntitledName = "Untitled"

// SanitizeFilename strips characters illegal in file names, collapses
// whitespace runs to one space, trims, and truncates the stem (never
// the suffix) so the result fits maxLength. Empty stems become
// "Untitled". maxLength counts characters; zero disables truncation.
func SanitizeFilename(name string, maxLength int, suffix string) string {
	stem := name
	if suffix != "" {
		stem = strings.TrimSuffix(stem, suffix)
	}

	var b strings.Builder
	for _, r := range stem {
		if strings.ContainsRune(illegalFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	stem = strings.Join(strings.Fields(b.String()), " ")

	if stem == "" {
		stem = UntitledName
	}

	if maxLength > 0 {
		if budget := maxLength - len([]rune(suffix)); budget > 0 {
			runes := []rune(stem)
			if len(runes) > budget {
				stem = strings.TrimRight(string(runes[:budget]), " ")
			}
		}
	}

	return stem + suffix
}

// GenerateFilename expands the config pattern against the resolved
// fields and the raw record, appends the extension when absent, and
// sanitizes the result.
func GenerateFilename(fields FieldMap, record Record, cfg Config) string {
	pattern := cfg.FilenamePattern
	if pattern == "" {
		pattern = DefaultFilenamePattern
	}
	name := expandPattern(pattern, fields, record)

	ext := cfg.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	return SanitizeFilename(name, cfg.MaxFilenameLength, ext)
}

// expandPattern replaces {field} tokens with values from the field map,
// then the raw record. Unresolved tokens become empty strings.
func expandPattern(pattern string, fields FieldMap, record Record) string {
	var b strings.Builder
	for {
		open := strings.Index(pattern, "{")
		if open < 0 {
			b.WriteString(pattern)
			break
		}
		b.WriteString(pattern[:open])
		rest := pattern[open:]
		end := strings.Index(rest, "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		name := strings.TrimSpace(rest[1:end])
		if v, ok := fields[name]; ok && v != "" {
			b.WriteString(v)
		} else if v := record[name]; v != "" {
			b.WriteString(v)
		}
		pattern = rest[end+1:]
	}
	return b.String()
}
