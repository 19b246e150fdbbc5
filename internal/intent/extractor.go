package intent

import (
	"regexp"
	"strings"
)

// FillerReply is spoken when stripping tags leaves nothing to say.
const FillerReply = "D'accord, un instant s'il vous plaît."

var (
	tagRe     = regexp.MustCompile(`\[\s*(CREATE|DELETE|UPDATE|CHECK)\b([^\[\]]*)\]`)
	bracketRe = regexp.MustCompile(`\[[^\[\]]*\]`)
	attrRe    = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	spacesRe  = regexp.MustCompile(`\s{2,}`)

	dateFieldRe = regexp.MustCompile(`^(\d{4}-)?\d{2}-\d{2}$`)
	timeFieldRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Extract scans a raw assistant reply for the first well-formed action tag and
// strips every bracketed tag-like sequence from the text. A tag whose fields
// fail validation is treated as absent — the engine must never dispatch an
// action built from a malformed tag — but it is still stripped so the literal
// tag syntax is never spoken. When stripping leaves only whitespace, a neutral
// filler phrase is substituted.
func Extract(rawReply string) (*Action, string) {
	var action *Action
	for _, m := range tagRe.FindAllStringSubmatch(rawReply, -1) {
		if a := parseTag(Kind(m[1]), m[2]); a != nil {
			action = a
			break
		}
	}

	cleaned := bracketRe.ReplaceAllString(rawReply, " ")
	cleaned = strings.TrimSpace(spacesRe.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		cleaned = FillerReply
	}
	return action, cleaned
}

// parseTag validates a tag body against the grammar for its kind. Returns nil
// on any violation: unknown attribute, missing field, malformed field, or an
// attribute combination the kind does not support.
func parseTag(kind Kind, body string) *Action {
	attrs := map[string]string{}
	for _, m := range attrRe.FindAllStringSubmatch(body, -1) {
		key := strings.ToLower(m[1])
		value := strings.TrimSpace(m[2])
		if _, dup := attrs[key]; dup || value == "" {
			return nil
		}
		attrs[key] = value
	}
	// Reject bodies with residue beyond whitespace and parsed attributes,
	// e.g. [CREATE date=2026-03-02] with unquoted values.
	residue := attrRe.ReplaceAllString(body, "")
	if strings.TrimSpace(residue) != "" {
		return nil
	}

	a := &Action{Kind: kind}
	switch kind {
	case KindCreate:
		if !take(attrs, "date", dateFieldRe, &a.Date) ||
			!take(attrs, "time", timeFieldRe, &a.Time) {
			return nil
		}
		takeOptional(attrs, "name", &a.Name)
		takeOptional(attrs, "reason", &a.Reason)
	case KindDelete:
		if takeOptional(attrs, "name", &a.Name) {
			break
		}
		if !take(attrs, "date", dateFieldRe, &a.Date) ||
			!take(attrs, "time", timeFieldRe, &a.Time) {
			return nil
		}
	case KindUpdate:
		if !take(attrs, "new_date", dateFieldRe, &a.NewDate) ||
			!take(attrs, "new_time", timeFieldRe, &a.NewTime) {
			return nil
		}
		if takeOptional(attrs, "name", &a.Name) {
			break
		}
		if !take(attrs, "date", dateFieldRe, &a.Date) ||
			!take(attrs, "time", timeFieldRe, &a.Time) {
			return nil
		}
	case KindCheck:
		if !take(attrs, "date", dateFieldRe, &a.Date) ||
			!take(attrs, "time", timeFieldRe, &a.Time) {
			return nil
		}
	default:
		return nil
	}

	// Any attribute left over is not part of this kind's shape.
	if len(attrs) != 0 {
		return nil
	}
	return a
}

// take consumes a required attribute, validating it against re.
func take(attrs map[string]string, key string, re *regexp.Regexp, dst *string) bool {
	v, ok := attrs[key]
	if !ok || !re.MatchString(v) {
		return false
	}
	delete(attrs, key)
	*dst = v
	return true
}

// takeOptional consumes an attribute when present and non-empty.
func takeOptional(attrs map[string]string, key string, dst *string) bool {
	v, ok := attrs[key]
	if !ok {
		return false
	}
	delete(attrs, key)
	if v == "" {
		return false
	}
	*dst = v
	return true
}
