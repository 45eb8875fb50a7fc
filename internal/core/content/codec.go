package content

import (
	"bytes"
	"encoding/json"
	"strings"
)

// GrammarVersion identifies the section layout written by Encode:
//
//	content = summary { "\n\n" "--- " tag " ---" "\n" body }
//
// Free-text lines that would parse as a marker are written with a leading
// backslash and restored on decode.
const GrammarVersion = 1

const (
	StructuredTag        = "STRUCTURED_DATA"
	AdminCommentLabel    = "Admin Comment"
	ExpertResponseLabel  = "Expert Response"
	OpinionRequestPrefix = "Opinion Request: "

	markerOpen       = "--- "
	markerClose      = " ---"
	sectionSeparator = "\n\n"
	escapePrefix     = `\`
	defaultLabel     = "Note"
)

type Annotation struct {
	Label string `json:"label"`
	Body  string `json:"body"`
}

// Document is the decoded form of stored recommendation content.
type Document struct {
	Summary     string         `json:"summary"`
	Structured  map[string]any `json:"structured_data,omitempty"`
	Annotations []Annotation   `json:"annotations"`
}

// Encode renders the document back into its stored form.
func (d Document) Encode() string {
	out := Encode(d.Summary, d.Structured)
	for _, a := range d.Annotations {
		out = AppendAnnotation(out, a.Label, a.Body)
	}
	return out
}

func (d Document) LastAnnotation(label string) (Annotation, bool) {
	for i := len(d.Annotations) - 1; i >= 0; i-- {
		if d.Annotations[i].Label == label {
			return d.Annotations[i], true
		}
	}
	return Annotation{}, false
}

// Encode writes summary and, when present, the structured block. A nil map
// means the generator returned plain text only.
func Encode(summary string, structured map[string]any) string {
	escaped := escapeText(summary)
	if structured == nil {
		return escaped
	}
	raw, err := marshalStructured(structured)
	if err != nil {
		return escaped
	}
	return escaped + sectionSeparator + marker(StructuredTag) + "\n" + raw
}

// AnnotationSection is the exact suffix AppendAnnotation adds. Stores use it to
// append atomically without reading the current content.
func AnnotationSection(label, body string) string {
	return sectionSeparator + marker(sanitizeLabel(label)) + "\n" + escapeText(body)
}

func AppendAnnotation(content, label, body string) string {
	return content + AnnotationSection(label, body)
}

// Decode never fails. Malformed or non-object structured data decodes to nil.
func Decode(content string) Document {
	sections := splitSections(content)
	doc := Document{Summary: unescapeText(sections[0].body)}

	structuredSeen := false
	for _, s := range sections[1:] {
		if s.tag == StructuredTag && !structuredSeen {
			structuredSeen = true
			doc.Structured = unmarshalStructured(s.body)
			continue
		}
		doc.Annotations = append(doc.Annotations, Annotation{Label: s.tag, Body: unescapeText(s.body)})
	}
	return doc
}

type Opinion struct {
	Question       string `json:"question"`
	ExpertResponse string `json:"expert_response,omitempty"`
	Responded      bool   `json:"responded"`
}

func EncodeOpinionRequest(question string) string {
	return OpinionRequestPrefix + escapeText(question)
}

func IsOpinionRequest(content string) bool {
	return strings.HasPrefix(content, OpinionRequestPrefix)
}

func DecodeOpinion(content string) Opinion {
	doc := Decode(content)
	op := Opinion{Question: strings.TrimPrefix(doc.Summary, OpinionRequestPrefix)}
	if resp, ok := doc.LastAnnotation(ExpertResponseLabel); ok {
		op.ExpertResponse = resp.Body
		op.Responded = true
	}
	return op
}

type section struct {
	tag  string
	body string
}

func splitSections(content string) []section {
	sections := []section{{}}
	bodyStart := 0
	lineStart := 0
	for lineStart <= len(content) {
		lineEnd := strings.IndexByte(content[lineStart:], '\n')
		next := len(content) + 1
		if lineEnd < 0 {
			lineEnd = len(content)
		} else {
			lineEnd += lineStart
			next = lineEnd + 1
		}

		if tag, ok := parseMarker(content[lineStart:lineEnd]); ok {
			sections[len(sections)-1].body = trimSeparator(content[bodyStart:lineStart])
			sections = append(sections, section{tag: tag})
			bodyStart = min(next, len(content))
		}
		lineStart = next
	}
	sections[len(sections)-1].body = content[bodyStart:]
	return sections
}

func trimSeparator(s string) string {
	for _, sep := range []string{"\n\n", "\r\n\r\n", "\r\n", "\n"} {
		if strings.HasSuffix(s, sep) {
			return strings.TrimSuffix(s, sep)
		}
	}
	return s
}

func marker(tag string) string {
	return markerOpen + tag + markerClose
}

func parseMarker(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, markerOpen) || !strings.HasSuffix(trimmed, markerClose) {
		return "", false
	}
	if len(trimmed) < len(markerOpen)+len(markerClose)+1 {
		return "", false
	}
	tag := strings.TrimSpace(trimmed[len(markerOpen) : len(trimmed)-len(markerClose)])
	if tag == "" {
		return "", false
	}
	return tag, true
}

// looksLikeMarker ignores any mix of leading whitespace and backslashes, so
// adding or removing one escape never changes the answer.
func looksLikeMarker(line string) bool {
	_, ok := parseMarker(strings.TrimLeft(line, " \t\\"))
	return ok
}

func escapeText(text string) string {
	if !strings.Contains(text, "---") {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if looksLikeMarker(line) {
			lines[i] = escapePrefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func unescapeText(text string) string {
	if !strings.Contains(text, escapePrefix) {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, escapePrefix) && looksLikeMarker(line[len(escapePrefix):]) {
			lines[i] = line[len(escapePrefix):]
		}
	}
	return strings.Join(lines, "\n")
}

func sanitizeLabel(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if label == "" || label == StructuredTag {
		return defaultLabel
	}
	return label
}

func marshalStructured(structured map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(structured); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func unmarshalStructured(body string) map[string]any {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "{") {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil
	}
	return out
}
