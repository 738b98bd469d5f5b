package chat

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"chatalign/internal/timeline"
)

const (
	headerUTF8         = "UTF8"
	headerBegin        = "Begin"
	headerEnd          = "End"
	headerLanguages    = "Languages"
	headerParticipants = "Participants"
	headerID           = "ID"

	maxLineBytes = 4 << 20
)

var bulletPattern = regexp.MustCompile("\x15(\\d+)_(\\d+)\x15")

// ParseError reports a line that could not be understood.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("chat: line %d: %s", e.Line, e.Msg)
}

// ErrorKind classifies the error for run status mapping.
func (e *ParseError) ErrorKind() string { return "validation" }

// ParseFile reads and parses the transcript at path.
func ParseFile(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// logicalLine is a physical line plus any tab-indented continuation lines.
type logicalLine struct {
	number int
	text   string
}

// Parse reads a CHAT transcript. Utterances without a time mark get NaN
// bounds; the aligner rejects them unless the caller filters them out.
func Parse(r io.Reader) (*Transcript, error) {
	lines, err := readLogicalLines(r)
	if err != nil {
		return nil, err
	}

	t := &Transcript{Registry: timeline.NewRegistry()}
	var ids []timeline.Participant
	for _, line := range lines {
		switch line.text[0] {
		case '@':
			h := parseHeader(line.text)
			h.Before = len(t.Utterances)
			switch {
			case strings.EqualFold(h.Name, headerUTF8):
				continue
			case strings.EqualFold(h.Name, headerBegin):
				t.HasBegin = true
				continue
			case strings.EqualFold(h.Name, headerEnd):
				t.HasEnd = true
				continue
			case strings.EqualFold(h.Name, headerLanguages):
				t.Languages = splitList(h.Value)
			case strings.EqualFold(h.Name, headerParticipants):
				for _, p := range parseParticipants(h.Value) {
					t.Registry.Put(p)
				}
			case strings.EqualFold(h.Name, headerID):
				p, err := parseID(h.Value)
				if err != nil {
					return nil, &ParseError{Line: line.number, Msg: err.Error()}
				}
				ids = append(ids, p)
			}
			t.Headers = append(t.Headers, h)
		case '*':
			u, err := parseUtterance(line.text)
			if err != nil {
				return nil, &ParseError{Line: line.number, Msg: err.Error()}
			}
			t.Utterances = append(t.Utterances, u)
		case '%':
			if len(t.Utterances) == 0 {
				return nil, &ParseError{Line: line.number, Msg: "dependent tier before any utterance"}
			}
			name, value, ok := splitTier(line.text)
			if !ok {
				return nil, &ParseError{Line: line.number, Msg: "malformed dependent tier"}
			}
			t.Utterances[len(t.Utterances)-1].SetTier(name, value)
		default:
			return nil, &ParseError{Line: line.number, Msg: fmt.Sprintf("unrecognized line %q", truncate(line.text, 40))}
		}
	}

	for _, id := range ids {
		merged, ok := t.Registry.Get(id.Code)
		if !ok {
			t.Registry.Put(id)
			continue
		}
		if id.Role == "" {
			id.Role = merged.Role
		}
		id.Name = merged.Name
		t.Registry.Put(id)
	}
	return t, nil
}

func readLogicalLines(r io.Reader) ([]logicalLine, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []logicalLine
	number := 0
	for scanner.Scan() {
		number++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if number == 1 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if raw[0] == '\t' || raw[0] == ' ' {
			if len(lines) == 0 {
				return nil, &ParseError{Line: number, Msg: "continuation line without a preceding line"}
			}
			prev := &lines[len(lines)-1]
			prev.text += " " + strings.TrimSpace(raw)
			continue
		}
		lines = append(lines, logicalLine{number: number, text: raw})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return lines, nil
}

func parseHeader(line string) Header {
	body := line[1:]
	name, value, found := strings.Cut(body, ":")
	if !found {
		return Header{Name: strings.TrimSpace(body), Bare: true}
	}
	return Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseParticipants reads "CHI Ruth Target_Child, MOT Mother" style lists.
// A single word after the code is the role.
func parseParticipants(value string) []timeline.Participant {
	var out []timeline.Participant
	for _, entry := range splitList(value) {
		fields := strings.Fields(entry)
		p := timeline.Participant{Code: fields[0]}
		switch len(fields) {
		case 1:
		case 2:
			p.Role = fields[1]
		default:
			p.Name = strings.Join(fields[1:len(fields)-1], " ")
			p.Role = fields[len(fields)-1]
		}
		out = append(out, p)
	}
	return out
}

// parseID reads lang|corpus|code|age|sex|group|ses|role|education|custom|.
func parseID(value string) (timeline.Participant, error) {
	fields := strings.Split(value, "|")
	if len(fields) < 3 || strings.TrimSpace(fields[2]) == "" {
		return timeline.Participant{}, fmt.Errorf("malformed @ID %q", value)
	}
	for len(fields) < 10 {
		fields = append(fields, "")
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return timeline.Participant{
		Language:  fields[0],
		Corpus:    fields[1],
		Code:      fields[2],
		Age:       fields[3],
		Sex:       fields[4],
		Group:     fields[5],
		SES:       fields[6],
		Role:      fields[7],
		Education: fields[8],
		Custom:    fields[9],
	}, nil
}

func parseUtterance(line string) (*timeline.Utterance, error) {
	code, text, ok := splitTier(line)
	if !ok || code == "" {
		return nil, fmt.Errorf("malformed utterance line")
	}
	start, end := math.NaN(), math.NaN()
	if loc := lastBullet(text); loc != nil {
		s, errS := strconv.ParseInt(text[loc[2]:loc[3]], 10, 64)
		e, errE := strconv.ParseInt(text[loc[4]:loc[5]], 10, 64)
		if errS != nil || errE != nil {
			return nil, fmt.Errorf("malformed time mark %q", text[loc[0]:loc[1]])
		}
		start = float64(s) / 1000
		end = float64(e) / 1000
		text = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	}
	return timeline.NewUtterance(start, end, code, text), nil
}

func lastBullet(text string) []int {
	all := bulletPattern.FindAllStringSubmatchIndex(text, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// splitTier splits "*CHI:\ttext" or "%mor:\ttext" into name and text. The
// leading marker is dropped for utterances and kept for dependent tiers.
func splitTier(line string) (string, string, bool) {
	name, text, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "*") {
		name = name[1:]
	}
	return name, strings.TrimSpace(text), name != "" && name != "%"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
