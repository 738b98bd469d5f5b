package chat

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"chatalign/internal/timeline"
)

// Write serializes t. The output always starts with @UTF8 and @Begin and
// ends with @End. @Participants and @ID lines come from the registry, so
// every participant used by an utterance is declared.
func Write(w io.Writer, t *Transcript) error {
	bw := bufio.NewWriter(w)
	writeLine := func(s string) {
		_, _ = bw.WriteString(s)
		_ = bw.WriteByte('\n')
	}

	writeLine("@" + headerUTF8)
	writeLine("@" + headerBegin)

	participantsWritten := false
	writeParticipants := func() {
		if participantsWritten {
			return
		}
		participantsWritten = true
		if t.Registry.Len() == 0 {
			return
		}
		writeLine(formatHeader(headerParticipants, formatParticipants(t.Registry.Participants())))
		for _, p := range t.Registry.Participants() {
			writeLine(formatHeader(headerID, formatID(p)))
		}
	}

	next := 0
	flushHeaders := func(before int) {
		for next < len(t.Headers) && t.Headers[next].Before <= before {
			h := t.Headers[next]
			next++
			switch {
			case strings.EqualFold(h.Name, headerParticipants):
				writeParticipants()
			case strings.EqualFold(h.Name, headerID):
				// regenerated with @Participants
			case h.Bare:
				writeLine("@" + h.Name)
			default:
				writeLine(formatHeader(h.Name, h.Value))
			}
		}
	}

	flushHeaders(0)
	writeParticipants()
	for i, u := range t.Utterances {
		flushHeaders(i)
		writeUtterance(writeLine, u)
	}
	flushHeaders(len(t.Utterances))
	writeLine("@" + headerEnd)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func writeUtterance(writeLine func(string), u *timeline.Utterance) {
	main := "*" + u.Participant + ":\t" + u.Text()
	if !math.IsNaN(u.Start) && !math.IsNaN(u.End) {
		main += fmt.Sprintf(" \x15%d_%d\x15", millis(u.Start), millis(u.End))
	}
	writeLine(main)
	for _, name := range u.TierOrder {
		if name == u.Participant {
			continue
		}
		text, ok := u.Tiers[name]
		if !ok {
			continue
		}
		writeLine(name + ":\t" + text)
	}
}

func millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

func formatHeader(name, value string) string {
	return "@" + name + ":\t" + value
}

func formatParticipants(ps []timeline.Participant) string {
	entries := make([]string, 0, len(ps))
	for _, p := range ps {
		fields := []string{p.Code}
		if p.Name != "" {
			fields = append(fields, p.Name)
		}
		if p.Role != "" {
			fields = append(fields, p.Role)
		}
		entries = append(entries, strings.Join(fields, " "))
	}
	return strings.Join(entries, ", ")
}

func formatID(p timeline.Participant) string {
	return strings.Join([]string{
		p.Language, p.Corpus, p.Code, p.Age, p.Sex, p.Group, p.SES, p.Role, p.Education, p.Custom,
	}, "|") + "|"
}
