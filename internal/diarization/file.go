package diarization

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"chatalign/internal/services"
	"chatalign/internal/timeline"
)

// Format names a turns file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatRTTM Format = "rttm"
)

// sidecarSuffixes are tried, in order, next to the audio file when no turns
// path is given.
var sidecarSuffixes = []string{
	".turns.json", ".turns.rttm", ".turns.yaml", ".turns.yml",
	".json", ".rttm", ".yaml", ".yml",
}

// ParseFormat maps a file extension or format name to a Format.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "rttm":
		return FormatRTTM, nil
	default:
		return "", fmt.Errorf("unsupported turns format %q", value)
	}
}

// FileSource reads turns from a file. With an empty Path it looks for a
// sidecar next to the audio file (session.turns.json, session.rttm, ...).
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file" }

// Turns implements Source.
func (s *FileSource) Turns(_ context.Context, audioPath string) ([]timeline.Turn, error) {
	path := s.Path
	if path == "" {
		found, err := FindSidecar(audioPath)
		if err != nil {
			return nil, err
		}
		path = found
	}
	return LoadFile(path)
}

// FindSidecar returns the first turns file sharing audioPath's base name.
func FindSidecar(audioPath string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrNotFound, "diarization", "sidecar", "no audio or turns path given", nil)
	}
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	for _, suffix := range sidecarSuffixes {
		candidate := base + suffix
		if candidate == audioPath {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "diarization", "sidecar",
		fmt.Sprintf("no turns file next to %s", filepath.Base(audioPath)), nil)
}

// LoadFile reads a turns file, picking the decoder from its extension.
func LoadFile(path string) ([]timeline.Turn, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "diarization", "load", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "diarization", "load", path, err)
		}
		return nil, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	turns, err := Decode(f, format)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "diarization", "load", path, err)
	}
	return turns, nil
}

// Decode parses turns in the given format, validates them and sorts them by
// start. A MalformedIntervalError carries the turn's position in the input.
func Decode(r io.Reader, format Format) ([]timeline.Turn, error) {
	var (
		turns []timeline.Turn
		err   error
	)
	switch format {
	case FormatJSON:
		var data []byte
		if data, err = io.ReadAll(r); err == nil {
			turns, err = parseJSON(data)
		}
	case FormatYAML:
		var data []byte
		if data, err = io.ReadAll(r); err == nil {
			turns, err = parseYAML(data)
		}
	case FormatRTTM:
		turns, err = parseRTTM(r)
	default:
		err = fmt.Errorf("unsupported turns format %q", format)
	}
	if err != nil {
		return nil, err
	}
	for i, t := range turns {
		if err := t.Validate(i); err != nil {
			return nil, err
		}
	}
	SortTurns(turns)
	return turns, nil
}

// speakerLabel accepts either a string label or an integer speaker index.
// Indexes become SPEAKER_00 style labels.
type speakerLabel string

func indexLabel(n int) speakerLabel {
	return speakerLabel(fmt.Sprintf("SPEAKER_%02d", n))
}

func (l *speakerLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = speakerLabel(strings.TrimSpace(s))
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("speaker must be a string or integer: %w", err)
	}
	*l = indexLabel(n)
	return nil
}

func (l *speakerLabel) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: speaker must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		n, err := strconv.Atoi(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*l = indexLabel(n)
		return nil
	}
	*l = speakerLabel(strings.TrimSpace(node.Value))
	return nil
}

type rawSegment struct {
	Start     *float64     `json:"start" yaml:"start"`
	End       *float64     `json:"end" yaml:"end"`
	Speaker   speakerLabel `json:"speaker" yaml:"speaker"`
	SpeakerID speakerLabel `json:"speaker_id" yaml:"speaker_id"`
	Label     speakerLabel `json:"label" yaml:"label"`
}

type rawDocument struct {
	Segments    []rawSegment `json:"segments" yaml:"segments"`
	Turns       []rawSegment `json:"turns" yaml:"turns"`
	NumSpeakers int          `json:"num_speakers" yaml:"num_speakers"`
}

func (d rawDocument) segments() []rawSegment {
	if len(d.Segments) > 0 {
		return d.Segments
	}
	return d.Turns
}

func parseJSON(data []byte) ([]timeline.Turn, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty turns document")
	}
	if trimmed[0] == '[' {
		var segs []rawSegment
		if err := json.Unmarshal(trimmed, &segs); err != nil {
			return nil, fmt.Errorf("decode turns: %w", err)
		}
		return convertSegments(segs)
	}
	var doc rawDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	return convertSegments(doc.segments())
}

func parseYAML(data []byte) ([]timeline.Turn, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("empty turns document")
	}
	body := root.Content[0]
	switch body.Kind {
	case yaml.SequenceNode:
		var segs []rawSegment
		if err := body.Decode(&segs); err != nil {
			return nil, fmt.Errorf("decode turns: %w", err)
		}
		return convertSegments(segs)
	case yaml.MappingNode:
		var doc rawDocument
		if err := body.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode turns: %w", err)
		}
		return convertSegments(doc.segments())
	default:
		return nil, fmt.Errorf("line %d: turns document must be a list or a mapping", body.Line)
	}
}

// convertSegments maps decoded segments to turns. Missing bounds become NaN
// and are rejected as malformed intervals by Decode.
func convertSegments(segs []rawSegment) ([]timeline.Turn, error) {
	turns := make([]timeline.Turn, 0, len(segs))
	for i, seg := range segs {
		speaker := string(seg.Speaker)
		if speaker == "" {
			speaker = string(seg.SpeakerID)
		}
		if speaker == "" {
			speaker = string(seg.Label)
		}
		if speaker == "" {
			return nil, fmt.Errorf("segment %d: missing speaker", i)
		}
		turns = append(turns, timeline.Turn{
			Start:   floatOrNaN(seg.Start),
			End:     floatOrNaN(seg.End),
			Speaker: speaker,
		})
	}
	return turns, nil
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// parseRTTM reads NIST RTTM SPEAKER records:
//
//	SPEAKER <file> <chan> <start> <duration> <NA> <NA> <label> <NA> <NA>
func parseRTTM(r io.Reader) ([]timeline.Turn, error) {
	scanner := bufio.NewScanner(r)
	var turns []timeline.Turn
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";;") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != "SPEAKER" {
			continue
		}
		if len(fields) < 8 {
			return nil, fmt.Errorf("rttm line %d: expected at least 8 fields, got %d", lineNo, len(fields))
		}
		start, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("rttm line %d: start: %w", lineNo, err)
		}
		dur, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("rttm line %d: duration: %w", lineNo, err)
		}
		turns = append(turns, timeline.Turn{Start: start, End: start + dur, Speaker: fields[7]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rttm: %w", err)
	}
	return turns, nil
}
