package align

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"chatalign/internal/chat"
)

// AudioExtensions are the audio files DiscoverPairs pairs with transcripts,
// in order of preference.
var AudioExtensions = []string{".wav", ".mp3", ".mp4", ".m4a", ".flac"}

var turnsSuffixes = []string{".turns.json", ".turns.rttm", ".turns.yaml", ".turns.yml"}

// DiscoverPairs lists the .cha transcripts in dir (skipping _fixed output)
// with the audio and turns files sharing their base name.
func DiscoverPairs(dir string) ([]Request, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files[strings.ToLower(entry.Name())] = entry.Name()
	}

	var reqs []Request
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".cha") || chat.IsFixedPath(name) {
			continue
		}
		base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		req := Request{TranscriptPath: filepath.Join(dir, name)}
		for _, ext := range AudioExtensions {
			if match, ok := files[base+ext]; ok {
				req.AudioPath = filepath.Join(dir, match)
				break
			}
		}
		for _, suffix := range turnsSuffixes {
			if match, ok := files[base+suffix]; ok {
				req.TurnsPath = filepath.Join(dir, match)
				break
			}
		}
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].TranscriptPath < reqs[j].TranscriptPath })
	return reqs, nil
}
