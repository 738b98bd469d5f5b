package diarization

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chatalign/internal/services"
	"chatalign/internal/timeline"
)

const maxErrorBody = 4096

// HTTPSource posts the audio to a diarization service at BaseURL+"/diarize"
// and decodes {"segments":[{start,end,speaker}],"num_speakers":N}.
type HTTPSource struct {
	BaseURL     string
	NumSpeakers int
	Timeout     time.Duration
	Client      *http.Client
}

func (s *HTTPSource) Name() string { return "service" }

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: s.Timeout}
}

// Turns implements Source.
func (s *HTTPSource) Turns(ctx context.Context, audioPath string) ([]timeline.Turn, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "diarization", "service", audioPath, err)
		}
		return nil, fmt.Errorf("open %s: %w", audioPath, err)
	}
	defer fd.Close()
	if _, err = io.Copy(fw, fd); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	if s.NumSpeakers > 0 {
		if err := w.WriteField("num_speakers", strconv.Itoa(s.NumSpeakers)); err != nil {
			return nil, fmt.Errorf("write num_speakers: %w", err)
		}
	}
	if lang := LanguageFromContext(ctx); lang != "" {
		if err := w.WriteField("language", lang); err != nil {
			return nil, fmt.Errorf("write language: %w", err)
		}
	}
	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	endpoint := strings.TrimRight(s.BaseURL, "/") + "/diarize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &b)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "diarization", "service", endpoint, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Expect", "100-continue")

	resp, err := s.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "diarization", "service", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		marker := services.ErrExternalTool
		if resp.StatusCode >= http.StatusInternalServerError {
			marker = services.ErrTransient
		}
		return nil, services.Wrap(marker, "diarization", "service",
			fmt.Sprintf("diarize %s: %s", resp.Status, strings.TrimSpace(string(body))), nil)
	}
	turns, err := Decode(resp.Body, FormatJSON)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "diarization", "service", "decode response", err)
	}
	return turns, nil
}
