// Package preview streams a searched video to the browser with byte-range
// support so the player can seek to a matched second.
package preview

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotVideo is returned for files whose extension maps to a non-video
// content type.
var ErrNotVideo = errors.New("not a video file")

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{logger: logger}
}

// ContentType guesses the MIME type of a video from its extension.
func ContentType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4", ".m4v":
		return "video/mp4", nil
	case ".webm":
		return "video/webm", nil
	case ".mkv":
		return "video/x-matroska", nil
	case ".mov":
		return "video/quicktime", nil
	case ".avi":
		return "video/x-msvideo", nil
	case "":
		return "application/octet-stream", nil
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream", nil
	}
	if !strings.HasPrefix(ct, "video/") {
		return "", ErrNotVideo
	}
	return ct, nil
}

// ServeVideo writes the file at path, honouring a Range header. Missing files
// are answered with 404 rather than returned as errors.
func (s *Server) ServeVideo(w http.ResponseWriter, r *http.Request, path string) error {
	contentType, err := ContentType(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "video not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}
	if info.IsDir() {
		http.Error(w, "video not found", http.StatusNotFound)
		return nil
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rng, partial, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		// Malformed ranges are ignored and the whole file is sent.
		partial = false
	}

	if !partial {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		if _, err := io.Copy(w, file); err != nil {
			s.logger.Debug("preview copy interrupted", "error", err)
		}
		return nil
	}

	w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	w.Header().Set("Content-Range", rng.Header(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}

	if _, err := file.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek video: %w", err)
	}
	if _, err := io.CopyN(w, file, rng.Length()); err != nil {
		s.logger.Debug("preview copy interrupted", "error", err)
	}
	return nil
}
