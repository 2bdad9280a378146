package server

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openspeechlab/sensegate/internal/audio"
	"github.com/openspeechlab/sensegate/internal/batch"
	"github.com/openspeechlab/sensegate/pkg/asr"
)

// maxUploadBytes bounds the in-memory portion of a multipart upload. Larger
// files spill to disk via the multipart reader.
const maxUploadBytes = 32 << 20

// batchResponse is the JSON body of POST /api/v1/asr.
type batchResponse struct {
	Result []batch.Record `json:"result"`
}

// handleBatch transcribes one or more uploaded audio files. Form fields:
//
//   - files: one or more WAV or raw PCM16 parts (repeatable)
//   - keys: comma-separated identifiers, one per file (optional)
//   - lang: recognition language (optional, default from config)
//   - chunk_size: window size in seconds; 0 disables chunking (optional)
//   - overlap: window overlap in seconds (optional)
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	lang := asr.Language(r.FormValue("lang"))
	if lang == "" {
		lang = s.cfg.Streaming.DefaultLanguage
	}
	if !lang.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported language %q", lang))
		return
	}

	chunkSize := s.cfg.Batch.ChunkSize
	if v := r.FormValue("chunk_size"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, "chunk_size must be a non-negative number")
			return
		}
		chunkSize = f
	}
	overlap := s.cfg.Batch.Overlap
	if v := r.FormValue("overlap"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, "overlap must be a non-negative number")
			return
		}
		overlap = f
	}

	keys := splitKeys(r.FormValue("keys"))

	rec, err := s.engine.Recognizer()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "recognizer unavailable: "+err.Error())
		return
	}
	tr := batch.New(rec, s.cfg.Audio.SampleRate, batch.WithLogger(s.logger))

	records := make([]batch.Record, 0, len(files))
	for i, fh := range files {
		key := fh.Filename
		if i < len(keys) {
			key = keys[i]
		}

		samples, err := decodeUpload(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("decode %q: %v", key, err))
			return
		}

		start := time.Now()
		record, err := tr.Transcribe(r.Context(), samples, key, lang, chunkSize, overlap)
		s.metrics.RecordInference(r.Context(), "batch", time.Since(start).Seconds())
		if err != nil {
			s.metrics.RecordRecognizerError(r.Context(), "batch")
			writeError(w, http.StatusBadGateway, fmt.Sprintf("transcribe %q: %v", key, err))
			return
		}
		if s.corrector != nil {
			record.Text, _ = s.corrector.Correct(record.Text)
		}
		records = append(records, record)
	}

	writeJSON(w, http.StatusOK, batchResponse{Result: records})
}

// decodeUpload reads one multipart file and returns mono float32 samples at
// the target rate. WAV files are detected by the RIFF magic and resampled as
// needed; anything else is treated as raw little-endian PCM16 already at the
// target rate.
func decodeUpload(fh *multipart.FileHeader) ([]float32, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	if bytes.HasPrefix(data, []byte("RIFF")) {
		return audio.DecodeWAV(data)
	}
	return audio.PCM16ToFloat32(data)
}

// splitKeys splits the comma-separated keys field, trimming whitespace.
func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
