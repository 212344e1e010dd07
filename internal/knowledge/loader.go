package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Extensions handled by LoadDir.
var Extensions = []string{".txt", ".md", ".markdown", ".pdf"}

// PDFExtractor turns a PDF into plain text.
type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFService calls an external text extraction service: the PDF is POSTed
// to <url>/parse and the service answers {"text": ..., "error": ...}.
type PDFService struct {
	url    string
	client *http.Client
}

func NewPDFService(url string) *PDFService {
	return &PDFService{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *PDFService) Extract(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/parse", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pdf service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("pdf service: http %d", resp.StatusCode)
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("pdf service: decode: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("pdf parse: %s", result.Error)
	}
	return result.Text, nil
}

// LoadDir walks dir and yields one or more documents per supported file.
// A missing directory yields no documents and no error. Files that cannot
// be read are logged and skipped. pdf may be nil, in which case PDFs are
// skipped.
func LoadDir(ctx context.Context, dir string, pdf PDFExtractor, log *zerolog.Logger) ([]Document, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("dir", dir).Msg("knowledge directory not found; using bundled corpus only")
			return nil, nil
		}
		return nil, fmt.Errorf("knowledge: stat %s: %w", dir, err)
	}

	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("knowledge walk")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !supported(path) {
			return nil
		}
		got, err := loadFile(ctx, path, pdf)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("knowledge file skipped")
			return nil
		}
		docs = append(docs, got...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func loadFile(ctx context.Context, path string, pdf PDFExtractor) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stem := titleFromPath(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return splitMarkdown(stem, string(data)), nil
	case ".pdf":
		if pdf == nil {
			return nil, errors.New("no pdf extraction service configured")
		}
		text, err := pdf.Extract(ctx, data)
		if err != nil {
			return nil, err
		}
		return single(stem, text), nil
	default:
		return single(stem, string(data)), nil
	}
}

func single(title, body string) []Document {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	return []Document{{Title: title, Body: body}}
}

// titleFromPath turns "politica_de_envios.md" into "politica de envios".
func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(base))
}

// splitMarkdown cuts a markdown file into one document per level 1 or 2
// heading. Text before the first heading belongs to a document titled
// after the file.
func splitMarkdown(fallbackTitle, src string) []Document {
	var out []Document
	title := fallbackTitle
	var body strings.Builder
	flush := func() {
		out = append(out, single(title, body.String())...)
		body.Reset()
	}
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if h, ok := heading(trimmed); ok {
			flush()
			title = h
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return out
}

func heading(line string) (string, bool) {
	for _, prefix := range []string{"## ", "# "} {
		if strings.HasPrefix(line, prefix) {
			if h := strings.TrimSpace(strings.TrimPrefix(line, prefix)); h != "" {
				return h, true
			}
		}
	}
	return "", false
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
