// Package loader turns uploaded files into entities.Record slices.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// ByteLoader parses an in-memory file. name is used for the record source
// and for format detection.
type ByteLoader interface {
	LoadBytes(ctx context.Context, name string, data []byte) ([]entities.Record, error)
	SupportedExtensions() []string
}

// TextLoader loads plain text documents (.txt, .md) as a single record with
// no page.
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// LoadBytes decodes data as UTF-8 text. Invalid sequences are replaced.
func (l *TextLoader) LoadBytes(ctx context.Context, name string, data []byte) ([]entities.Record, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return singleRecord(name, text), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// HTMLLoader extracts the readable article text of an HTML page.
type HTMLLoader struct{}

// NewHTMLLoader creates an HTML loader.
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{}
}

// LoadBytes runs readability over data and keeps the article text.
func (l *HTMLLoader) LoadBytes(ctx context.Context, name string, data []byte) ([]entities.Record, error) {
	pageURL := &url.URL{Scheme: "file", Path: "/" + filepath.Base(name)}
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extracting html: %w", err)
	}
	return singleRecord(name, article.TextContent), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *HTMLLoader) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

// PDFLoader loads PDF documents page by page through a ports.PageParser.
type PDFLoader struct {
	parser ports.PageParser
}

// NewPDFLoader creates a PDF loader backed by parser.
func NewPDFLoader(parser ports.PageParser) *PDFLoader {
	return &PDFLoader{parser: parser}
}

// LoadBytes returns one record per non-blank page, with 0-based page numbers.
func (l *PDFLoader) LoadBytes(ctx context.Context, name string, data []byte) ([]entities.Record, error) {
	pages, err := l.parser.ParsePages(ctx, data, filepath.Base(name))
	if err != nil {
		return nil, fmt.Errorf("parsing pdf: %w", err)
	}
	source := filepath.Base(name)
	records := make([]entities.Record, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, entities.Record{
			Text:   text,
			Page:   entities.PageRef(i),
			Source: source,
		})
	}
	return records, nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// MultiLoader dispatches on file extension.
type MultiLoader struct {
	loaders map[string]ByteLoader
}

// NewMultiLoader creates a loader over the given format loaders. Later
// loaders win when two claim the same extension.
func NewMultiLoader(loaders ...ByteLoader) *MultiLoader {
	m := &MultiLoader{loaders: make(map[string]ByteLoader)}
	for _, l := range loaders {
		for _, ext := range l.SupportedExtensions() {
			m.loaders[ext] = l
		}
	}
	return m
}

// NewDefaultLoader handles text, markdown, HTML and, through parser, PDF.
func NewDefaultLoader(parser ports.PageParser) *MultiLoader {
	return NewMultiLoader(NewTextLoader(), NewHTMLLoader(), NewPDFLoader(parser))
}

// Load reads the file at path and dispatches on its extension.
func (m *MultiLoader) Load(ctx context.Context, path string) ([]entities.Record, error) {
	if _, err := m.loaderFor(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return m.LoadBytes(ctx, path, data)
}

// LoadBytes dispatches on the extension of name.
func (m *MultiLoader) LoadBytes(ctx context.Context, name string, data []byte) ([]entities.Record, error) {
	l, err := m.loaderFor(name)
	if err != nil {
		return nil, err
	}
	return l.LoadBytes(ctx, name, data)
}

// Supports reports whether name has a handled extension.
func (m *MultiLoader) Supports(name string) bool {
	_, err := m.loaderFor(name)
	return err == nil
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (m *MultiLoader) loaderFor(name string) (ByteLoader, error) {
	ext := strings.ToLower(filepath.Ext(name))
	l, ok := m.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entities.ErrUnsupportedType, ext)
	}
	return l, nil
}

func singleRecord(name, text string) []entities.Record {
	if strings.TrimSpace(text) == "" {
		return []entities.Record{}
	}
	return []entities.Record{{Text: text, Source: filepath.Base(name)}}
}
