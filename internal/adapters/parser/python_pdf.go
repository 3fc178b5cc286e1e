// Package parser provides ports.PageParser adapters.
// PDF extraction is delegated to an external Python service.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultServiceURL is where the PDF service listens by default.
const DefaultServiceURL = "http://localhost:8081"

// PythonPDFParser implements ports.PageParser by calling the PDF service.
type PythonPDFParser struct {
	serviceURL string
	client     *http.Client
	logger     *zap.Logger
	pythonCmd  *exec.Cmd
}

// NewPythonPDFParser creates a new PDF parser that calls the Python service.
func NewPythonPDFParser(serviceURL string, logger *zap.Logger) *PythonPDFParser {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PythonPDFParser{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// parseResponse is the Python service response format. PageTexts holds one
// entry per page in page order.
type parseResponse struct {
	Text      string   `json:"text"`
	Pages     int      `json:"pages"`
	PageTexts []string `json:"page_texts"`
	Library   string   `json:"library,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ParsePages extracts the text of every page. Element i is page i (0-based).
// Services that only return whole-document text yield a single page.
func (p *PythonPDFParser) ParsePages(ctx context.Context, data []byte, filename string) ([]string, error) {
	endpoint := p.serviceURL + "/parse?" + url.Values{"filename": {filename}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling PDF service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("PDF parse error: %s", result.Error)
	}

	p.logger.Debug("pdf parsed",
		zap.String("file", filename),
		zap.Int("pages", result.Pages),
		zap.String("library", result.Library))

	if len(result.PageTexts) > 0 {
		return result.PageTexts, nil
	}
	if result.Text != "" {
		return []string{result.Text}, nil
	}
	return []string{}, nil
}

// StartService starts the Python PDF service as a subprocess.
// Returns a cleanup function to stop the service.
func (p *PythonPDFParser) StartService(pythonPath string) (func(), error) {
	scriptPath := filepath.Join(pythonPath, "pdf_service.py")
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("pdf_service.py not found at %s", scriptPath)
	}

	p.pythonCmd = exec.Command("python3", scriptPath)
	p.pythonCmd.Stdout = os.Stdout
	p.pythonCmd.Stderr = os.Stderr

	if err := p.pythonCmd.Start(); err != nil {
		return nil, fmt.Errorf("starting Python service: %w", err)
	}
	p.logger.Info("pdf service started", zap.String("script", scriptPath), zap.Int("pid", p.pythonCmd.Process.Pid))

	// Wait for service to be ready
	time.Sleep(1 * time.Second)

	cleanup := func() {
		if p.pythonCmd != nil && p.pythonCmd.Process != nil {
			p.pythonCmd.Process.Kill()
		}
	}
	return cleanup, nil
}

// IsServiceHealthy checks if the Python service is running.
func (p *PythonPDFParser) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
