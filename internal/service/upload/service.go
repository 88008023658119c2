// Package upload acknowledges homework uploads without keeping them.
package upload

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrNoFile   = errors.New("a file is required")
	ErrTooLarge = errors.New("file exceeds the upload limit")
)

// Receipt 描述一次上传确认。
type Receipt struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
}

// Service drains an uploaded file and reports success. No data leaves the process.
type Service struct {
	maxBytes int64
	logger   *zap.Logger
}

// NewService creates the acknowledger; maxBytes <= 0 disables the size check.
func NewService(maxBytes int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{maxBytes: maxBytes, logger: logger}
}

// MaxBytes returns the configured limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Accept reads and discards the file body and returns the confirmation text.
func (s *Service) Accept(filename string, body io.Reader) (Receipt, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if body == nil || name == "" || name == "." || name == string(filepath.Separator) {
		return Receipt{}, ErrNoFile
	}

	reader := body
	if s.maxBytes > 0 {
		reader = io.LimitReader(body, s.maxBytes+1)
	}
	size, err := io.Copy(io.Discard, reader)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return Receipt{}, ErrTooLarge
	}

	s.logger.Info("upload acknowledged", zap.String("filename", name), zap.Int64("size", size))
	return Receipt{
		Filename: name,
		Size:     size,
		Message:  fmt.Sprintf("文件\"%s\"上传成功！在实际应用中，这里会将文件发送到服务器进行处理。", name),
	}, nil
}
