package mailer

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
)

// LoadAttachments reads every file once before the run starts.
// The returned buffers are shared read-only across all recipients,
// so every message carries byte-identical payloads.
func LoadAttachments(paths []string) ([]Attachment, error) {
	attachments := make([]Attachment, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %q: %w", path, err)
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = fallbackMIMEType
		}

		attachments = append(attachments, Attachment{
			Filename: filepath.Base(path),
			MIMEType: mimeType,
			Data:     data,
		})
	}

	return attachments, nil
}
