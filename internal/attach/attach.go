// Package attach turns uploaded chat attachments into LLM-ready input.
//
// The browser sends attachments as base64 (optionally a full data URL) with
// a MIME type. PDFs are reduced to their plain text, truncated, and appended
// to the user's message; images are forwarded to the language model as a
// data URL. Anything else is an input error the caller reports as a 4xx.
package attach

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrBadFile marks attachment failures caused by the input itself: unknown
// type, undecodable base64, unreadable PDF. Callers map it to a 4xx.
var ErrBadFile = errors.New("unprocessable attachment")

// maxPDFWords caps how much extracted PDF text is fed to the model.
const maxPDFWords = 5000

// truncationMark is appended when PDF text is cut at maxPDFWords.
const truncationMark = "... [Content Truncated]"

// Attachment is the processed form of one uploaded file. Exactly one of the
// two fields is set.
type Attachment struct {
	// TextSupplement is extracted document text to append to the user's
	// message, already framed with a content header.
	TextSupplement string

	// ImageURL is a data URL to attach to the LLM request.
	ImageURL string
}

// Process converts one uploaded file into an [Attachment] according to its
// MIME type. fileData may be raw base64 or a full data URL.
func Process(fileData, fileType string) (*Attachment, error) {
	switch {
	case fileType == "application/pdf":
		raw, err := decode(fileData)
		if err != nil {
			return nil, err
		}
		text, words, err := extractPDFText(raw)
		if err != nil {
			return nil, err
		}
		return &Attachment{
			TextSupplement: fmt.Sprintf("\n\n[PDF Content (%d words)]:\n%s", words, text),
		}, nil

	case strings.HasPrefix(fileType, "image/"):
		if strings.HasPrefix(fileData, "data:") {
			return &Attachment{ImageURL: fileData}, nil
		}
		return &Attachment{ImageURL: "data:" + fileType + ";base64," + fileData}, nil

	default:
		return nil, fmt.Errorf("attach: unsupported file type %q: %w", fileType, ErrBadFile)
	}
}

// decode strips an optional data-URL prefix and base64-decodes the payload.
func decode(fileData string) ([]byte, error) {
	payload := fileData
	if i := strings.IndexByte(payload, ','); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("attach: decode base64: %v: %w", err, ErrBadFile)
	}
	return raw, nil
}

// extractPDFText pulls plain text out of a PDF and truncates it to
// maxPDFWords. The returned word count is after truncation.
func extractPDFText(raw []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, fmt.Errorf("attach: open pdf: %v: %w", err, ErrBadFile)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("attach: extract pdf text: %v: %w", err, ErrBadFile)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, textReader); err != nil {
		return "", 0, fmt.Errorf("attach: read pdf text: %v: %w", err, ErrBadFile)
	}

	words := strings.Fields(sb.String())
	if len(words) > maxPDFWords {
		words = words[:maxPDFWords]
		return strings.Join(words, " ") + " " + truncationMark, maxPDFWords, nil
	}
	return strings.Join(words, " "), len(words), nil
}
