package utils

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrNoText = errors.New("no text could be extracted")

var documentFormats = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".md":   "text/markdown",
}

// DocumentFormat returns the content type stored for an upload named name,
// and false when the extension is not accepted.
func DocumentFormat(name string) (string, bool) {
	format, ok := documentFormats[strings.ToLower(filepath.Ext(name))]
	return format, ok
}

// ExtractText pulls plain text out of an uploaded document. Plain text and
// markdown are used as is, docx is read from its document part, and anything
// else falls back to the printable runs in the raw bytes.
func ExtractText(name, contentType string, content []byte) (string, error) {
	lower := strings.ToLower(name)
	var (
		text string
		err  error
	)
	switch {
	case strings.HasPrefix(contentType, "text/") || strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md"):
		text = strings.ToValidUTF8(string(content), "")
	case strings.HasSuffix(lower, ".docx") || strings.Contains(contentType, "wordprocessingml"):
		text, err = docxText(content)
		if err != nil {
			text = printableRuns(content)
		}
	default:
		text = printableRuns(content)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return wordXMLText(rc)
	}
	return "", errors.New("docx has no document part")
}

// wordXMLText collects <w:t> runs, breaking lines at paragraph ends.
func wordXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inText = t.Name.Local == "t"
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteByte('\n')
			}
			inText = false
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
}

const minRunLength = 4

// printableRuns keeps sequences of printable characters long enough to be
// words, which recovers most of the text of uncompressed PDFs.
func printableRuns(content []byte) string {
	var (
		out strings.Builder
		run strings.Builder
	)
	flush := func() {
		if utf8.RuneCountInString(strings.TrimSpace(run.String())) >= minRunLength {
			out.WriteString(strings.TrimSpace(run.String()))
			out.WriteByte('\n')
		}
		run.Reset()
	}
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		content = content[size:]
		if r != utf8.RuneError && (unicode.IsPrint(r) || r == ' ') {
			run.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

// ChunkText splits text into pieces of at most size runes, each starting
// overlap runes before the end of the previous one. Splits prefer
// whitespace so words stay whole.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		if cut := lastSpace(runes[start:end]); cut > size/2 {
			end = start + cut
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
