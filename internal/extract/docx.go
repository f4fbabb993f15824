package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultBody     = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wtTag matches <w:t>text</w:t> with any attributes.
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// paragraphEnd splits the body into paragraphs.
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	// overrideTag matches one Override element in [Content_Types].xml.
	overrideTag  = regexp.MustCompile(`<Override[^>]*/?>`)
	partNameAttr = regexp.MustCompile(`PartName="([^"]+)"`)
)

// extractDOCX extracts text from .docx bytes: every <w:t> run, paragraphs
// separated by newlines. The body part is located through [Content_Types].xml
// and defaults to word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	bodyPath := docxDefaultBody
	if ct, err := readZipEntry(zr, contentTypesPath); err == nil {
		if p := mainPartName(string(ct)); p != "" {
			bodyPath = p
		}
	}
	body, err := readZipEntry(zr, bodyPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var paragraphs []string
	for _, para := range paragraphEnd.Split(string(body), -1) {
		runs := wtTag.FindAllStringSubmatch(para, -1)
		words := make([]string, 0, len(runs))
		for _, r := range runs {
			if t := strings.TrimSpace(r[1]); t != "" {
				words = append(words, t)
			}
		}
		if len(words) > 0 {
			paragraphs = append(paragraphs, strings.Join(words, " "))
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// mainPartName returns the main document part from content types, without the leading slash.
func mainPartName(contentTypes string) string {
	for _, o := range overrideTag.FindAllString(contentTypes, -1) {
		if !strings.Contains(o, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := partNameAttr.FindStringSubmatch(o); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}
