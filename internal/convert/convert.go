package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Artifact format labels. They name conversion outputs and become the file
// extension of the stored result object.
const (
	FormatPDF  = "pdf"
	FormatTxt  = "txt"
	FormatHTML = "html"
	FormatXML  = "xml"
)

// Output maps artifact format labels to the local files a conversion wrote.
type Output map[string]string

// Converter turns a downloaded source file into one artifact per output
// format by driving the tesseract and poppler command line tools through a
// CommandRunner.
type Converter struct {
	runner       CommandRunner
	imageTimeout time.Duration
	pdfTimeout   time.Duration
}

// NewConverter wires a Converter to the given runner and tool deadlines.
func NewConverter(runner CommandRunner, imageTimeout, pdfTimeout time.Duration) *Converter {
	return &Converter{runner: runner, imageTimeout: imageTimeout, pdfTimeout: pdfTimeout}
}

// IsSupportedContentType reports whether a conversion strategy exists for
// the content type.
func IsSupportedContentType(contentType string) bool {
	return contentType == "application/pdf" || strings.HasPrefix(contentType, "image/")
}

// Convert picks the strategy for contentType and runs it against the local
// source file. Artifacts are written next to the source; every promised
// artifact is verified to exist before the output is returned.
func (c *Converter) Convert(ctx context.Context, localPath, contentType string, opts Options) (Output, error) {
	var out Output
	var err error

	switch {
	case strings.HasPrefix(contentType, "image/"):
		out, err = c.convertImage(ctx, localPath, opts)
	case contentType == "application/pdf":
		out, err = c.convertPDF(ctx, localPath, opts)
	default:
		return nil, &UnsupportedContentTypeError{Key: filepath.Base(localPath), ContentType: contentType}
	}
	if err != nil {
		return nil, err
	}

	for format, path := range out {
		if _, err := os.Stat(path); err != nil {
			return nil, &MissingArtifactError{Format: format, Path: path}
		}
	}
	return out, nil
}

// convertImage OCRs the image with a single tesseract invocation. tesseract
// writes <base>.pdf, <base>.txt and <base>.hocr next to the source; the
// hOCR artifact carries the html label.
func (c *Converter) convertImage(ctx context.Context, imagePath string, opts Options) (Output, error) {
	base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))

	configs := []string{"pdf", "hocr", "txt"}
	switch opts.OutputFormat {
	case OutputFormatText:
		configs = []string{"txt"}
	case OutputFormatXML:
		configs = []string{"hocr"}
	}

	argv := append([]string{"tesseract", imagePath, base}, configs...)
	if _, err := c.runner.Run(ctx, argv, c.imageTimeout); err != nil {
		return nil, fmt.Errorf("failed to OCR %s: %w", filepath.Base(imagePath), err)
	}

	out := Output{}
	for _, config := range configs {
		switch config {
		case "pdf":
			out[FormatPDF] = base + ".pdf"
		case "txt":
			out[FormatTxt] = base + ".txt"
		case "hocr":
			out[FormatHTML] = base + ".hocr"
		}
	}
	return out, nil
}

// convertPDF extracts the selected page range with the poppler tools, one
// invocation per requested format.
func (c *Converter) convertPDF(ctx context.Context, pdfPath string, opts Options) (Output, error) {
	out := Output{}

	if opts.OutputFormat == "" || opts.OutputFormat == OutputFormatText {
		txtPath, err := c.pdfToText(ctx, pdfPath, opts)
		if err != nil {
			return nil, err
		}
		out[FormatTxt] = txtPath
	}

	if opts.OutputFormat == "" || opts.OutputFormat == OutputFormatXML {
		xmlPath, err := c.pdfToXML(ctx, pdfPath, opts)
		if err != nil {
			return nil, err
		}
		out[FormatXML] = xmlPath
	}

	return out, nil
}

func (c *Converter) pdfToText(ctx context.Context, pdfPath string, opts Options) (string, error) {
	txtPath := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
	argv := []string{
		"pdftotext",
		"-f", strconv.Itoa(opts.FirstPage),
		"-l", strconv.Itoa(opts.LastPage),
		pdfPath,
		txtPath,
	}
	if _, err := c.runner.Run(ctx, argv, c.pdfTimeout); err != nil {
		return "", fmt.Errorf("failed to convert %s to text: %w", filepath.Base(pdfPath), err)
	}
	return txtPath, nil
}

// pdfToXML runs pdftohtml in XML mode. The tool appends .xml to the output
// base name on its own.
func (c *Converter) pdfToXML(ctx context.Context, pdfPath string, opts Options) (string, error) {
	base := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath))
	argv := []string{
		"pdftohtml",
		"-xml",
		"-f", strconv.Itoa(opts.FirstPage),
		"-l", strconv.Itoa(opts.LastPage),
		pdfPath,
		base,
	}
	if _, err := c.runner.Run(ctx, argv, c.pdfTimeout); err != nil {
		return "", fmt.Errorf("failed to convert %s to xml: %w", filepath.Base(pdfPath), err)
	}
	return base + ".xml", nil
}
