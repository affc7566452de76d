package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// fakeRunner records every invocation and creates the files a real tool
// would have written, one file list per call.
type fakeRunner struct {
	calls [][]string
	touch [][]string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, argv []string, _ time.Duration) (string, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, argv)
	if f.err != nil {
		return "", f.err
	}
	if idx < len(f.touch) {
		for _, path := range f.touch[idx] {
			if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
				return "", err
			}
		}
	}
	return "", nil
}

func newTestConverter(runner CommandRunner) *Converter {
	return NewConverter(runner, 60*time.Second, 30*time.Second)
}

func TestConvertImageSingleInvocation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.png")
	base := filepath.Join(dir, "scan")

	runner := &fakeRunner{touch: [][]string{{base + ".pdf", base + ".hocr", base + ".txt"}}}
	out, err := newTestConverter(runner).Convert(context.Background(), src, "image/png", DefaultOptions())
	if err != nil {
		t.Fatalf("Convert = %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("tesseract invoked %d times, want 1", len(runner.calls))
	}
	want := []string{"tesseract", src, base, "pdf", "hocr", "txt"}
	if !reflect.DeepEqual(runner.calls[0], want) {
		t.Errorf("argv = %v, want %v", runner.calls[0], want)
	}

	wantOut := Output{
		FormatPDF:  base + ".pdf",
		FormatTxt:  base + ".txt",
		FormatHTML: base + ".hocr",
	}
	if !reflect.DeepEqual(out, wantOut) {
		t.Errorf("output = %v, want %v", out, wantOut)
	}
}

func TestConvertImageTextOnly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.jpg")
	base := filepath.Join(dir, "scan")

	runner := &fakeRunner{touch: [][]string{{base + ".txt"}}}
	opts := Options{FirstPage: 1, LastPage: 1, OutputFormat: OutputFormatText}
	out, err := newTestConverter(runner).Convert(context.Background(), src, "image/jpeg", opts)
	if err != nil {
		t.Fatalf("Convert = %v", err)
	}

	want := []string{"tesseract", src, base, "txt"}
	if !reflect.DeepEqual(runner.calls[0], want) {
		t.Errorf("argv = %v, want %v", runner.calls[0], want)
	}
	if len(out) != 1 || out[FormatTxt] != base+".txt" {
		t.Errorf("output = %v, want a single txt artifact", out)
	}
}

func TestConvertPDFBothFormats(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.pdf")
	base := filepath.Join(dir, "doc")

	runner := &fakeRunner{touch: [][]string{{base + ".txt"}, {base + ".xml"}}}
	opts := Options{FirstPage: 2, LastPage: 4}
	out, err := newTestConverter(runner).Convert(context.Background(), src, "application/pdf", opts)
	if err != nil {
		t.Fatalf("Convert = %v", err)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("poppler invoked %d times, want 2", len(runner.calls))
	}
	wantText := []string{"pdftotext", "-f", "2", "-l", "4", src, base + ".txt"}
	if !reflect.DeepEqual(runner.calls[0], wantText) {
		t.Errorf("pdftotext argv = %v, want %v", runner.calls[0], wantText)
	}
	wantXML := []string{"pdftohtml", "-xml", "-f", "2", "-l", "4", src, base}
	if !reflect.DeepEqual(runner.calls[1], wantXML) {
		t.Errorf("pdftohtml argv = %v, want %v", runner.calls[1], wantXML)
	}

	wantOut := Output{
		FormatTxt: base + ".txt",
		FormatXML: base + ".xml",
	}
	if !reflect.DeepEqual(out, wantOut) {
		t.Errorf("output = %v, want %v", out, wantOut)
	}
}

func TestConvertPDFSingleFormat(t *testing.T) {
	cases := []struct {
		format    string
		wantTool  string
		wantLabel string
		artifact  string
	}{
		{OutputFormatText, "pdftotext", FormatTxt, "doc.txt"},
		{OutputFormatXML, "pdftohtml", FormatXML, "doc.xml"},
	}
	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "doc.pdf")
			artifact := filepath.Join(dir, tc.artifact)

			runner := &fakeRunner{touch: [][]string{{artifact}}}
			opts := Options{FirstPage: 1, LastPage: 1, OutputFormat: tc.format}
			out, err := newTestConverter(runner).Convert(context.Background(), src, "application/pdf", opts)
			if err != nil {
				t.Fatalf("Convert = %v", err)
			}
			if len(runner.calls) != 1 {
				t.Fatalf("invoked %d commands, want 1", len(runner.calls))
			}
			if runner.calls[0][0] != tc.wantTool {
				t.Errorf("tool = %q, want %q", runner.calls[0][0], tc.wantTool)
			}
			if len(out) != 1 || out[tc.wantLabel] != artifact {
				t.Errorf("output = %v, want a single %s artifact", out, tc.wantLabel)
			}
		})
	}
}

func TestConvertUnsupportedContentType(t *testing.T) {
	runner := &fakeRunner{}
	_, err := newTestConverter(runner).Convert(context.Background(), "/tmp/work/notes.txt", "text/plain", DefaultOptions())

	var uErr *UnsupportedContentTypeError
	if !errors.As(err, &uErr) {
		t.Fatalf("error type = %T, want *UnsupportedContentTypeError (error: %v)", err, err)
	}
	if uErr.ContentType != "text/plain" {
		t.Errorf("content type = %q, want %q", uErr.ContentType, "text/plain")
	}
	if len(runner.calls) != 0 {
		t.Errorf("invoked %d commands, want none", len(runner.calls))
	}
}

func TestConvertMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.png")
	base := filepath.Join(dir, "scan")

	// tesseract "succeeds" but never writes the hocr file
	runner := &fakeRunner{touch: [][]string{{base + ".pdf", base + ".txt"}}}
	_, err := newTestConverter(runner).Convert(context.Background(), src, "image/png", DefaultOptions())

	var mErr *MissingArtifactError
	if !errors.As(err, &mErr) {
		t.Fatalf("error type = %T, want *MissingArtifactError (error: %v)", err, err)
	}
	if mErr.Format != FormatHTML {
		t.Errorf("missing format = %q, want %q", mErr.Format, FormatHTML)
	}
}

func TestConvertPropagatesRunnerFailure(t *testing.T) {
	runner := &fakeRunner{err: &SystemCallError{Kind: FailExit, Command: []string{"pdftotext"}, ExitCode: 1, Output: "Syntax Error"}}
	out, err := newTestConverter(runner).Convert(context.Background(), "/tmp/work/doc.pdf", "application/pdf", DefaultOptions())

	var sysErr *SystemCallError
	if !errors.As(err, &sysErr) {
		t.Fatalf("error type = %T, want *SystemCallError (error: %v)", err, err)
	}
	if out != nil {
		t.Errorf("output = %v, want none on failure", out)
	}
}

func TestIsSupportedContentType(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"application/pdf", true},
		{"image/png", true},
		{"image/jpeg", true},
		{"image/tiff", true},
		{"text/plain", false},
		{"application/zip", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsSupportedContentType(tc.contentType); got != tc.want {
			t.Errorf("IsSupportedContentType(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}
