package runner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDF handling modes.
const (
	// ModeStitch sends all pages of a PDF as one tall image.
	ModeStitch = "stitch"
	// ModePages sends each page separately.
	ModePages = "pages"
)

// SupportedExtensions lists the upload types the service accepts.
var SupportedExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Renderer turns an uploaded file into page images.
type Renderer interface {
	Render(ctx context.Context, path string) ([]image.Image, error)
}

// PopplerRenderer renders PDFs with pdftoppm and decodes images directly.
type PopplerRenderer struct {
	DPI int
}

// Render returns one image per PDF page, or the decoded image itself.
func (r PopplerRenderer) Render(ctx context.Context, path string) ([]image.Image, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return r.renderPDF(ctx, path)
	case ".jpg", ".jpeg", ".png":
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		return []image.Image{img}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

func (r PopplerRenderer) renderPDF(ctx context.Context, path string) ([]image.Image, error) {
	count, err := pdfPageCount(path)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "docextract-pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}

	pages := make([]image.Image, 0, count)
	for page := 1; page <= count; page++ {
		img, err := renderPage(ctx, path, tmpDir, page, dpi)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

func pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	count, err := api.PageCount(f, conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF page count: %w", err)
	}
	return count, nil
}

// renderPage renders a single page from a PDF using pdftoppm (poppler-utils).
func renderPage(ctx context.Context, pdfPath, tmpDir string, page, dpi int) (image.Image, error) {
	outputPrefix := filepath.Join(tmpDir, fmt.Sprintf("page_%04d", page))

	// -singlefile: no page number suffix, output is <prefix>.png
	pageStr := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	img, err := decodeImage(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return img, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Stitch stacks pages vertically, left aligned, on a white canvas as wide
// as the widest page.
func Stitch(pages []image.Image) image.Image {
	if len(pages) == 1 {
		return pages[0]
	}

	width, height := 0, 0
	for _, p := range pages {
		b := p.Bounds()
		width = max(width, b.Dx())
		height += b.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	y := 0
	for _, p := range pages {
		b := p.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), p, b.Min, draw.Over)
		y += b.Dy()
	}
	return canvas
}

// EncodeJPEG flattens img onto white and encodes it as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
