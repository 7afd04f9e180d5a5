package certificate

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"medha-quiz/internal/app"
	"medha-quiz/internal/domain"
)

// ContentType is the media type of rendered certificates.
const ContentType = "application/pdf"

const defaultPlatform = "Medha Mantana Online Platform"

// Payload is the data a certificate document is rendered from.
type Payload struct {
	Platform    string
	Header      []string
	StudentName string
	QuizTitle   string
	Score       int
	Total       int
	Percentage  int
	IssuedOn    string
}

// PDFRenderer draws a landscape A4 certificate of achievement.
type PDFRenderer struct {
	platform string
	header   []string
	clock    func() time.Time
	compress bool
}

// NewPDFRenderer builds a renderer; header lines (institution, department) are printed above
// the platform name. An empty platform uses the Medha Mantana name.
func NewPDFRenderer(platform string, header ...string) *PDFRenderer {
	if strings.TrimSpace(platform) == "" {
		platform = defaultPlatform
	}
	lines := make([]string, 0, len(header))
	for _, h := range header {
		if h = strings.TrimSpace(h); h != "" {
			lines = append(lines, h)
		}
	}
	return &PDFRenderer{platform: platform, header: lines, clock: time.Now, compress: true}
}

func (r *PDFRenderer) Render(ctx context.Context, w io.Writer, quiz domain.Quiz, student domain.Student, result domain.AttemptResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := r.payload(quiz, student, result)

	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(r.clock())
	pdf.SetTitle("Certificate of Achievement", true)
	pdf.SetCreator(p.Platform, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	width, height := pdf.GetPageSize()
	centered := func(y, h float64, text string) {
		pdf.SetXY(0, y)
		pdf.CellFormat(width, h, tr(text), "", 0, "C", false, 0, "")
	}

	pdf.SetFillColor(253, 251, 251)
	pdf.Rect(0, 0, width, height, "F")
	pdf.SetDrawColor(218, 165, 32)
	pdf.SetLineWidth(10)
	pdf.Rect(30, 30, width-60, height-60, "D")

	y := 80.0
	pdf.SetTextColor(30, 30, 30)
	for i, line := range p.Header {
		size := 22.0
		if i > 1 {
			size = 18
		}
		pdf.SetFont("Times", "B", size)
		centered(y, size+6, line)
		y += size + 8
	}
	pdf.SetFont("Times", "B", 25)
	centered(y, 31, p.Platform)

	pdf.SetFont("Times", "B", 45)
	pdf.SetTextColor(218, 165, 32)
	centered(y+45, 50, "CERTIFICATE")
	pdf.SetFont("Times", "B", 22)
	pdf.SetTextColor(0, 0, 0)
	centered(y+95, 28, "OF ACHIEVEMENT")

	pdf.SetDrawColor(255, 215, 0)
	pdf.SetLineWidth(3)
	pdf.Line(120, y+130, width-120, y+130)

	pdf.SetFont("Times", "I", 18)
	centered(y+150, 24, "This Certificate is Proudly Presented To")
	pdf.SetFont("Times", "I", 42)
	pdf.SetTextColor(0, 102, 204)
	centered(y+180, 48, p.StudentName)

	pdf.SetFont("Times", "", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(70, y+240)
	pdf.MultiCell(width-140, 24, tr(fmt.Sprintf("For successfully completing the quiz \"%s\" with a score of %d/%d (%d%%)",
		p.QuizTitle, p.Score, p.Total, p.Percentage)), "", "C", false)

	pdf.SetFont("Times", "", 14)
	pdf.SetXY(100, height-110)
	pdf.CellFormat(300, 20, "Date: "+p.IssuedOn, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "I", 14)
	pdf.SetTextColor(90, 90, 90)
	centered(height-65, 20, "Generated by "+p.Platform+" - Empowering Students with Practice")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render certificate: %w", err)
	}
	return nil
}

func (r *PDFRenderer) payload(quiz domain.Quiz, student domain.Student, result domain.AttemptResult) Payload {
	name := student.Username
	if name == "" {
		name = "Student"
	}
	return Payload{
		Platform:    r.platform,
		Header:      r.header,
		StudentName: name,
		QuizTitle:   quiz.Title,
		Score:       result.Score,
		Total:       result.Total,
		Percentage:  app.Percentage(result.Score, result.Total),
		IssuedOn:    r.clock().Format("2006-01-02"),
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9.-]+`)

// Filename mirrors Certificate_{title}_{student}.pdf with path-unsafe runs collapsed to "_".
func Filename(quizTitle, student string) string {
	name := "Certificate_" + quizTitle + "_" + student
	return strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_") + ".pdf"
}
