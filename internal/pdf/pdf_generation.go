package pdf

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"ninex/internal/models"
)

// Generator — интерфейс (удобно мокать в тестах)
type Generator interface {
	AccountsReport(w io.Writer, data ReportData) error
}

// ReportGenerator renders account listings. Without a TTF font it falls back
// to the built-in Helvetica, which only covers Latin-1.
type ReportGenerator struct {
	FontPath string // путь до TTF, например "assets/fonts/DejaVuSans.ttf"
	fontName string
}

type ReportData struct {
	GeneratedBy string
	GeneratedAt time.Time
	Search      string
	Accounts    []*models.Account
	// Complete=false: выборка обрезана лимитом страниц
	Complete bool
}

type column struct {
	title string
	width float64
	value func(a *models.Account, now time.Time) string
}

var reportColumns = []column{
	{"Username", 42, func(a *models.Account, _ time.Time) string { return a.Username }},
	{"Type", 20, func(a *models.Account, _ time.Time) string { return string(a.AccountType) }},
	{"Created By", 32, func(a *models.Account, _ time.Time) string { return a.CreatedBy }},
	{"Status", 20, func(a *models.Account, now time.Time) string {
		if a.IsActive(now) {
			return "Active"
		}
		return "Expired"
	}},
	{"Expiry", 34, func(a *models.Account, _ time.Time) string { return expiryLabel(a) }},
	{"Days", 14, func(a *models.Account, now time.Time) string {
		if a.IsNever() {
			return "-"
		}
		return strconv.Itoa(a.DaysLeft(now))
	}},
	{"Device", 22, func(a *models.Account, _ time.Time) string { return a.Device }},
	{"Credits", 18, func(a *models.Account, _ time.Time) string { return strconv.Itoa(a.Credits) }},
	{"Payment", 22, func(a *models.Account, _ time.Time) string {
		if a.AccountType != models.RoleAdmin {
			return ""
		}
		return a.EffectivePaymentStatus()
	}},
	{"Version", 20, func(a *models.Account, _ time.Time) string { return a.Version }},
}

func NewReportGenerator(fontPath string) *ReportGenerator {
	g := &ReportGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		if _, err := os.Stat(fontPath); err == nil {
			g.fontName = "DejaVu"
		}
	}
	return g
}

func (g *ReportGenerator) AccountsReport(w io.Writer, data ReportData) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("NineX accounts report", false)
	pdf.SetAuthor("NineX", false)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 15)
	g.addUTF8Font(pdf)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(g.fontName, "", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// ===== Заголовок
	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, "Accounts report", "", 1, "L", false, 0, "")
	g.kvLine(pdf, "Generated by", data.GeneratedBy)
	g.kvLine(pdf, "Generated at", data.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	if data.Search != "" {
		g.kvLine(pdf, "Search", data.Search)
	}
	g.kvLine(pdf, "Records", strconv.Itoa(len(data.Accounts)))
	if !data.Complete {
		pdf.SetFont(g.fontName, "", 9)
		pdf.SetTextColor(180, 0, 0)
		pdf.CellFormat(0, 6, "Listing truncated: more records exist than the report fetches.", "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	g.hr(pdf)

	// ===== Таблица
	g.tableHeader(pdf)
	pdf.SetFont(g.fontName, "", 8)
	for i, a := range data.Accounts {
		if pdf.GetY() > 190 {
			pdf.AddPage()
			g.tableHeader(pdf)
			pdf.SetFont(g.fontName, "", 8)
		}
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)
		for _, col := range reportColumns {
			pdf.CellFormat(col.width, 6, g.fit(pdf, col.value(a, data.GeneratedAt), col.width), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// ===== helpers =====

func (g *ReportGenerator) tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont(g.fontName, "B", 9)
	pdf.SetFillColor(40, 40, 60)
	pdf.SetTextColor(255, 255, 255)
	for _, col := range reportColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}

func (g *ReportGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 10)
	pdf.CellFormat(32, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *ReportGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(12, y, 285, y)
	pdf.SetY(y + 3)
}

// fit обрезает текст под ширину ячейки
func (g *ReportGenerator) fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"..") > limit {
		r = r[:len(r)-1]
	}
	return string(r) + ".."
}

func (g *ReportGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	if g.fontName == "Helvetica" {
		return
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}

func expiryLabel(a *models.Account) string {
	if a.IsNever() {
		return "Never"
	}
	exp, ok := a.ExpiryUnix()
	if !ok {
		return a.Expiry
	}
	return time.Unix(exp, 0).UTC().Format("2006-01-02 15:04")
}
