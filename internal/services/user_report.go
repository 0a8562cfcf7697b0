// Package services renders documents out of repository data.
package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"apicore/internal/domain"
	"apicore/internal/domain/models"
	"apicore/internal/http/response"

	"github.com/phpdave11/gofpdf"
)

const pdfContentType = "application/pdf"

// UserReport renders one account and its projects as a PDF.
type UserReport struct {
	Now func() time.Time
}

func (s UserReport) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Render builds the report for u. u.Projects is expected to be loaded.
func (s UserReport) Render(u *models.User) (response.File, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Account report", false)
	pdf.SetCreationDate(s.now())
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "ACCOUNT REPORT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Name       : %s", safe(u.Name, "-")),
		fmt.Sprintf("Email      : %s", safe(u.Email, "-")),
		fmt.Sprintf("Role       : %s", safe(u.Role, "-")),
		fmt.Sprintf("Member since: %s", domain.FormatTimestamp(u.CreatedAt)),
		fmt.Sprintf("Generated  : %s", domain.FormatTimestamp(s.now())),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Projects (%d)", len(u.Projects)))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	if len(u.Projects) == 0 {
		pdf.Cell(0, 6, "No projects.")
		pdf.Ln(6)
	}
	for i, p := range u.Projects {
		desc := "-"
		if p.Description != nil {
			desc = safe(*p.Description, "-")
		}
		pdf.MultiCell(0, 6, fmt.Sprintf("%d) %s, created %s", i+1, safe(p.Name, "-"), dateOnly(p.CreatedAt)), "", "", false)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, "   "+desc, "", "", false)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Ln(1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return response.File{}, err
	}
	return response.File{
		Name:        fmt.Sprintf("REPORT_%s_%s.pdf", s.now().UTC().Format("20060102"), response.SafeFilename(u.Name)),
		ContentType: pdfContentType,
		Body:        buf.Bytes(),
	}, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func dateOnly(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
