// Package pdf renders consultation documents.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

type Prescription struct {
	DoctorName   string
	Speciality   string
	DoctorPhone  string
	PatientName  string
	PatientAge   string
	Date         string
	Diagnosis    string
	Prescription string
	Reference    string
}

// RenderPrescription lays out a one page A4 prescription.
func RenderPrescription(p Prescription) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(15, 15, 15)
	doc.SetTitle("Ordonnance "+p.Reference, true)
	doc.SetCreator("FamaLink", true)
	doc.AddPage()

	// The core fonts are cp1252; this translator keeps French accents.
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Arial", "B", 16)
	doc.SetTextColor(30, 64, 175)
	doc.CellFormat(0, 10, "FamaLink", "", 1, "L", false, 0, "")

	doc.SetTextColor(0, 0, 0)
	doc.SetFont("Arial", "B", 12)
	doc.CellFormat(0, 7, tr(p.DoctorName), "", 1, "L", false, 0, "")
	doc.SetFont("Arial", "", 10)
	if p.Speciality != "" {
		doc.CellFormat(0, 6, tr(p.Speciality), "", 1, "L", false, 0, "")
	}
	if p.DoctorPhone != "" {
		doc.CellFormat(0, 6, tr("Tél. "+p.DoctorPhone), "", 1, "L", false, 0, "")
	}

	doc.Ln(6)
	doc.SetFont("Arial", "B", 14)
	doc.CellFormat(0, 10, "ORDONNANCE", "TB", 1, "C", false, 0, "")
	doc.Ln(4)

	addDetail(doc, tr("Patient"), tr(p.PatientName))
	if p.PatientAge != "" {
		addDetail(doc, tr("Âge"), tr(p.PatientAge))
	}
	addDetail(doc, tr("Date"), tr(p.Date))
	if p.Diagnosis != "" {
		addDetail(doc, tr("Diagnostic"), tr(p.Diagnosis))
	}

	doc.Ln(6)
	doc.SetFont("Arial", "B", 12)
	doc.CellFormat(0, 8, "Prescription", "", 1, "L", false, 0, "")
	doc.SetFont("Arial", "", 11)
	body := p.Prescription
	if body == "" {
		body = "-"
	}
	doc.MultiCell(0, 6, tr(body), "", "L", false)

	doc.SetY(-40)
	doc.SetFont("Arial", "I", 9)
	doc.CellFormat(0, 6, tr(fmt.Sprintf("Réf. %s", p.Reference)), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, tr("Signature du médecin"), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render prescription: %w", err)
	}
	return buf.Bytes(), nil
}

func addDetail(doc *gofpdf.Fpdf, label, value string) {
	doc.SetFont("Arial", "B", 11)
	doc.CellFormat(35, 8, label, "", 0, "", false, 0, "")
	doc.SetFont("Arial", "", 11)
	doc.MultiCell(0, 8, value, "", "L", false)
}
