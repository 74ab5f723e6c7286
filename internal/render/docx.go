package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

// DocxRenderer writes the narrative report as a WordprocessingML package.
type DocxRenderer struct {
	dates dateFormatter
}

// Format returns domain.FormatDocx.
func (DocxRenderer) Format() domain.Format { return domain.FormatDocx }

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
		`</Types>`

	docxPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`

	docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
		`</Relationships>`

	docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="60"/></w:pPr><w:rPr><w:sz w:val="22"/></w:rPr></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:after="400"/></w:pPr><w:rPr><w:b/><w:sz w:val="48"/></w:rPr></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="400" w:after="200"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="200" w:after="100"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="200" w:after="100"/><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>` +
		`</w:styles>`

	docxDocumentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	docxDocumentClose = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr></w:body></w:document>`
)

// Render emits the report outline as a .docx package. Entry times are pinned
// to the capture time so identical snapshots produce identical bytes.
func (r DocxRenderer) Render(snap domain.Snapshot) ([]byte, error) {
	document, err := docxDocument(buildOutline(snap, r.dates))
	if err != nil {
		return nil, err
	}
	parts := []struct {
		name string
		body string
	}{
		{name: "[Content_Types].xml", body: docxContentTypes},
		{name: "_rels/.rels", body: docxPackageRels},
		{name: "word/_rels/document.xml.rels", body: docxDocumentRels},
		{name: "word/styles.xml", body: docxStyles},
		{name: "word/document.xml", body: document},
	}

	modified := snap.CapturedAt.UTC()
	if modified.Before(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)) {
		modified = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: part.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("create docx part %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx package: %w", err)
	}
	return buf.Bytes(), nil
}

// docxDocument renders the outline as word/document.xml.
func docxDocument(blocks []block) (string, error) {
	var b strings.Builder
	b.WriteString(docxDocumentOpen)
	for _, blk := range blocks {
		var err error
		switch blk.kind {
		case kindTitle:
			err = docxParagraph(&b, "Title", 0, docxRun{text: blk.text})
		case kindHeading1:
			err = docxParagraph(&b, "Heading1", 0, docxRun{text: blk.text})
		case kindHeading2:
			err = docxParagraph(&b, "Heading2", 0, docxRun{text: blk.text})
		case kindHeading3:
			err = docxParagraph(&b, "Heading3", 0, docxRun{text: blk.text})
		case kindLine:
			err = docxParagraph(&b, "", 0, docxRun{text: blk.label + ": ", bold: true}, docxRun{text: blk.text})
		case kindField:
			err = docxParagraph(&b, "", 360, docxRun{text: blk.label + ": ", bold: true}, docxRun{text: blk.text})
		case kindItem:
			err = docxParagraph(&b, "", 360, docxRun{text: "• " + blk.text, bold: true})
		case kindDetail:
			err = docxParagraph(&b, "", 720, docxRun{text: blk.label + ": " + blk.text})
		case kindRule:
			b.WriteString(`<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr></w:pPr></w:p>`)
		case kindNote:
			err = docxParagraph(&b, "", 0, docxRun{text: blk.text, italic: true})
		}
		if err != nil {
			return "", fmt.Errorf("render docx paragraph: %w", err)
		}
	}
	b.WriteString(docxDocumentClose)
	return b.String(), nil
}

// docxRun is one styled text run.
type docxRun struct {
	text   string
	bold   bool
	italic bool
}

func docxParagraph(b *strings.Builder, style string, indent int, runs ...docxRun) error {
	b.WriteString("<w:p>")
	if style != "" || indent > 0 {
		b.WriteString("<w:pPr>")
		if style != "" {
			fmt.Fprintf(b, `<w:pStyle w:val="%s"/>`, style)
		}
		if indent > 0 {
			fmt.Fprintf(b, `<w:ind w:left="%d"/>`, indent)
		}
		b.WriteString("</w:pPr>")
	}
	for _, run := range runs {
		b.WriteString("<w:r>")
		if run.bold || run.italic {
			b.WriteString("<w:rPr>")
			if run.bold {
				b.WriteString("<w:b/>")
			}
			if run.italic {
				b.WriteString("<w:i/>")
			}
			b.WriteString("</w:rPr>")
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		if err := xml.EscapeText(b, []byte(run.text)); err != nil {
			return err
		}
		b.WriteString("</w:t></w:r>")
	}
	b.WriteString("</w:p>")
	return nil
}
