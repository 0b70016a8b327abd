// Package report renders printable campaign sheets.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/udisondev/skirmish/internal/game/story"
)

const (
	pageW    = 842 // A4 landscape, pt
	pageH    = 595
	margin   = 40
	boxW     = 110.0
	boxH     = 44.0
	headerH  = 60.0
	footerH  = 70.0
	fontSize = 8
)

type rgb struct{ r, g, b int }

var statusColor = map[story.Status]rgb{
	story.StatusLocked:    {200, 200, 200},
	story.StatusAvailable: {250, 220, 120},
	story.StatusCompleted: {140, 200, 140},
}

var kindLabel = map[story.StageKind]string{
	story.KindBattle:  "Battle",
	story.KindChoice:  "Choice",
	story.KindRecruit: "Recruit",
}

// CampaignSheet draws the visible stages at their map positions, coloured by
// status, with requirement edges, a legend and the current roster.
func CampaignSheet(c *story.Campaign, p story.Progress) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("campaign is nil")
	}
	nodes := story.NewEngine(c).MapView(p)

	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetTitle(c.Title, true)

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(margin, margin)
	pdf.CellFormat(pageW-2*margin, 20, c.Title, "", 1, "L", false, 0, "")
	if c.Description != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetX(margin)
		pdf.CellFormat(pageW-2*margin, 12, truncate(c.Description, 140), "", 1, "L", false, 0, "")
	}

	pos := layout(nodes)

	// requirement edges under the boxes
	pdf.SetDrawColor(90, 90, 90)
	pdf.SetLineWidth(1)
	for _, n := range nodes {
		to := pos[n.ID]
		for _, req := range n.Edges {
			from, ok := pos[req]
			if !ok {
				continue
			}
			pdf.Line(from[0]+boxW, from[1]+boxH/2, to[0], to[1]+boxH/2)
		}
	}

	for _, n := range nodes {
		xy := pos[n.ID]
		col := statusColor[n.Status]
		pdf.SetFillColor(col.r, col.g, col.b)
		pdf.SetDrawColor(40, 40, 40)
		pdf.Rect(xy[0], xy[1], boxW, boxH, "FD")

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetXY(xy[0]+4, xy[1]+4)
		pdf.CellFormat(boxW-8, 12, truncate(n.Title, 22), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", fontSize)
		pdf.SetXY(xy[0]+4, xy[1]+18)
		pdf.CellFormat(boxW-8, 10, kindLabel[n.Kind]+" | "+string(n.Status), "", 0, "L", false, 0, "")
		if n.Choice != "" {
			pdf.SetFont("Helvetica", "I", fontSize)
			pdf.SetXY(xy[0]+4, xy[1]+30)
			pdf.CellFormat(boxW-8, 10, "chose: "+truncate(n.Choice, 16), "", 0, "L", false, 0, "")
		}
	}

	drawLegend(pdf)
	drawRoster(pdf, p.Roster)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering campaign sheet: %w", err)
	}
	return buf.Bytes(), nil
}

// layout maps abstract stage positions onto the drawing area.
func layout(nodes []story.MapNode) map[string][2]float64 {
	var maxX, maxY float64
	for _, n := range nodes {
		maxX = max(maxX, n.Position.X)
		maxY = max(maxY, n.Position.Y)
	}
	areaW := pageW - 2*margin - boxW
	areaH := pageH - 2*margin - headerH - footerH - boxH
	scaleX, scaleY := areaW, areaH
	if maxX > 0 {
		scaleX = areaW / maxX
	}
	if maxY > 0 {
		scaleY = areaH / maxY
	}

	out := make(map[string][2]float64, len(nodes))
	for _, n := range nodes {
		out[n.ID] = [2]float64{
			margin + n.Position.X*scaleX,
			margin + headerH + n.Position.Y*scaleY,
		}
	}
	return out
}

func drawLegend(pdf *gofpdf.Fpdf) {
	y := float64(pageH - margin - 14)
	x := float64(margin)
	pdf.SetFont("Helvetica", "", fontSize)
	for _, st := range []story.Status{story.StatusCompleted, story.StatusAvailable, story.StatusLocked} {
		col := statusColor[st]
		pdf.SetFillColor(col.r, col.g, col.b)
		pdf.Rect(x, y, 12, 10, "FD")
		pdf.SetXY(x+16, y)
		pdf.CellFormat(70, 10, string(st), "", 0, "L", false, 0, "")
		x += 90
	}
}

func drawRoster(pdf *gofpdf.Fpdf, roster []string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(margin, pageH-margin-footerH+20)
	pdf.CellFormat(60, 12, "Roster:", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(pageW-2*margin-60, 12, truncate(strings.Join(roster, ", "), 120), "", 0, "L", false, 0, "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
