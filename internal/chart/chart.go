package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"voicekeeper/internal/history"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	imgWidth  = 900
	imgHeight = 420

	marginLeft   = 56
	marginRight  = 56
	marginTop    = 48
	marginBottom = 64
)

var (
	colorBackground = color.RGBA{0x1E, 0x22, 0x28, 0xFF}
	colorAxis       = color.RGBA{0x88, 0x8E, 0x99, 0xFF}
	colorBar        = color.RGBA{0x3E, 0x92, 0xCC, 0xFF}
	colorVoice      = color.RGBA{0xF2, 0xA6, 0x54, 0xFF}
	colorTrend      = color.RGBA{0x2E, 0xCC, 0x71, 0xFF}
	colorText       = color.RGBA{0xE6, 0xE9, 0xEF, 0xFF}
)

// Render draws the daily report chart for a trailing window of rows:
// unique-user bars, a voice-hours line on its own scale, the fitted
// trend line, and a summary caption. It returns encoded PNG bytes.
func Render(title string, rows []history.Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to plot")
	}

	img := image.NewRGBA(image.Rect(0, 0, imgWidth, imgHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	plot := image.Rect(marginLeft, marginTop, imgWidth-marginRight, imgHeight-marginBottom)

	maxUsers := 1
	maxHours := 1.0
	for _, row := range rows {
		if row.UniqueUsers > maxUsers {
			maxUsers = row.UniqueUsers
		}
		hours := float64(row.VoiceMinutes) / 60
		if hours > maxHours {
			maxHours = hours
		}
	}

	drawAxes(img, plot)

	slot := float64(plot.Dx()) / float64(len(rows))
	barWidth := int(slot * 0.7)
	if barWidth < 1 {
		barWidth = 1
	}

	yForUsers := func(v float64) int {
		return plot.Max.Y - int(v/float64(maxUsers)*float64(plot.Dy()))
	}
	yForHours := func(v float64) int {
		return plot.Max.Y - int(v/maxHours*float64(plot.Dy()))
	}
	xForIndex := func(i int) int {
		return plot.Min.X + int(slot*float64(i)+slot/2)
	}

	for i, row := range rows {
		cx := xForIndex(i)
		top := yForUsers(float64(row.UniqueUsers))
		fillRect(img, image.Rect(cx-barWidth/2, top, cx+barWidth/2+1, plot.Max.Y), colorBar)
	}

	for i := 1; i < len(rows); i++ {
		drawLine(img,
			xForIndex(i-1), yForHours(float64(rows[i-1].VoiceMinutes)/60),
			xForIndex(i), yForHours(float64(rows[i].VoiceMinutes)/60),
			colorVoice)
	}

	trend := history.FitTrend(rows)
	drawLine(img,
		xForIndex(0), clampY(plot, yForUsers(trend.At(0))),
		xForIndex(len(rows)-1), clampY(plot, yForUsers(trend.At(float64(len(rows)-1)))),
		colorTrend)

	stats := history.Summarize(rows)
	drawString(img, marginLeft, marginTop-24, title, colorText)
	caption := fmt.Sprintf("mean %.1f  median %.1f  stddev %.1f  max %d on %s",
		stats.Mean, stats.Median, stats.StdDev, stats.Max, stats.MaxDate.Format(history.DateLayout))
	drawString(img, marginLeft, imgHeight-marginBottom+24, caption, colorText)
	drawString(img, marginLeft, imgHeight-marginBottom+40,
		fmt.Sprintf("%s .. %s  (users: bars, voice hours: line, trend: green)",
			rows[0].Date.Format(history.DateLayout),
			rows[len(rows)-1].Date.Format(history.DateLayout)),
		colorAxis)
	drawString(img, 4, marginTop+8, fmt.Sprintf("%d", maxUsers), colorAxis)
	drawString(img, imgWidth-marginRight+4, marginTop+8, fmt.Sprintf("%.0fh", maxHours), colorAxis)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawAxes(img *image.RGBA, plot image.Rectangle) {
	drawLine(img, plot.Min.X, plot.Min.Y, plot.Min.X, plot.Max.Y, colorAxis)
	drawLine(img, plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y, colorAxis)
	drawLine(img, plot.Max.X, plot.Min.Y, plot.Max.X, plot.Max.Y, colorAxis)
}

func clampY(plot image.Rectangle, y int) int {
	if y < plot.Min.Y {
		return plot.Min.Y
	}
	if y > plot.Max.Y {
		return plot.Max.Y
	}
	return y
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawLine is a plain Bresenham segment.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawString(img *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
