// Package viewer 在窗口中显示渲染好的图表
package viewer

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
)

// Show 打开窗口显示图片，阻塞直到窗口关闭
func Show(title string, img image.Image, width, height float32) {
	a := app.New()
	w := a.NewWindow(title)

	chart := canvas.NewImageFromImage(img)
	chart.FillMode = canvas.ImageFillContain
	chart.SetMinSize(fyne.NewSize(width/2, height/2))

	w.SetContent(chart)
	w.Resize(fyne.NewSize(width, height))
	w.ShowAndRun()
}
