package output

import (
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// renderPDF 把 Markdown 渲染为 PDF：解析为语法树后逐块绘制，
// 标题、列表项和段落分别处理，其余节点按纯文本展开。
func renderPDF(md []byte, outPath string) error {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse(md, p)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Heading:
			size := 16.0
			if n.Level == 2 {
				size = 13
			} else if n.Level > 2 {
				size = 12
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, 8, translate(collectText(node)), "", "L", false)
			pdf.Ln(2)
			return ast.SkipChildren
		case *ast.ListItem:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, translate("- "+collectText(node)), "", "L", false)
			return ast.SkipChildren
		case *ast.Paragraph:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, translate(collectText(node)), "", "L", false)
			pdf.Ln(2)
			return ast.SkipChildren
		case *ast.HorizontalRule:
			pdf.Ln(2)
			x, y := pdf.GetXY()
			width, _ := pdf.GetPageSize()
			pdf.Line(x, y, width-18, y)
			pdf.Ln(4)
		}
		return ast.GoToNext
	})

	return pdf.OutputFileAndClose(outPath)
}

// collectText 展开一个节点子树内的全部文字内容。
func collectText(node ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch leaf := n.(type) {
		case *ast.Text:
			b.Write(leaf.Literal)
		case *ast.Code:
			b.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}
