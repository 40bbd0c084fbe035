package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPagesNumbersFromOne(t *testing.T) {
	xhtml := `<html><body>` +
		`<div class="page"><p>corrosion at KP 12.4</p></div>` +
		`<div class="page"><p>freespan exceeding limit</p></div>` +
		`</body></html>`

	pages := splitPages(xhtml)
	assert.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "corrosion at KP 12.4", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "freespan exceeding limit", pages[1].Text)
}

func TestSplitPagesSkipsEmptyPages(t *testing.T) {
	xhtml := `<div class="page"><p>finding</p></div><div class="page">  </div>`

	pages := splitPages(xhtml)
	assert.Len(t, pages, 1)
	assert.Equal(t, "finding", pages[0].Text)
}

func TestSplitPagesWithoutPageDivs(t *testing.T) {
	pages := splitPages("<html><body><p>single blob</p></body></html>")
	assert.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "single blob", pages[0].Text)
}

func TestStripTagsUnescapesEntities(t *testing.T) {
	got := stripTags("<p>wall loss &gt; 20% &amp; growing</p>")
	assert.Equal(t, "wall loss > 20% & growing", got)
}

func TestStripTagsKeepsLineStructure(t *testing.T) {
	got := stripTags("<p>first</p><p>second</p>")
	assert.Equal(t, "first\nsecond", got)
}
