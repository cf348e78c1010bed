package storage

import "fmt"

// debugPage renders a page's header and slot directory as a compact,
// human-readable string for the CLI's print command and for test
// failure output.
func debugPage(p *Page) string {
	s := fmt.Sprintf(
		"page#%d tag=%s count=%d prev=%d next=%d lower=%d upper=%d free=%d\n",
		p.PageID(), p.Tag(), p.Count(), p.Prev(), p.Next(), p.lower(), p.upper(), p.FreeSpace(),
	)
	for i := 0; i < p.Count(); i++ {
		off, length := p.slotAt(i)
		s += fmt.Sprintf("  slot[%d] off=%d len=%d\n", i, off, length)
	}
	return s
}
