package translate

import "github.com/plabarre/agenda/internal/store"

// Overlay picks the display text for one field. The original wins when the
// requested language equals the source language or when no cached
// translation exists; the result is never empty while the original is not,
// and never a third language.
func Overlay(original, sourceLang, targetLang string, cached string) string {
	if targetLang == sourceLang {
		return original
	}
	if cached != "" {
		return cached
	}
	return original
}

// EventText resolves the title and notes to display for an event whose
// calendar language is sourceLang.
func EventText(ev *store.Event, sourceLang, targetLang string) (title, notes string) {
	var origNotes string
	if ev.Notes != nil {
		origNotes = *ev.Notes
	}
	tr := ev.Translations[targetLang]
	title = Overlay(ev.Title, sourceLang, targetLang, tr.Title)
	notes = Overlay(origNotes, sourceLang, targetLang, tr.Notes)
	return title, notes
}

// CommentText resolves a comment's content the same way.
func CommentText(c *store.Comment, sourceLang, targetLang string) string {
	return Overlay(c.Content, sourceLang, targetLang, c.Translations[targetLang].Content)
}
