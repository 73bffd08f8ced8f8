package client

// DisplayText picks the text to show for one field: the original when the
// requested language is the source language or no translation is available,
// the translation otherwise. The result is never a third language and never
// empty while the original is not.
func DisplayText(original, sourceLang, targetLang, translated string) string {
	if targetLang == sourceLang || translated == "" {
		return original
	}
	return translated
}

// DisplayEvent resolves an event's title and notes for display in targetLang,
// given a fetched translation (nil when none was requested or available).
func DisplayEvent(ev *Event, sourceLang, targetLang string, tr *Translation) (title, notes string) {
	var origNotes string
	if ev.Notes != nil {
		origNotes = *ev.Notes
	}
	var trTitle, trNotes string
	if tr != nil && tr.Language == targetLang {
		trTitle = tr.Title
		trNotes = tr.Notes
	}
	title = DisplayText(ev.Title, sourceLang, targetLang, trTitle)
	notes = DisplayText(origNotes, sourceLang, targetLang, trNotes)
	return title, notes
}
