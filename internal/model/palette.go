package model

import "github.com/google/uuid"

// PaletteStatus is the derived navigation state of one question. It is a
// pure function of the answer record, never stored.
type PaletteStatus string

const (
	PaletteAnswered         PaletteStatus = "answered"
	PaletteAnsweredReviewed PaletteStatus = "answered+reviewed"
	PaletteReviewedOnly     PaletteStatus = "reviewed-only"
	PaletteUnanswered       PaletteStatus = "unanswered"
)

// PaletteEntry is one cell of the navigation palette.
type PaletteEntry struct {
	QuestionID uuid.UUID     `json:"question_id"`
	Status     PaletteStatus `json:"status"`
}

// PaletteStatusOf derives the palette status of a single answer record.
func PaletteStatusOf(rec *AnswerRecord) PaletteStatus {
	answered := rec.SelectedOptionID != nil && *rec.SelectedOptionID != ""
	switch {
	case answered && rec.MarkedForReview:
		return PaletteAnsweredReviewed
	case answered:
		return PaletteAnswered
	case rec.MarkedForReview:
		return PaletteReviewedOnly
	default:
		return PaletteUnanswered
	}
}

// BuildPalette derives the palette in snapshot question order. Records are
// matched by question ID; a missing record (which the schema should make
// impossible) renders as unanswered.
func BuildPalette(questionIDs []uuid.UUID, records []AnswerRecord) []PaletteEntry {
	byQuestion := make(map[uuid.UUID]*AnswerRecord, len(records))
	for i := range records {
		byQuestion[records[i].QuestionID] = &records[i]
	}

	palette := make([]PaletteEntry, 0, len(questionIDs))
	for _, qid := range questionIDs {
		entry := PaletteEntry{QuestionID: qid, Status: PaletteUnanswered}
		if rec, ok := byQuestion[qid]; ok {
			entry.Status = PaletteStatusOf(rec)
		}
		palette = append(palette, entry)
	}
	return palette
}
