package httpapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/godilite/workforce-server/internal/service"
)

// Request payloads tolerate the loose wire shapes older clients send:
// alternate field names (name/workerName, historyEntries/history,
// note/notes, background/backgroundInfo) and numbers encoded as strings.
// Everything is resolved here; the service only ever sees typed inputs.

// parseNumber accepts a JSON number or a numeric string; nil otherwise.
func parseNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &v
		}
	}
	return nil
}

func parseID(raw json.RawMessage) int64 {
	n := parseNumber(raw)
	if n == nil {
		return 0
	}
	return int64(*n)
}

func firstRaw(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if len(c) > 0 && !bytes.Equal(c, []byte("null")) {
			return c
		}
	}
	return nil
}

type criterionPayload struct {
	Criterion string          `json:"criterion"`
	Score     json.RawMessage `json:"score"`
}

func parseCriteria(raw json.RawMessage) ([]service.SelectedCriterion, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	var entries []criterionPayload
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	out := make([]service.SelectedCriterion, 0, len(entries))
	for _, e := range entries {
		score := 0.0
		if n := parseNumber(e.Score); n != nil {
			score = *n
		}
		out = append(out, service.SelectedCriterion{Criterion: e.Criterion, Score: score})
	}
	return out, true
}

type historyEntryPayload struct {
	Category  string          `json:"category"`
	Score     json.RawMessage `json:"score"`
	Note      string          `json:"note"`
	CreatedAt string          `json:"createdAt"`
}

func parseHistory(raw json.RawMessage) ([]service.HistoryEntryInput, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	var entries []historyEntryPayload
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	out := make([]service.HistoryEntryInput, 0, len(entries))
	for _, e := range entries {
		out = append(out, service.HistoryEntryInput{
			Category:  e.Category,
			Score:     parseNumber(e.Score),
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, true
}

type notePayload struct {
	Note      string `json:"note"`
	CreatedAt string `json:"createdAt"`
}

func parseNotes(raw json.RawMessage) ([]service.ProfileNoteInput, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	var entries []notePayload
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	out := make([]service.ProfileNoteInput, 0, len(entries))
	for _, e := range entries {
		out = append(out, service.ProfileNoteInput{Note: e.Note, CreatedAt: e.CreatedAt})
	}
	return out, true
}

type ratingPayload struct {
	WorkerName         string          `json:"workerName"`
	Name               string          `json:"name"`
	ExternalEmployeeID string          `json:"externalEmployeeId"`
	Category           string          `json:"category"`
	Score              json.RawMessage `json:"score"`
	Reviewer           string          `json:"reviewer"`
	Note               string          `json:"note"`
	RatedAt            string          `json:"ratedAt"`
	SelectedCriteria   json.RawMessage `json:"selectedCriteria"`
}

func (p ratingPayload) workerName() string {
	if strings.TrimSpace(p.WorkerName) != "" {
		return p.WorkerName
	}
	return p.Name
}

func (p ratingPayload) toSubmission() (service.RatingSubmission, string) {
	criteria, ok := parseCriteria(p.SelectedCriteria)
	if !ok {
		return service.RatingSubmission{}, "selectedCriteria must be an array when provided"
	}
	return service.RatingSubmission{
		WorkerName:         p.workerName(),
		ExternalEmployeeID: p.ExternalEmployeeID,
		Category:           p.Category,
		Score:              parseNumber(p.Score),
		Reviewer:           p.Reviewer,
		Note:               p.Note,
		RatedAt:            p.RatedAt,
		SelectedCriteria:   criteria,
	}, ""
}

type profilePayload struct {
	Name               string          `json:"name"`
	WorkerName         string          `json:"workerName"`
	ExternalEmployeeID string          `json:"externalEmployeeId"`
	Status             string          `json:"status"`
	Background         string          `json:"background"`
	BackgroundInfo     string          `json:"backgroundInfo"`
	HistoryEntries     json.RawMessage `json:"historyEntries"`
	History            json.RawMessage `json:"history"`
	ProfileNotes       json.RawMessage `json:"profileNotes"`
	NotesTimeline      json.RawMessage `json:"notesTimeline"`
}

func (p profilePayload) toInput() (service.ProfileInput, string) {
	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = p.WorkerName
	}
	background := p.Background
	if strings.TrimSpace(background) == "" {
		background = p.BackgroundInfo
	}

	history, ok := parseHistory(firstRaw(p.HistoryEntries, p.History))
	if !ok {
		return service.ProfileInput{}, "historyEntries must be an array"
	}
	notes, ok := parseNotes(firstRaw(p.ProfileNotes, p.NotesTimeline))
	if !ok {
		return service.ProfileInput{}, "profileNotes must be an array"
	}

	return service.ProfileInput{
		Name:               name,
		ExternalEmployeeID: p.ExternalEmployeeID,
		Status:             p.Status,
		Background:         background,
		History:            history,
		Notes:              notes,
	}, ""
}

type updatePayload struct {
	Name               *string         `json:"name"`
	ExternalEmployeeID json.RawMessage `json:"externalEmployeeId"`
	Category           *string         `json:"category"`
	Score              json.RawMessage `json:"score"`
	Reviewer           *string         `json:"reviewer"`
	Note               *string         `json:"note"`
	Notes              *string         `json:"notes"`
	Status             *string         `json:"status"`
	Background         *string         `json:"background"`
	BackgroundInfo     *string         `json:"backgroundInfo"`
	RatedAt            *string         `json:"ratedAt"`
	LogRating          bool            `json:"logRating"`
	HistoryEntries     json.RawMessage `json:"historyEntries"`
	History            json.RawMessage `json:"history"`
	ProfileNotes       json.RawMessage `json:"profileNotes"`
	NotesTimeline      json.RawMessage `json:"notesTimeline"`
	SelectedCriteria   json.RawMessage `json:"selectedCriteria"`
}

// parseEmployeeID keeps the stored value when the field is omitted and
// clears it on an explicit null. Numeric ids are accepted as strings.
func parseEmployeeID(raw json.RawMessage) (*string, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	if bytes.Equal(raw, []byte("null")) {
		empty := ""
		return &empty, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		v := strconv.FormatFloat(n, 'f', -1, 64)
		return &v, true
	}
	return nil, false
}

func (p updatePayload) toInput() (service.ProfileUpdateInput, string) {
	note := p.Note
	if note == nil {
		note = p.Notes
	}
	background := p.Background
	if background == nil {
		background = p.BackgroundInfo
	}

	history, ok := parseHistory(firstRaw(p.HistoryEntries, p.History))
	if !ok {
		return service.ProfileUpdateInput{}, "historyEntries must be an array"
	}
	notes, ok := parseNotes(firstRaw(p.ProfileNotes, p.NotesTimeline))
	if !ok {
		return service.ProfileUpdateInput{}, "profileNotes must be an array"
	}
	criteria, ok := parseCriteria(p.SelectedCriteria)
	if !ok {
		return service.ProfileUpdateInput{}, "selectedCriteria must be an array when provided"
	}

	employeeID, ok := parseEmployeeID(p.ExternalEmployeeID)
	if !ok {
		return service.ProfileUpdateInput{}, "externalEmployeeId must be a string"
	}

	var score *float64
	if len(p.Score) > 0 && !bytes.Equal(p.Score, []byte("null")) {
		score = parseNumber(p.Score)
		if score == nil {
			return service.ProfileUpdateInput{}, "score must be a number between -5 and 5"
		}
	}

	return service.ProfileUpdateInput{
		Name:               p.Name,
		ExternalEmployeeID: employeeID,
		Category:           p.Category,
		Score:              score,
		Reviewer:           p.Reviewer,
		Note:               note,
		Status:             p.Status,
		Background:         background,
		RatedAt:            p.RatedAt,
		LogRating:          p.LogRating,
		History:            history,
		Notes:              notes,
		SelectedCriteria:   criteria,
	}, ""
}

type mergePayload struct {
	SourceProfileID json.RawMessage `json:"sourceProfileId"`
	TargetProfileID json.RawMessage `json:"targetProfileId"`
}

type catalogPayload struct {
	JobTypes      json.RawMessage `json:"jobTypes"`
	CriteriaNames json.RawMessage `json:"criteriaNames"`
}

type settingPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}
