// Package questionnaire decodes questionnaire exports into structured
// responses: raw answer cells hold 1-based option indices, which are
// resolved against the question catalog of the export's answer key.
package questionnaire

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Source is the loader surface the questionnaire queries need.
// *loader.Loader satisfies it.
type Source interface {
	FullIDs() []string
	LoadQuestionnaire(user, name string, start, end *time.Time) (*series.Table, error)
	QuestionnaireQuestions(user, name string) (map[string]loader.Question, error)
}

// Answer is one decoded answer to one question.
type Answer struct {
	Question loader.Question
	Text     string   // radio choice or free text
	Selected []string // chosen options of a multi-select
}

// Response is one questionnaire submission.
type Response struct {
	User      string
	Timestamp time.Time
	Answers   map[string]Answer // keyed by question id
}

// Questions returns the questionnaire's question catalog, sorted by
// question id. The answer key is identical across participants, so the
// first readable export wins.
func Questions(src Source, name string) ([]loader.Question, error) {
	catalog, err := catalog(src, name)
	if err != nil {
		return nil, err
	}
	out := make([]loader.Question, 0, len(catalog))
	for _, q := range catalog {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func catalog(src Source, name string) (map[string]loader.Question, error) {
	var lastErr error
	for _, id := range src.FullIDs() {
		questions, err := src.QuestionnaireQuestions(id, name)
		if err != nil {
			lastErr = err
			continue
		}
		if len(questions) > 0 {
			return questions, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("questionnaire %q: %w", name, lastErr)
	}
	return nil, fmt.Errorf("questionnaire %q: no answer key found", name)
}

// Responses decodes every participant's submissions of one
// questionnaire. Participants without the questionnaire are skipped;
// the remaining rows keep per-user file order, which is chronological.
func Responses(src Source, name string, start, end *time.Time) ([]Response, error) {
	questions, err := catalog(src, name)
	if err != nil {
		return nil, err
	}
	var out []Response
	for _, id := range src.FullIDs() {
		table, err := src.LoadQuestionnaire(id, name, start, end)
		if err != nil {
			continue
		}
		for i := 0; i < table.Len(); i++ {
			resp := Response{
				User:      id,
				Timestamp: table.Time(i),
				Answers:   make(map[string]Answer, len(questions)),
			}
			for qid, q := range questions {
				if !table.HasColumn(qid) {
					continue
				}
				resp.Answers[qid] = decode(q, table.Value(i, qid))
			}
			out = append(out, resp)
		}
	}
	return out, nil
}

// decode resolves one raw answer cell against its question
// definition.
func decode(q loader.Question, cell string) Answer {
	a := Answer{Question: q}
	switch q.Type {
	case loader.QuestionTypeRadio:
		if text, ok := option(q, cell); ok {
			a.Text = text
		}
	case loader.QuestionTypeMultiSelect:
		for _, part := range strings.Split(cell, ",") {
			if text, ok := option(q, strings.TrimSpace(part)); ok {
				a.Selected = append(a.Selected, text)
			}
		}
	default:
		a.Text = cell
	}
	return a
}

// option maps a 1-based option index to its text.
func option(q loader.Question, cell string) (string, bool) {
	idx, err := strconv.Atoi(cell)
	if err != nil || idx < 1 || idx > len(q.Options) {
		return "", false
	}
	return q.Options[idx-1], true
}
