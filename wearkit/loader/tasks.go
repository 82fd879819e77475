package loader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Question types used in questionnaire definitions.
const (
	QuestionTypeRadio       = "radio"
	QuestionTypeMultiSelect = "multi_select"
	QuestionTypeText        = "text"
)

var optionColRe = regexp.MustCompile(`option\d+Name`)

// Question describes one questionnaire question from the answer key
// block of a questionnaire export.
type Question struct {
	ID          string // "<sectionIndex>_<questionIndex>"
	Type        string
	Description string
	Options     []string // empty for free-text questions
}

// LoadQuestionnaire reads one questionnaire's responses over [start, end].
func (l *Loader) LoadQuestionnaire(user, name string, start, end *time.Time) (*series.Table, error) {
	return l.Load(user, MetricQuestionnaire, name, start, end)
}

// LoadTodo reads one todo's completion records over [start, end].
func (l *Loader) LoadTodo(user, name string, start, end *time.Time) (*series.Table, error) {
	return l.Load(user, MetricTodo, name, start, end)
}

// TaskRepeats reports whether a questionnaire or todo is scheduled to
// repeat, from the taskScheduleRepeat column of the user's export.
func (l *Loader) TaskRepeats(user, folder, name string) (bool, error) {
	table, err := l.Load(user, folder, name, nil, nil)
	if err != nil {
		return false, err
	}
	if table.Len() == 0 {
		return false, fmt.Errorf("%w: task %q: no records", ErrUnknownTask, name)
	}
	if !table.HasColumn(ColTaskScheduleRepeat) {
		return false, fmt.Errorf("%w: task %q: no schedule column", ErrMalformedHeader, name)
	}
	return table.Value(0, ColTaskScheduleRepeat) == "true", nil
}

// QuestionnaireQuestions reads the question definitions of one
// questionnaire from the answer key block of its first export file.
func (l *Loader) QuestionnaireQuestions(user, name string) (map[string]Question, error) {
	reg, idx := l.snapshot()
	p, err := reg.Resolve(user)
	if err != nil {
		return nil, err
	}
	taskID, ok := resolveTaskID(idx, p.FullID, MetricQuestionnaire, name)
	if !ok {
		return nil, fmt.Errorf("%w: questionnaire %q", ErrUnknownTask, name)
	}
	files := idx.Files(p.FullID, MetricQuestionnaire, taskID)
	if len(files) == 0 {
		return map[string]Question{}, nil
	}
	spans := sortedSpans(files)
	path := filepath.Join(l.root, p.FullID, MetricQuestionnaire, taskID, spans[0].name)

	headerLen, err := headerLength(path)
	if err != nil {
		return nil, err
	}
	keyLen, ok, err := keyLength(path, headerLen)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s: no answer key block", ErrMalformedHeader, path)
	}
	header, rows, err := readKeyRecords(path, headerLen, keyLen)
	if err != nil {
		return nil, err
	}

	colIdx := make(map[string]int, len(header))
	var optionCols []int
	for i, col := range header {
		colIdx[col] = i
		if optionColRe.MatchString(col) {
			optionCols = append(optionCols, i)
		}
	}
	sort.Ints(optionCols)

	cell := func(row []string, col string) string {
		if i, ok := colIdx[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	questions := make(map[string]Question, len(rows))
	for _, row := range rows {
		q := Question{
			ID:          cell(row, ColSectionIndex) + "_" + cell(row, ColQuestionIndex),
			Type:        cell(row, ColQuestionType),
			Description: cell(row, ColQuestionDescription),
		}
		if q.Type != QuestionTypeText {
			for _, i := range optionCols {
				if i < len(row) && row[i] != "" {
					q.Options = append(q.Options, row[i])
				}
			}
		}
		questions[q.ID] = q
	}
	return questions, nil
}
