package services

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/futuretek/lms-service/internal/models"
)

// ===== PER-TYPE SCORING =====

// scoreAnswer returns the points earned for one answer. Unanswered questions
// score zero; wrong answers cost the question's negative points, never more.
func (s *gradingService) scoreAnswer(question *models.Question, answer *models.StudentAnswer) (float64, bool) {
	if !answer.HasContent() {
		return 0, false
	}

	raw := json.RawMessage(answer.Answer)
	switch question.Type {
	case models.MultipleChoice:
		return s.scoreMultipleChoice(question, raw)
	case models.TrueFalse:
		return s.scoreTrueFalse(question, raw)
	case models.ShortAnswer:
		return s.scoreShortAnswer(question, raw)
	default:
		return 0, false
	}
}

// scoreMultipleChoice matches selections against correct option IDs. Option
// text never participates in the comparison.
func (s *gradingService) scoreMultipleChoice(question *models.Question, raw json.RawMessage) (float64, bool) {
	var content models.MultipleChoiceContent
	if err := json.Unmarshal(question.Content, &content); err != nil {
		s.logger.Error("Failed to unmarshal multiple choice content",
			"question_id", question.ID, "error", err)
		return 0, false
	}

	selected := decodeSelectedOptions(raw)
	if len(selected) == 0 {
		return 0, false
	}

	correctSet := make(map[string]bool, len(content.CorrectOptionIDs))
	for _, id := range content.CorrectOptionIDs {
		correctSet[id] = true
	}

	selectedSet := make(map[string]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
	}

	exactMatch := len(selectedSet) == len(correctSet)
	if exactMatch {
		for id := range correctSet {
			if !selectedSet[id] {
				exactMatch = false
				break
			}
		}
	}
	if exactMatch {
		return float64(question.Points), true
	}

	if content.MultipleCorrect && content.PartialCredit && len(correctSet) > 0 {
		correct := 0
		wrong := 0
		for id := range selectedSet {
			if correctSet[id] {
				correct++
			} else {
				wrong++
			}
		}

		ratio := float64(correct-wrong) / float64(len(correctSet))
		if ratio > 0 {
			return ratio * float64(question.Points), false
		}
		return s.wrongAnswerScore(question), false
	}

	return s.wrongAnswerScore(question), false
}

func (s *gradingService) scoreTrueFalse(question *models.Question, raw json.RawMessage) (float64, bool) {
	var content models.TrueFalseContent
	if err := json.Unmarshal(question.Content, &content); err != nil {
		s.logger.Error("Failed to unmarshal true/false content",
			"question_id", question.ID, "error", err)
		return 0, false
	}

	var given bool
	if err := json.Unmarshal(raw, &given); err != nil {
		return 0, false
	}

	if given == content.CorrectAnswer {
		return float64(question.Points), true
	}
	return s.wrongAnswerScore(question), false
}

func (s *gradingService) scoreShortAnswer(question *models.Question, raw json.RawMessage) (float64, bool) {
	var content models.ShortAnswerContent
	if err := json.Unmarshal(question.Content, &content); err != nil {
		s.logger.Error("Failed to unmarshal short answer content",
			"question_id", question.ID, "error", err)
		return 0, false
	}

	var given string
	if err := json.Unmarshal(raw, &given); err != nil {
		return 0, false
	}

	for _, accepted := range content.AcceptedAnswers {
		if compareAnswerStrings(given, accepted, content.CaseSensitive) {
			return float64(question.Points), true
		}
	}

	if content.FuzzyMatching {
		best := 0.0
		for _, accepted := range content.AcceptedAnswers {
			if sim := stringSimilarity(given, accepted); sim > best {
				best = sim
			}
		}
		if best >= 0.8 {
			return best * float64(question.Points), false
		}
	}

	return s.wrongAnswerScore(question), false
}

// wrongAnswerScore applies negative marking. The deduction is capped at the
// question's configured negative points.
func (s *gradingService) wrongAnswerScore(question *models.Question) float64 {
	if question.NegativePoints <= 0 {
		return 0
	}
	return -float64(question.NegativePoints)
}

// ===== STRING MATCHING =====

func decodeSelectedOptions(raw json.RawMessage) []string {
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}

	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

func compareAnswerStrings(a, b string, caseSensitive bool) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return a == b
}

// stringSimilarity is Levenshtein similarity normalized to [0, 1].
func stringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}

	maxLen := math.Max(float64(len(a)), float64(len(b)))
	if maxLen == 0 {
		return 1.0
	}

	return 1.0 - float64(levenshteinDistance(a, b))/maxLen
}

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
