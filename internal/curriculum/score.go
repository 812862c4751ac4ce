package curriculum

// Answer is a learner's selection for one question.
type Answer struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
}

// QuestionResult reports per-question correctness.
type QuestionResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
}

// QuizResult is the outcome of scoring a submission.
type QuizResult struct {
	Score   int              `json:"score"`
	Total   int              `json:"total"`
	Results []QuestionResult `json:"results"`
}

// ScoreQuiz scores a submission against a quiz. An answer is correct iff its
// selected option exists on the referenced question and is flagged correct.
// Answers naming unknown questions score as incorrect. Total is the number
// of questions in the quiz, not the number of answers.
func ScoreQuiz(quiz Quiz, answers []Answer) QuizResult {
	byID := make(map[string]Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		byID[q.ID] = q
	}

	result := QuizResult{
		Total:   len(quiz.Questions),
		Results: make([]QuestionResult, 0, len(answers)),
	}
	for _, ans := range answers {
		correct := false
		if q, ok := byID[ans.QuestionID]; ok {
			for _, opt := range q.Options {
				if opt.ID == ans.SelectedOptionID && opt.Correct {
					correct = true
					result.Score++
					break
				}
			}
		}
		result.Results = append(result.Results, QuestionResult{
			QuestionID: ans.QuestionID,
			Correct:    correct,
		})
	}
	return result
}
