package curriculum

import "testing"

func sampleQuiz() Quiz {
	return Quiz{
		ID:        "quiz-1",
		ConceptID: "caching-basics",
		Questions: []Question{
			{ID: "q1", Text: "What does a cache reduce?", Options: []Option{
				{ID: "a", Text: "Latency", Correct: true},
				{ID: "b", Text: "Correctness"},
			}},
			{ID: "q2", Text: "What is a cache stampede?", Options: []Option{
				{ID: "a", Text: "A DDoS attack"},
				{ID: "b", Text: "Concurrent misses hitting the origin", Correct: true},
			}},
			{ID: "q3", Text: "TTL stands for?", Options: []Option{
				{ID: "a", Text: "Time to live", Correct: true},
				{ID: "b", Text: "Total transfer limit"},
			}},
		},
	}
}

func TestScoreQuiz(t *testing.T) {
	quiz := sampleQuiz()

	result := ScoreQuiz(quiz, []Answer{
		{QuestionID: "q1", SelectedOptionID: "a"}, // correct
		{QuestionID: "q2", SelectedOptionID: "a"}, // incorrect
		{QuestionID: "q3", SelectedOptionID: "a"}, // correct
	})
	if result.Score != 2 {
		t.Errorf("Score = %d, want 2", result.Score)
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	want := []bool{true, false, true}
	for i, r := range result.Results {
		if r.Correct != want[i] {
			t.Errorf("Results[%d].Correct = %v, want %v", i, r.Correct, want[i])
		}
	}
}

func TestScoreQuizUnknownQuestion(t *testing.T) {
	result := ScoreQuiz(sampleQuiz(), []Answer{
		{QuestionID: "q1", SelectedOptionID: "a"},
		{QuestionID: "does-not-exist", SelectedOptionID: "a"},
	})
	if result.Score != 1 {
		t.Errorf("Score = %d, want 1", result.Score)
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want the quiz's question count 3", result.Total)
	}
	if result.Results[1].Correct {
		t.Error("answer to an unknown question scored as correct")
	}
}

func TestScoreQuizPartialSubmission(t *testing.T) {
	result := ScoreQuiz(sampleQuiz(), []Answer{{QuestionID: "q2", SelectedOptionID: "b"}})
	if result.Score != 1 || result.Total != 3 {
		t.Errorf("Score/Total = %d/%d, want 1/3", result.Score, result.Total)
	}
	if len(result.Results) != 1 {
		t.Errorf("Results has %d entries, want one per submitted answer", len(result.Results))
	}
}

func TestScoreQuizNoAnswers(t *testing.T) {
	result := ScoreQuiz(sampleQuiz(), nil)
	if result.Score != 0 || result.Total != 3 {
		t.Errorf("Score/Total = %d/%d, want 0/3", result.Score, result.Total)
	}
	if len(result.Results) != 0 {
		t.Errorf("Results = %v, want empty", result.Results)
	}
}
