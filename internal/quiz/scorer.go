package quiz

// Score grades answers against the questions' correctness flags.
//
// A question is correct iff exactly one of its choices is flagged correct and
// the recorded answer is that choice. Unanswered questions are incorrect.
// ScorePercent is 100·correct/total rounded half up. TimeSpentSeconds is left
// at zero; the controller fills it in.
func Score(questions []Question, answers AnswerMap) (Result, error) {
	total := len(questions)
	if total == 0 {
		return Result{}, ErrEmptyAssessment
	}

	correct := 0
	for _, q := range questions {
		want, ok := q.correctChoice()
		if !ok {
			continue
		}
		if got, answered := answers[q.ID]; answered && got == want {
			correct++
		}
	}

	return Result{
		ScorePercent:   percentHalfUp(correct, total),
		CorrectCount:   correct,
		IncorrectCount: total - correct,
		TotalQuestions: total,
	}, nil
}

// percentHalfUp computes round(100·n/d) with halves rounded up, in integers.
func percentHalfUp(n, d int) int {
	return (200*n + d) / (2 * d)
}
