package quiz

// AnswerMap maps a question id to the chosen choice id.
type AnswerMap map[string]string

// AnswerStore holds the selections of the active attempt.
// It performs no membership validation; the controller does that.
// AnswerStore is not safe for concurrent use on its own.
type AnswerStore struct {
	answers AnswerMap
}

// NewAnswerStore returns an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(AnswerMap)}
}

// Set records choiceID for questionID, replacing any previous choice.
func (s *AnswerStore) Set(questionID, choiceID string) {
	s.answers[questionID] = choiceID
}

// Get returns the recorded choice; ok is false when unanswered.
func (s *AnswerStore) Get(questionID string) (choiceID string, ok bool) {
	choiceID, ok = s.answers[questionID]
	return choiceID, ok
}

// AllAnswered reports whether every id in questionIDs has an answer.
func (s *AnswerStore) AllAnswered(questionIDs []string) bool {
	for _, id := range questionIDs {
		if _, ok := s.answers[id]; !ok {
			return false
		}
	}
	return true
}

// Len returns the number of answered questions.
func (s *AnswerStore) Len() int {
	return len(s.answers)
}

// Snapshot returns a copy of the recorded answers.
func (s *AnswerStore) Snapshot() AnswerMap {
	out := make(AnswerMap, len(s.answers))
	for q, c := range s.answers {
		out[q] = c
	}
	return out
}
