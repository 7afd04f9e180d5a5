package app

import (
	"math"
	"math/rand"

	"medha-quiz/internal/domain"
)

// Score grades questions (in the order the student saw them) against the chosen answers.
// A missing answer counts as incorrect.
func Score(questions []domain.Question, answers map[string]string, durationSeconds, remainingSeconds int) domain.AttemptResult {
	scored := make([]domain.ScoredAnswer, 0, len(questions))
	score := 0
	for _, q := range questions {
		entry := domain.ScoredAnswer{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			Options:       append([]string(nil), q.Options...),
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}
		if chosen, ok := answers[q.ID]; ok {
			c := chosen
			entry.ChosenAnswer = &c
			entry.IsCorrect = chosen == q.CorrectAnswer
		}
		if entry.IsCorrect {
			score++
		}
		scored = append(scored, entry)
	}
	return domain.AttemptResult{
		Score:            score,
		Total:            len(questions),
		TimeTakenSeconds: TimeTaken(durationSeconds, remainingSeconds),
		ScoredAnswers:    scored,
	}
}

// TimeTaken is duration minus remaining, clamped to [0, duration].
func TimeTaken(durationSeconds, remainingSeconds int) int {
	taken := durationSeconds - remainingSeconds
	if taken < 0 {
		return 0
	}
	if taken > durationSeconds {
		return durationSeconds
	}
	return taken
}

// CertificateEligible compares the raw score count against the passing score.
// The passing score is entered as a percentage in authoring tools; the comparison is kept literal.
func CertificateEligible(policy *domain.CertificatePolicy, score int) bool {
	if policy == nil || !policy.Enabled {
		return false
	}
	return float64(score) >= policy.PassingScore
}

// Percentage rounds score/total to the nearest whole percent; zero total yields zero.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(score)*100/float64(total) + 0.5))
}

// Shuffle returns a Fisher-Yates shuffled copy of questions.
func Shuffle(rnd *rand.Rand, questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
