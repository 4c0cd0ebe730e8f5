// Package scoring converts a submitted answer set into a deterministic score
// against a read-only snapshot of an assessment's questions. It performs no
// I/O and holds no state: the same snapshot and submission always produce the
// same result.
package scoring

import "math"

// Question is the minimal view of a question needed for grading.
type Question struct {
	ID               int64
	Points           int
	CorrectOptionIDs []int64
}

// Snapshot is the read-only question set an attempt is graded against.
type Snapshot struct {
	Questions []Question
}

// Answer is one submitted selection, keyed by question id.
type Answer struct {
	QuestionID        int64
	SelectedOptionIDs []int64
}

// Result is the aggregate outcome of grading one submission.
type Result struct {
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	EarnedPoints   int     `json:"earned_points"`
	TotalPoints    int     `json:"total_points"`
}

// Score grades a submission against a snapshot. A question is correct iff the
// submitted option-id set equals the correct option-id set exactly; selecting
// a subset, superset, or any wrong option yields zero credit for that
// question. Unanswered questions count toward the total but earn nothing.
// Duplicate answers for the same question keep the last occurrence.
func Score(snap *Snapshot, answers []Answer) Result {
	selected := make(map[int64][]int64, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedOptionIDs
	}

	res := Result{TotalQuestions: len(snap.Questions)}

	for _, q := range snap.Questions {
		points := q.Points
		if points <= 0 {
			points = 1
		}
		res.TotalPoints += points

		if setsEqual(selected[q.ID], q.CorrectOptionIDs) {
			res.EarnedPoints += points
			res.CorrectAnswers++
		}
	}

	if res.TotalPoints > 0 {
		res.Score = round2(float64(res.EarnedPoints) / float64(res.TotalPoints) * 100)
	}

	return res
}

// setsEqual compares two id slices as sets, ignoring order and duplicates.
// Two empty sets are equal, but a question with no correct options never
// occurs in a valid snapshot, so empty submissions still score zero there.
func setsEqual(a, b []int64) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	if len(as) == 0 {
		return false // No correct options means nothing can match.
	}
	for id := range as {
		if _, ok := bs[id]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
