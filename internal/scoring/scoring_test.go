package scoring

import (
	"reflect"
	"testing"
)

func snapTwoSingles() *Snapshot {
	return &Snapshot{Questions: []Question{
		{ID: 1, Points: 1, CorrectOptionIDs: []int64{10}},
		{ID: 2, Points: 1, CorrectOptionIDs: []int64{21}},
	}}
}

func TestScoreSingleChoice(t *testing.T) {
	res := Score(snapTwoSingles(), []Answer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
		{QuestionID: 2, SelectedOptionIDs: []int64{22}},
	})

	if res.Score != 50.0 {
		t.Errorf("score = %v, want 50.0", res.Score)
	}
	if res.CorrectAnswers != 1 {
		t.Errorf("correct = %d, want 1", res.CorrectAnswers)
	}
	if res.TotalQuestions != 2 {
		t.Errorf("total questions = %d, want 2", res.TotalQuestions)
	}
	if res.EarnedPoints != 1 || res.TotalPoints != 2 {
		t.Errorf("points = %d/%d, want 1/2", res.EarnedPoints, res.TotalPoints)
	}
}

func TestScoreMultiSelectExactSetOnly(t *testing.T) {
	snap := &Snapshot{Questions: []Question{
		{ID: 1, Points: 2, CorrectOptionIDs: []int64{5, 6}},
	}}

	cases := []struct {
		name     string
		selected []int64
		want     int
	}{
		{"exact match", []int64{5, 6}, 2},
		{"exact match reordered", []int64{6, 5}, 2},
		{"strict subset", []int64{5}, 0},
		{"strict superset", []int64{5, 6, 7}, 0},
		{"disjoint", []int64{8, 9}, 0},
		{"one right one wrong", []int64{5, 7}, 0},
		{"empty selection", nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(snap, []Answer{{QuestionID: 1, SelectedOptionIDs: tc.selected}})
			if res.EarnedPoints != tc.want {
				t.Errorf("earned = %d, want %d", res.EarnedPoints, tc.want)
			}
		})
	}
}

func TestScoreUnansweredCountsAsIncorrect(t *testing.T) {
	res := Score(snapTwoSingles(), []Answer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
	})

	if res.Score != 50.0 {
		t.Errorf("score = %v, want 50.0", res.Score)
	}
	if res.TotalPoints != 2 {
		t.Errorf("total points = %d, want 2 (unanswered still counts)", res.TotalPoints)
	}
}

func TestScoreUnknownQuestionIgnored(t *testing.T) {
	res := Score(snapTwoSingles(), []Answer{
		{QuestionID: 99, SelectedOptionIDs: []int64{10}},
	})

	if res.CorrectAnswers != 0 {
		t.Errorf("correct = %d, want 0", res.CorrectAnswers)
	}
	if res.TotalQuestions != 2 {
		t.Errorf("total questions = %d, want 2", res.TotalQuestions)
	}
}

func TestScoreEmptySnapshot(t *testing.T) {
	res := Score(&Snapshot{}, nil)

	if res.Score != 0 {
		t.Errorf("score = %v, want 0", res.Score)
	}
	if res.TotalPoints != 0 || res.TotalQuestions != 0 {
		t.Errorf("unexpected totals: %+v", res)
	}
}

func TestScoreWeightedRounding(t *testing.T) {
	snap := &Snapshot{Questions: []Question{
		{ID: 1, Points: 1, CorrectOptionIDs: []int64{10}},
		{ID: 2, Points: 1, CorrectOptionIDs: []int64{20}},
		{ID: 3, Points: 1, CorrectOptionIDs: []int64{30}},
	}}
	res := Score(snap, []Answer{{QuestionID: 1, SelectedOptionIDs: []int64{10}}})

	// 1/3 of 100 rounds to 33.33.
	if res.Score != 33.33 {
		t.Errorf("score = %v, want 33.33", res.Score)
	}
}

func TestScoreDefaultPointValue(t *testing.T) {
	snap := &Snapshot{Questions: []Question{
		{ID: 1, CorrectOptionIDs: []int64{10}}, // zero Points defaults to 1
		{ID: 2, Points: 3, CorrectOptionIDs: []int64{20}},
	}}
	res := Score(snap, []Answer{{QuestionID: 1, SelectedOptionIDs: []int64{10}}})

	if res.TotalPoints != 4 {
		t.Errorf("total points = %d, want 4", res.TotalPoints)
	}
	if res.Score != 25.0 {
		t.Errorf("score = %v, want 25.0", res.Score)
	}
}

func TestScoreDuplicateAnswersLastWins(t *testing.T) {
	res := Score(snapTwoSingles(), []Answer{
		{QuestionID: 1, SelectedOptionIDs: []int64{11}},
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
	})

	if res.CorrectAnswers != 1 {
		t.Errorf("correct = %d, want 1 (last answer wins)", res.CorrectAnswers)
	}
}

func TestScoreDeterministic(t *testing.T) {
	snap := &Snapshot{Questions: []Question{
		{ID: 1, Points: 2, CorrectOptionIDs: []int64{5, 6}},
		{ID: 2, Points: 1, CorrectOptionIDs: []int64{9}},
		{ID: 3, Points: 4, CorrectOptionIDs: []int64{1, 2, 3}},
	}}
	answers := []Answer{
		{QuestionID: 1, SelectedOptionIDs: []int64{6, 5}},
		{QuestionID: 3, SelectedOptionIDs: []int64{3, 1, 2}},
	}

	first := Score(snap, answers)
	for i := 0; i < 100; i++ {
		if got := Score(snap, answers); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: result %+v differs from first %+v", i, got, first)
		}
	}
}
