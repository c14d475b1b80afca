package services

import (
	"testing"

	"go2b/internal/models"
)

func TestReverseScore(t *testing.T) {
	cases := []struct {
		raw, points, want int
	}{
		{1, 6, 6},
		{2, 6, 5},
		{3, 6, 4},
		{6, 6, 1},
		{0, 6, 6},
		{7, 6, 1},
		{1, 5, 5},
		{5, 5, 1},
	}
	for _, c := range cases {
		if got := ReverseScore(c.raw, c.points); got != c.want {
			t.Fatalf("ReverseScore(%d,%d)=%d, want %d", c.raw, c.points, got, c.want)
		}
	}
}

func TestRawScores(t *testing.T) {
	items := []models.Item{
		{Scale: "A", Text: "i1", Reverse: true},
		{Scale: "A", Text: "i2", Reverse: false},
		{Scale: "B", Text: "i3", Reverse: false},
	}
	// reversed item: 7-2=5, plain: 5 -> A=10; B=3
	sums := RawScores(items, []int{2, 5, 3}, 6)
	if sums["A"] != 10 {
		t.Fatalf("A = %d, want 10", sums["A"])
	}
	if sums["B"] != 3 {
		t.Fatalf("B = %d, want 3", sums["B"])
	}
}

func TestScalesInOrder(t *testing.T) {
	items := []models.Item{
		{Scale: "A"}, {Scale: "B"}, {Scale: "A"}, {Scale: "C"}, {Scale: "B"},
	}
	got := ScalesInOrder(items)
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("scales = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scales = %v, want %v", got, want)
		}
	}
}

func TestPercentileStrictlyBelow(t *testing.T) {
	cases := []struct {
		name string
		pop  []int
		x    int
		want int
	}{
		{"singleton", []int{7}, 7, 0},
		{"all below", []int{1, 2, 3, 10}, 10, 75},
		{"ties not counted", []int{5, 5, 5, 5}, 5, 0},
		{"half below", []int{1, 2, 8, 8}, 8, 50},
	}
	for _, c := range cases {
		if got := Percentile(c.pop, c.x); got != c.want {
			t.Fatalf("%s: Percentile=%d, want %d", c.name, got, c.want)
		}
	}
}

func TestPercentileBounds(t *testing.T) {
	pop := []int{3, 9, 9, 14, 21, 21, 21, 30}
	for _, x := range pop {
		p := Percentile(pop, x)
		if p < 0 || p > 100 {
			t.Fatalf("percentile %d out of [0,100]", p)
		}
	}
}

func TestStanine(t *testing.T) {
	cases := []struct {
		name string
		pop  []int
		x    int
		want int
	}{
		{"singleton lands top band", []int{7}, 7, 9},
		{"lowest of many", []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1},
		{"highest of many", []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, 9, 9},
		{"ties rank at first occurrence", []int{5, 5, 5, 9}, 5, 3},
	}
	for _, c := range cases {
		if got := Stanine(c.pop, c.x); got != c.want {
			t.Fatalf("%s: Stanine=%d, want %d", c.name, got, c.want)
		}
	}
}

func TestStanineBounds(t *testing.T) {
	pop := []int{3, 9, 9, 14, 21, 21, 21, 30, 2, 2, 40}
	for _, x := range pop {
		s := Stanine(pop, x)
		if s < 1 || s > 9 {
			t.Fatalf("stanine %d out of [1,9]", s)
		}
	}
}

func TestBuildDetail(t *testing.T) {
	items := []models.Item{
		{Scale: "A", Text: "prima", Reverse: false},
		{Scale: "A", Text: "seconda", Reverse: true},
	}
	detail := BuildDetail(items, []int{3, 2}, 6)
	if len(detail) != 2 {
		t.Fatalf("detail len = %d, want 2", len(detail))
	}
	if detail[0].Idx != 1 || detail[0].Answer != 3 || detail[0].Score != 3 {
		t.Fatalf("detail[0] = %+v", detail[0])
	}
	if detail[1].Idx != 2 || detail[1].Answer != 2 || detail[1].Score != 5 || !detail[1].Reverse {
		t.Fatalf("detail[1] = %+v", detail[1])
	}
}
