package filesearch

import (
	"strings"
	"testing"
)

func repeat(s string, n int) string { return strings.Repeat(s, n) }

func TestTruncateByLines(t *testing.T) {
	data := []string{"line 1", "line 2", "line 3", "line 4", "line 5"}

	got := newTruncatedOutput(append([]string{}, data...)).truncateByLines(1, 3)

	want := TruncatedOutput{
		Data:     []string{"line 2", "line 3", "line 4"},
		Start:    1,
		End:      4,
		Total:    5,
		Strategy: TruncationLine,
	}
	assertTruncated(t, got, want)
}

func TestTruncateByBytes(t *testing.T) {
	data := []string{repeat("A", 5), repeat("B", 5), repeat("C", 5), repeat("D", 5), repeat("E", 5)}

	got := newTruncatedOutput(append([]string{}, data...)).truncateByBytes(20)

	want := TruncatedOutput{
		Data:     data[:3],
		Start:    0,
		End:      3,
		Total:    5,
		Strategy: TruncationByte,
	}
	assertTruncated(t, got, want)
}

func TestTruncateBothStrategies(t *testing.T) {
	data := []string{repeat("A", 900), repeat("B", 10), repeat("C", 25), repeat("D", 35), repeat("E", 45)}

	got := TruncateSearchOutput(append([]string{}, data...), 0, 10, 925)

	want := TruncatedOutput{
		Data:     data[:2],
		Start:    0,
		End:      2,
		Total:    5,
		Strategy: TruncationByte,
	}
	assertTruncated(t, got, want)
}

func TestTruncateBothStrategiesLowerByteLimit(t *testing.T) {
	data := []string{repeat("A", 900), repeat("B", 10), repeat("C", 25), repeat("D", 35), repeat("E", 45)}

	got := TruncateSearchOutput(append([]string{}, data...), 0, 10, 120)

	want := TruncatedOutput{
		Data:     []string{},
		Start:    0,
		End:      0,
		Total:    5,
		Strategy: TruncationByte,
	}
	assertTruncated(t, got, want)
}

func TestTruncateSearchOutputUnderLimitsIsFull(t *testing.T) {
	data := []string{"one", "two"}

	got := TruncateSearchOutput(data, 0, 10, 1000)

	want := TruncatedOutput{Data: data, Start: 0, End: 2, Total: 2, Strategy: TruncationFull}
	assertTruncated(t, got, want)
}

func assertTruncated(t *testing.T, got, want TruncatedOutput) {
	t.Helper()
	if got.Start != want.Start || got.End != want.End || got.Total != want.Total || got.Strategy != want.Strategy {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(got.Data) != len(want.Data) {
		t.Fatalf("data length mismatch: got %d, want %d", len(got.Data), len(want.Data))
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("data[%d]: got %q, want %q", i, got.Data[i], want.Data[i])
		}
	}
}
