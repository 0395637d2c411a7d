package filesearch

// TruncationStrategy tags which pass, if any, shortened a TruncatedOutput.
type TruncationStrategy string

const (
	TruncationLine TruncationStrategy = "Line"
	TruncationByte TruncationStrategy = "Byte"
	TruncationFull TruncationStrategy = "Full"
)

// TruncatedOutput is the result of applying the search result size limits:
// first a line-count cap, then a byte-count cap over what survived the first
// pass. Start/End describe the line range kept; Total is the pre-truncation
// line count.
type TruncatedOutput struct {
	Data     []string
	Start    int
	End      int
	Total    int
	Strategy TruncationStrategy
}

func newTruncatedOutput(data []string) TruncatedOutput {
	return TruncatedOutput{Data: data, Start: 0, End: len(data), Total: len(data), Strategy: TruncationFull}
}

// truncateByLines keeps at most maxLines entries starting at start. Strategy
// is only set to Line if truncation actually shortened the data.
func (t TruncatedOutput) truncateByLines(start, maxLines int) TruncatedOutput {
	totalLines := len(t.Data)
	if totalLines > maxLines {
		switch {
		case start >= len(t.Data):
			t.Data = []string{}
		default:
			end := start + maxLines
			if end > len(t.Data) {
				end = len(t.Data)
			}
			t.Data = t.Data[start:end]
		}
	}

	if totalLines != len(t.Data) {
		t.Start = start
		t.End = start + maxLines
		t.Strategy = TruncationLine
	}
	return t
}

// truncateByBytes keeps a prefix of the (possibly already line-truncated)
// data whose cumulative byte length stays under maxBytes. Strategy is only
// set to Byte if truncation actually shortened the data.
func (t TruncatedOutput) truncateByBytes(maxBytes int) TruncatedOutput {
	totalLines := len(t.Data)
	input := t.Data

	totalBytes := 0
	truncated := make([]string, 0, len(input))
	for _, item := range input {
		totalBytes += len(item)
		if totalBytes >= maxBytes {
			break
		}
		truncated = append(truncated, item)
	}
	t.Data = truncated

	if len(t.Data) != totalLines {
		t.End = t.Start + len(t.Data)
		t.Strategy = TruncationByte
	}
	return t
}

// TruncateSearchOutput applies the line-then-byte truncation pipeline to
// already-formatted search result lines.
func TruncateSearchOutput(lines []string, startLine, maxLines, maxBytes int) TruncatedOutput {
	return newTruncatedOutput(lines).
		truncateByLines(startLine, maxLines).
		truncateByBytes(maxBytes)
}
