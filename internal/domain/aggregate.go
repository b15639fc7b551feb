package domain

// Aggregate merges per-endpoint results into one Outcome.
// submitted is the size of the validated urlList, not the number of
// successful endpoints. It never fails, even when every endpoint did.
func Aggregate(submitted int, results []EndpointResult) Outcome {
	out := Outcome{
		Submitted: submitted,
		Results:   make([]EndpointResult, len(results)),
	}
	copy(out.Results, results)

	for _, r := range out.Results {
		if r.Accepted() {
			out.OK = true
			break
		}
	}
	return out
}
