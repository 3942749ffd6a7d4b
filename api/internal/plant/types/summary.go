package types

// DiseaseSummaryRequest matches summary.input.
// All fields required.
type DiseaseSummaryRequest struct {
	DiseaseName        string `json:"diseaseName"`
	PotentialCauses    string `json:"potentialCauses"`
	RecommendedActions string `json:"recommendedActions"`
}

// DiseaseSummaryResult matches summary.output.
type DiseaseSummaryResult struct {
	Summary string `json:"summary"`
}
