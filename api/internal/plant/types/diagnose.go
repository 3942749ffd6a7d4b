package types

// DiagnosisRequest matches diagnose.input.
// Required: photoDataUri ("data:<mime>;base64,<payload>"), description (may be empty).
type DiagnosisRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
	Description  string `json:"description"`
}

// Identification is what the model thinks is on the photo.
// For non-plants the contract is commonName="Unknown", latinName="N/A".
type Identification struct {
	IsPlant    bool   `json:"isPlant"`
	CommonName string `json:"commonName"`
	LatinName  string `json:"latinName"`
}

// Diagnosis is the health assessment, always present.
type Diagnosis struct {
	IsHealthy bool   `json:"isHealthy"`
	Diagnosis string `json:"diagnosis"` // one to three sentences
}

// DiagnosisResult matches diagnose.output.
type DiagnosisResult struct {
	Identification Identification `json:"identification"`
	Diagnosis      Diagnosis      `json:"diagnosis"`
}

const (
	UnknownCommonName = "Unknown"
	UnknownLatinName  = "N/A"
)
