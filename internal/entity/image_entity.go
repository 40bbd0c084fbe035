package entity

// ImageResult is a visual search hit. Score is normalized to 0-100,
// RawScore is the underlying cosine similarity.
type ImageResult struct {
	Path     string
	Score    float64
	RawScore float64
	Label    string
	Width    int
	Height   int
}

// DefectClass is one ranked class of a zero-shot ensemble.
type DefectClass struct {
	Label       string
	Probability float64
}

// DefectClassification is the full output of the defect classifier:
// defect type ranking, severity ranking and the matching recommendation.
type DefectClassification struct {
	Primary         string
	Classes         []DefectClass
	Severity        string
	SeverityClasses []DefectClass
	Recommendation  string
}
