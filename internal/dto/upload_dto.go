package dto

type UploadReportResponse struct {
	Report string `json:"report"`
	Status string `json:"status"`
}

// IngestReportMessage is the bus payload that queues a report for
// chunking and embedding.
type IngestReportMessage struct {
	Report string `json:"report"`
	Path   string `json:"path"`
}

type DefectClassDTO struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

type ClassifyImageResponse struct {
	Primary         string           `json:"primary"`
	Classes         []DefectClassDTO `json:"classes"`
	Severity        string           `json:"severity"`
	SeverityClasses []DefectClassDTO `json:"severity_classes"`
	Recommendation  string           `json:"recommendation"`
}
