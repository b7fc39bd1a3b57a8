package freta

// ImageState is the server-side lifecycle state of an image.
type ImageState string

const (
	StateUploadStarted   ImageState = "Upload started"
	StateQueued          ImageState = "Waiting in queue"
	StateAnalyzing       ImageState = "Analysis in progress"
	StateReportAvailable ImageState = "Report available"
	StateFailed          ImageState = "Failed"
)

// Terminal reports whether analysis of the image has finished, successfully
// or not.
func (s ImageState) Terminal() bool {
	return s == StateReportAvailable || s == StateFailed
}

// Image describes an uploaded memory snapshot and its analysis status.
type Image struct {
	Timestamp       string     `json:"Timestamp,omitempty"`
	ImageID         string     `json:"image_id"`
	ImageType       string     `json:"image_type,omitempty"`
	MachineID       string     `json:"machine_id,omitempty"`
	OwnerID         string     `json:"owner_id,omitempty"`
	Region          string     `json:"region,omitempty"`
	State           ImageState `json:"state,omitempty"`
	AnalysisVersion string     `json:"analysis_version,omitempty"`
}

// SASToken wraps a time-limited, scope-limited storage URL.
type SASToken struct {
	SASURL string `json:"sas_url"`
}

// UploadToken authorizes (only) the upload of one image and one optional
// kernel profile. It does not queue the image for analysis.
type UploadToken struct {
	Image   SASToken `json:"image"`
	Profile SASToken `json:"profile"`
	ImageID string   `json:"image_id"`
	Result  bool     `json:"result"`
}

// UploadResult identifies a freshly uploaded image.
type UploadResult struct {
	ImageID string `json:"image_id"`
	OwnerID string `json:"owner_id"`
}

// Region describes an Azure region available for image storage and analysis.
type Region struct {
	Default bool   `json:"default"`
	Name    string `json:"name"`
}

// artifactURL is the response shape of get_artifact.
type artifactURL struct {
	URL string `json:"url"`
}
