package models

// UnknownSize marks a KeyRecord whose size could not be read from a local source file.
const UnknownSize int64 = -1

// ObjectSummary is one entry of a bucket listing.
type ObjectSummary struct {
	Key  string
	Size int64
}

// ObjectPage is a single page of a bucket listing.
type ObjectPage struct {
	Objects   []ObjectSummary
	NextToken string
	HasMore   bool
}

// KeyRecord is a matched key and its observed size.
type KeyRecord struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

type RenameMapping struct {
	Source string `json:"old"`
	Target string `json:"new"`
}

// IsIdentity reports whether the rename leaves the key unchanged.
func (m RenameMapping) IsIdentity() bool {
	return m.Source == m.Target
}

type KeyError struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BulkDeleteResult struct {
	DeletedKeys []string   `json:"deleted_keys"`
	Errors      []KeyError `json:"errors"`
}

type CopyResult struct {
	StatusCode int `json:"status_code"`
}

type ActionResult struct {
	Action    string        `json:"action"`
	DryRun    bool          `json:"dry_run"`
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	AuditFile string        `json:"audit_file"`
	Chained   *ActionResult `json:"chained,omitempty"`
}

type RunResult struct {
	RunID          string        `json:"run_id"`
	BucketName     string        `json:"bucket_name,omitempty"`
	Source         string        `json:"source"`
	MatchCount     int           `json:"match_count"`
	TotalSizeBytes int64         `json:"total_size_bytes"`
	TotalSizeHuman string        `json:"total_size_human"`
	FindFile       string        `json:"find_file,omitempty"`
	Action         *ActionResult `json:"action,omitempty"`
	OperationTime  string        `json:"operation_time"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}
