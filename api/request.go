package api

// JudgeRequest is the wire format consumed by the daemon. It carries the
// submission together with the problem definition so the judge does not
// need its own problem storage.
type JudgeRequest struct {
	SubmissionUuid string `json:"submission_uuid"`

	User   string `json:"user"`
	Code   string `json:"code"`
	LangID string `json:"lang_id"`

	ProblemID string    `json:"problem_id"`
	Tests     []ReqTest `json:"tests"`
	Validator *Script   `json:"validator,omitempty"`
	Generator *Script   `json:"generator,omitempty"`

	CpuMillis int64 `json:"cpu_millis"`
	MemoryKiB int64 `json:"memory_kib"`

	SubmitCooldownSec   int `json:"submit_cooldown_sec"`
	GenerateCooldownSec int `json:"generate_cooldown_sec"`

	AllowedLangIDs []string `json:"allowed_lang_ids"`

	// ResSqsUrl, when set, mirrors progress events to an SQS queue.
	ResSqsUrl string `json:"res_sqs_url,omitempty"`
}

// ReqTest references one test case either by downloadable file or by
// inline content.
type ReqTest struct {
	ID int `json:"id"`

	// Sha256 to check if file exists in cache
	InSha256 *string `json:"in_sha256,omitempty"`
	// URL to download file if missing
	InUrl *string `json:"in_url,omitempty"`
	// Content directly as an alternative to URL
	InContent *string `json:"in_content,omitempty"`

	AnsSha256  *string `json:"ans_sha256,omitempty"`
	AnsUrl     *string `json:"ans_url,omitempty"`
	AnsContent *string `json:"ans_content,omitempty"`
}

// Script is untrusted helper code (validator or generator) with its own
// sandbox limits.
type Script struct {
	Code      string `json:"code"`
	LangID    string `json:"lang_id"`
	CpuMillis int64  `json:"cpu_millis"`
	MemoryKiB int64  `json:"memory_kib"`
}
