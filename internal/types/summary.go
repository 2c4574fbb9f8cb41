package types

// RunSummary counts the outcomes of one generation run.
type RunSummary struct {
	RunID             string `json:"run_id"`
	Preset            string `json:"preset"`
	Keys              int    `json:"keys"`
	Records           int    `json:"records"`
	Dropped           int    `json:"dropped"`
	SubtasksSucceeded int    `json:"subtasks_succeeded"`
	SubtasksExhausted int    `json:"subtasks_exhausted"`
	FailedAttempts    int    `json:"failed_attempts"`
	Pauses            int    `json:"pauses"`
	PersistFailures   int    `json:"persist_failures"`
}

// UploadSummary counts the outcomes of one upload pass.
type UploadSummary struct {
	Items     int    `json:"items"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Ledger    string `json:"ledger"`
}
