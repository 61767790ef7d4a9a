package response

// Result is the envelope of every JSON response. Kind and Details are
// only set on errors.
type Result struct {
	Code    int            `json:"code"`
	Kind    string         `json:"kind,omitempty"`
	Msg     string         `json:"msg"`
	Details map[string]any `json:"details,omitempty"`
	Data    any            `json:"data"`
}

type PageResult struct {
	List     any   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int64 `json:"pages"`
}
