package domain

// Tab is an open browser tab as reported by the tab inventory.
type Tab struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
