package domain

// StorageStats summarizes the vector storage backing the library.
type StorageStats struct {
	Count    int    `json:"count"`
	Name     string `json:"name"`
	Location string `json:"location"`
}
