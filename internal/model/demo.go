package model

type Demo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	User    string `json:"user"`
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// DemoPage is one page of the "demos" collection as returned by the backend
// list endpoint.
type DemoPage struct {
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
	TotalItems int    `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
	Items      []Demo `json:"items"`
}
