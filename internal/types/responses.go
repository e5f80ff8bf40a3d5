package types

// AuctionList is the paginated response for auction listings.
type AuctionList struct {
	Items    []Auction `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}
