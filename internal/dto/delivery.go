package dto

import "time"

// ReportProblemRequest flags an open problem on a delivery.
type ReportProblemRequest struct {
	ProblemType string `json:"problem_type" validate:"required,max=120"`
	Note        string `json:"note" validate:"max=1000"`
}

// AddCommentRequest appends a comment. Length is enforced by the service in characters.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// CheckoutRequest closes a delivery. A missing checkout time means now.
type CheckoutRequest struct {
	CheckoutTime *time.Time `json:"checkout_time"`
}

// DeliveryListQuery maps list query parameters.
type DeliveryListQuery struct {
	Status     string `form:"status" validate:"omitempty,oneof=in_progress finalized returned"`
	HasProblem *bool  `form:"has_problem"`
	From       string `form:"from"`
	To         string `form:"to"`
	Search     string `form:"search" validate:"max=120"`
	Page       int    `form:"page" validate:"gte=0"`
	PageSize   int    `form:"page_size" validate:"gte=0,lte=100"`
	SortBy     string `form:"sort_by"`
	SortOrder  string `form:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
	Format     string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
