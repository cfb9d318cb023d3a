package member

type JoinRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=100"`
}

type MemberResponse struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}
