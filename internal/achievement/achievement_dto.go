package achievement

type AchievementResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	GroupID   string `json:"group_id"`
	Kind      string `json:"kind"`
	AwardDate string `json:"award_date"`
}
