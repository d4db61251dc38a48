package gateway

// Member is one guild member as returned by the gateway.
type Member struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nick     string `json:"nick"`
}

func (m Member) displayName() string {
	if m.Nick != "" {
		return CleanNickname(m.Nick)
	}
	return m.Username
}

type MessageRequest struct {
	Content string `json:"content"`
}

type NicknameRequest struct {
	Nick string `json:"nick"`
}
