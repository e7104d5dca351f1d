package dto

// ── 通知模块 DTO ──

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	PaginationRequest
	UnreadOnly bool `form:"unread_only"`
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	IsRead      bool    `json:"is_read"`
	RelatedType *string `json:"related_type,omitempty"`
	RelatedID   *string `json:"related_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// BroadcastRequest 管理员广播通知
// Role 为空时发送给全部用户
type BroadcastRequest struct {
	Role    string `json:"role"    binding:"omitempty,oneof=student staff registrar admin"`
	Title   string `json:"title"   binding:"required,min=2,max=200"`
	Content string `json:"content" binding:"required,max=5000"`
	Email   bool   `json:"email"` // 是否同时发送邮件
}

// BroadcastResponse 广播结果
type BroadcastResponse struct {
	Recipients int `json:"recipients"`
}

// UnreadCountResponse 未读数
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}
